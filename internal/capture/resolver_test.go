package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartqasa/scene-capture/internal/hass"
)

// mockProvider is an in-memory StateProvider. An entity listed in appearAt
// only resolves from that call count onwards, simulating state that settles
// after the first lookup.
type mockProvider struct {
	mu       sync.Mutex
	states   map[string]*hass.State
	calls    map[string]int
	appearAt map[string]int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		states:   make(map[string]*hass.State),
		calls:    make(map[string]int),
		appearAt: make(map[string]int),
	}
}

func (m *mockProvider) set(state *hass.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.EntityID] = state
}

func (m *mockProvider) State(entityID string) (*hass.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[entityID]++
	if at, ok := m.appearAt[entityID]; ok && m.calls[entityID] < at {
		return nil, false
	}

	state, ok := m.states[entityID]
	if !ok {
		return nil, false
	}
	return state.DeepCopy(), true
}

func (m *mockProvider) callCount(entityID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[entityID]
}

func TestResolverFirstAttempt(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{EntityID: "light.lounge", State: "on"})

	r := NewResolver(provider, nil)

	start := time.Now()
	state, err := r.Resolve(context.Background(), "light.lounge")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state.State != "on" {
		t.Errorf("state = %q, want on", state.State)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first-attempt success should not wait, took %v", elapsed)
	}
}

func TestResolverRetriesThenSucceeds(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{EntityID: "light.slow", State: "on"})
	provider.appearAt["light.slow"] = 3

	r := NewResolver(provider, nil)

	start := time.Now()
	state, err := r.Resolve(context.Background(), "light.slow")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if state.State != "on" {
		t.Errorf("state = %q, want on", state.State)
	}

	// Two waits: 250ms + 500ms
	elapsed := time.Since(start)
	if elapsed < 700*time.Millisecond {
		t.Errorf("expected backoff before attempt 3, elapsed %v", elapsed)
	}
	if got := provider.callCount("light.slow"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestResolverExhaustion(t *testing.T) {
	provider := newMockProvider()
	r := NewResolver(provider, nil)

	_, err := r.Resolve(context.Background(), "light.missing")
	if !errors.Is(err, ErrEntityUnavailable) {
		t.Fatalf("err = %v, want ErrEntityUnavailable", err)
	}
	if got := provider.callCount("light.missing"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestResolverEmptyStateIsUnresolved(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{EntityID: "sensor.blank", State: ""})

	r := NewResolver(provider, nil)

	_, err := r.Resolve(context.Background(), "sensor.blank")
	if !errors.Is(err, ErrEntityUnavailable) {
		t.Fatalf("err = %v, want ErrEntityUnavailable", err)
	}
}

func TestResolverContextCancellation(t *testing.T) {
	provider := newMockProvider()
	r := NewResolver(provider, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Resolve(ctx, "light.missing")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("cancellation should abort the backoff wait, took %v", elapsed)
	}
}
