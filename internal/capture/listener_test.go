package capture

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/smartqasa/scene-capture/internal/hass"
	"github.com/smartqasa/scene-capture/internal/infrastructure/mqtt"
)

// mockBroker is an in-memory MQTTClient that delivers published commands
// straight to the registered handler.
type mockBroker struct {
	mu        sync.Mutex
	handler   mqtt.MessageHandler
	published map[string][][]byte
}

func newMockBroker() *mockBroker {
	return &mockBroker{published: make(map[string][][]byte)}
}

func (b *mockBroker) Subscribe(_ string, _ byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	return nil
}

func (b *mockBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], payload)
	return nil
}

// deliver simulates a command message arriving from the broker.
func (b *mockBroker) deliver(t *testing.T, topic string, payload []byte) {
	t.Helper()
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler == nil {
		t.Fatal("no handler subscribed")
	}
	if err := handler(topic, payload); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func (b *mockBroker) lastResult(t *testing.T, topic string) resultPayload {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.published[topic]
	if len(msgs) == 0 {
		t.Fatalf("nothing published to %s", topic)
	}
	var result resultPayload
	if err := json.Unmarshal(msgs[len(msgs)-1], &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return result
}

func newTestListener(t *testing.T, provider StateProvider) (*Listener, *mockBroker) {
	t.Helper()
	svc, _, _ := newTestService(t, provider, sampleScenes)
	broker := newMockBroker()
	listener := NewListener(svc, broker, 1, nil)
	if err := listener.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return listener, broker
}

func TestListenerSceneUpdate(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})
	provider.set(&hass.State{EntityID: "light.lounge", State: "on"})
	provider.set(&hass.State{EntityID: "media_player.tv", State: "off"})

	_, broker := newTestListener(t, provider)

	broker.deliver(t, "scenecapture/service/scene_update",
		[]byte(`{"entity_id": "scene.movie_night"}`))

	result := broker.lastResult(t, "scenecapture/result/scene_update")
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.Result == nil || result.Result.Status != StatusCompleted {
		t.Errorf("result = %+v, want completed", result.Result)
	}
}

func TestListenerSceneGet(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})

	_, broker := newTestListener(t, provider)

	broker.deliver(t, "scenecapture/service/scene_get",
		[]byte(`{"entity_id": "scene.movie_night"}`))

	result := broker.lastResult(t, "scenecapture/result/scene_get")
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if len(result.Entities) != 2 || result.Entities[0] != "light.lounge" {
		t.Errorf("entities = %v", result.Entities)
	}
}

func TestListenerErrorResponses(t *testing.T) {
	provider := newMockProvider()
	_, broker := newTestListener(t, provider)

	tests := []struct {
		name    string
		topic   string
		payload string
		want    string
	}{
		{
			"invalid domain", "scenecapture/service/update",
			`{"entity_id": "light.lounge"}`,
			"entity_id must belong to the scene domain",
		},
		{
			"malformed payload", "scenecapture/service/update",
			`not json`,
			"malformed payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker.deliver(t, tt.topic, []byte(tt.payload))
			result := broker.lastResult(t, "scenecapture/result/update")
			if result.Error == "" || len(result.Error) < len(tt.want) ||
				result.Error[:len(tt.want)] != tt.want {
				t.Errorf("error = %q, want prefix %q", result.Error, tt.want)
			}
		})
	}
}

func TestListenerIgnoresForeignTopics(t *testing.T) {
	provider := newMockProvider()
	_, broker := newTestListener(t, provider)

	// Not service commands: nothing published, no panic
	broker.deliver(t, "scenecapture/system/status", []byte(`{}`))
	broker.deliver(t, "scenecapture/service/update/extra", []byte(`{}`))

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.published) != 0 {
		t.Errorf("published to %v, want nothing", broker.published)
	}
}
