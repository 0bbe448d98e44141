package capture

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartqasa/scene-capture/internal/hass"
)

// mockRecorder captures history writes.
type mockRecorder struct {
	mu      sync.Mutex
	results []*Result
	err     error
}

func (m *mockRecorder) RecordCapture(_ context.Context, _ string, result *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return m.err
}

func (m *mockRecorder) recorded() []*Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results
}

// mockMetrics captures metric writes.
type mockMetrics struct {
	mu     sync.Mutex
	writes int
	status string
}

func (m *mockMetrics) WriteCaptureMetric(_, status string, _, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.status = status
}

func newTestService(t *testing.T, provider StateProvider, scenes string) (*Service, string, *mockRecorder) {
	t.Helper()
	path := writeScenes(t, scenes)
	store := NewStore(path, nil, nil)
	recorder := &mockRecorder{}
	svc := NewService(store, NewResolver(provider, nil), NewSerializer(nil), recorder, nil, nil)
	return svc, path, recorder
}

func TestCaptureSceneEndToEnd(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001", "friendly_name": "Movie Night"},
	})
	provider.set(&hass.State{
		EntityID: "light.lounge",
		State:    "on",
		Attributes: map[string]any{
			"brightness": 200,
			"rgb_color":  []any{255, 200, 100},
		},
	})
	provider.set(&hass.State{
		EntityID:   "media_player.tv",
		State:      "playing",
		Attributes: map[string]any{"source": "HDMI 1"},
	})

	svc, path, recorder := newTestService(t, provider, sampleScenes)

	result, err := svc.CaptureScene(context.Background(), "scene.movie_night")
	if err != nil {
		t.Fatalf("CaptureScene: %v", err)
	}

	if result.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.SceneID != "1679952001" {
		t.Errorf("scene_id = %s", result.SceneID)
	}
	if result.EntityID != "scene.movie_night" {
		t.Errorf("entity_id = %s", result.EntityID)
	}
	if len(result.Updated) != 2 {
		t.Errorf("updated = %v, want both entities", result.Updated)
	}

	scenes := decodeScenes(t, path)
	entities := scenes[0]["entities"].(map[string]any)

	lounge := entities["light.lounge"].(map[string]any)
	if lounge["state"] != "on" || lounge["brightness"] != 200 {
		t.Errorf("light.lounge = %v", lounge)
	}
	tv := entities["media_player.tv"].(map[string]any)
	if tv["state"] != "playing" || tv["source"] != "HDMI 1" {
		t.Errorf("media_player.tv = %v", tv)
	}

	// Run is recorded once, with the final result
	got := recorder.recorded()
	if len(got) != 1 || got[0].Status != StatusCompleted {
		t.Errorf("recorded = %v", got)
	}
}

func TestCaptureScenePartialKeepsPreviousAttributes(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})
	provider.set(&hass.State{
		EntityID:   "light.lounge",
		State:      "off",
		Attributes: map[string]any{"brightness": 5},
	})
	// media_player.tv never resolves

	svc, path, _ := newTestService(t, provider, sampleScenes)

	result, err := svc.CaptureScene(context.Background(), "scene.movie_night")
	if err != nil {
		t.Fatalf("CaptureScene: %v", err)
	}

	if result.Status != StatusPartial {
		t.Errorf("status = %s, want partial", result.Status)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].EntityID != "media_player.tv" {
		t.Errorf("skipped = %v", result.Skipped)
	}

	scenes := decodeScenes(t, path)
	entities := scenes[0]["entities"].(map[string]any)

	lounge := entities["light.lounge"].(map[string]any)
	if lounge["state"] != "off" {
		t.Errorf("light.lounge not updated: %v", lounge)
	}

	// The unresolved entity keeps its stored attributes
	tv := entities["media_player.tv"].(map[string]any)
	if tv["state"] != "on" {
		t.Errorf("media_player.tv should keep previous state: %v", tv)
	}
}

func TestCaptureSceneValidation(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.no_id",
		State:      "scening",
		Attributes: map[string]any{"friendly_name": "No ID"},
	})

	svc, _, _ := newTestService(t, provider, sampleScenes)

	tests := []struct {
		name     string
		entityID string
		wantErr  error
	}{
		{"wrong domain", "light.lounge", ErrInvalidEntityID},
		{"empty", "", ErrInvalidEntityID},
		{"missing id attribute", "scene.no_id", ErrSceneIDMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CaptureScene(context.Background(), tt.entityID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCaptureSceneUnknownRecord(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.orphan",
		State:      "scening",
		Attributes: map[string]any{"id": "not-in-document"},
	})

	svc, _, recorder := newTestService(t, provider, sampleScenes)

	_, err := svc.CaptureScene(context.Background(), "scene.orphan")
	if !errors.Is(err, ErrSceneNotFound) {
		t.Fatalf("err = %v, want ErrSceneNotFound", err)
	}

	// The failed run still lands in history
	got := recorder.recorded()
	if len(got) != 1 || got[0].Status != StatusFailed {
		t.Errorf("recorded = %v, want one failed run", got)
	}
}

func TestCaptureSceneSerialisesEnumAttributes(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})
	provider.set(&hass.State{
		EntityID: "light.lounge",
		State:    "on",
		Attributes: map[string]any{
			"color_mode": colourMode("xy"),
		},
	})
	provider.set(&hass.State{EntityID: "media_player.tv", State: "off"})

	svc, path, _ := newTestService(t, provider, sampleScenes)

	if _, err := svc.CaptureScene(context.Background(), "scene.movie_night"); err != nil {
		t.Fatalf("CaptureScene: %v", err)
	}

	data, _ := os.ReadFile(path)
	var scenes []map[string]any
	if err := yaml.Unmarshal(data, &scenes); err != nil {
		t.Fatalf("reparsing scenes: %v", err)
	}
	lounge := scenes[0]["entities"].(map[string]any)["light.lounge"].(map[string]any)
	if lounge["color_mode"] != "xy" {
		t.Errorf("color_mode = %v (%T), want unwrapped string", lounge["color_mode"], lounge["color_mode"])
	}
}

func TestSceneEntitiesViaService(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})

	svc, _, _ := newTestService(t, provider, sampleScenes)

	ids, err := svc.SceneEntities(context.Background(), "scene.movie_night")
	if err != nil {
		t.Fatalf("SceneEntities: %v", err)
	}
	if len(ids) != 2 || ids[0] != "light.lounge" {
		t.Errorf("ids = %v", ids)
	}

	byID, err := svc.SceneEntitiesByID(context.Background(), "1679952001")
	if err != nil {
		t.Fatalf("SceneEntitiesByID: %v", err)
	}
	if len(byID) != 2 {
		t.Errorf("byID = %v", byID)
	}
}

func TestCaptureSceneMetricsRecorded(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})
	provider.set(&hass.State{EntityID: "light.lounge", State: "on"})
	provider.set(&hass.State{EntityID: "media_player.tv", State: "off"})

	path := writeScenes(t, sampleScenes)
	metrics := &mockMetrics{}
	svc := NewService(NewStore(path, nil, nil), NewResolver(provider, nil),
		NewSerializer(nil), nil, metrics, nil)

	if _, err := svc.CaptureScene(context.Background(), "scene.movie_night"); err != nil {
		t.Fatalf("CaptureScene: %v", err)
	}

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if metrics.writes != 1 || metrics.status != "completed" {
		t.Errorf("metrics writes=%d status=%s", metrics.writes, metrics.status)
	}
}

func TestCaptureSceneRecorderFailureDoesNotFailCapture(t *testing.T) {
	provider := newMockProvider()
	provider.set(&hass.State{
		EntityID:   "scene.movie_night",
		State:      "scening",
		Attributes: map[string]any{"id": "1679952001"},
	})
	provider.set(&hass.State{EntityID: "light.lounge", State: "on"})
	provider.set(&hass.State{EntityID: "media_player.tv", State: "off"})

	path := writeScenes(t, sampleScenes)
	recorder := &mockRecorder{err: errors.New("db locked")}
	svc := NewService(NewStore(path, nil, nil), NewResolver(provider, nil),
		NewSerializer(nil), recorder, nil, nil)

	result, err := svc.CaptureScene(context.Background(), "scene.movie_night")
	if err != nil {
		t.Fatalf("CaptureScene: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
}
