package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartqasa/scene-capture/internal/auth"
	"github.com/smartqasa/scene-capture/internal/capture"
	"github.com/smartqasa/scene-capture/internal/hass"
	"github.com/smartqasa/scene-capture/internal/infrastructure/config"
	"github.com/smartqasa/scene-capture/internal/infrastructure/logging"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

const testScenes = `- id: "1679952001"
  name: Movie Night
  entities:
    light.lounge:
      state: "on"
      brightness: 80
`

// stubProvider is a fixed-state StateProvider for handler tests.
type stubProvider struct {
	states map[string]*hass.State
}

func (p *stubProvider) State(entityID string) (*hass.State, bool) {
	state, ok := p.states[entityID]
	if !ok {
		return nil, false
	}
	return state.DeepCopy(), true
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenes.yaml")
	if err := os.WriteFile(path, []byte(testScenes), 0o644); err != nil {
		t.Fatalf("writing scenes fixture: %v", err)
	}

	provider := &stubProvider{states: map[string]*hass.State{
		"scene.movie_night": {
			EntityID:   "scene.movie_night",
			State:      "scening",
			Attributes: map[string]any{"id": "1679952001"},
		},
		"light.lounge": {
			EntityID:   "light.lounge",
			State:      "on",
			Attributes: map[string]any{"brightness": 200},
		},
	}}

	svc := capture.NewService(
		capture.NewStore(path, nil, nil),
		capture.NewResolver(provider, nil),
		capture.NewSerializer(nil),
		nil, nil, nil,
	)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 8093,
			Timeouts: config.APITimeoutConfig{
				Read: 5, Write: 5, Idle: 10,
			},
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret},
		},
		Logger:  logging.Default(),
		Capture: svc,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func serviceToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateServiceToken("test-client", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, srv *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestHealthNoAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestServiceRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	routes := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/api/v1/services/update"},
		{http.MethodPost, "/api/v1/services/scene_update"},
		{http.MethodPost, "/api/v1/services/scene_get"},
		{http.MethodGet, "/api/v1/captures"},
		{http.MethodGet, "/api/v1/scenes/1679952001/entities"},
	}

	for _, route := range routes {
		rec := doRequest(t, srv, route.method, route.target, "", `{"entity_id": "scene.movie_night"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", route.method, route.target, rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/services/update",
		"not-a-token", `{"entity_id": "scene.movie_night"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestCaptureEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := serviceToken(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/services/scene_update",
		token, `{"entity_id": "scene.movie_night"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result capture.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Status != capture.StatusCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}
	if result.SceneID != "1679952001" {
		t.Errorf("scene_id = %s", result.SceneID)
	}
}

func TestCaptureEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	token := serviceToken(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid JSON", "not json", http.StatusBadRequest},
		{"missing entity_id", `{}`, http.StatusBadRequest},
		{"wrong domain", `{"entity_id": "light.lounge"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/services/update", token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSceneGetEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := serviceToken(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/services/scene_get",
		token, `{"entity_id": "scene.movie_night"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Entities) != 1 || body.Entities[0] != "light.lounge" {
		t.Errorf("entities = %v", body.Entities)
	}
}

func TestSceneEntitiesByID(t *testing.T) {
	srv := newTestServer(t)
	token := serviceToken(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/scenes/1679952001/entities", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/scenes/nope/entities", token, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown scene: status = %d, want 404", rec.Code)
	}
}

func TestCapturesWithoutHistory(t *testing.T) {
	srv := newTestServer(t)
	token := serviceToken(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/captures", token, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when history is unconfigured", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", got)
	}

	// A generated ID appears when none is supplied
	rec = doRequest(t, srv, http.MethodGet, "/api/v1/health", "", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Deps{Logger: logging.Default()})
	if err == nil {
		t.Error("expected error without capture service")
	}

	_, err = New(Deps{})
	if err == nil {
		t.Error("expected error without logger")
	}
}
