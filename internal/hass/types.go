package hass

import (
	"encoding/json"
	"strings"
	"time"
)

// State represents the current state of a Home Assistant entity.
// This matches the state object shape of the Home Assistant WebSocket API.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// DeepCopy creates a complete independent copy of the State.
// The attribute map is cloned recursively so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (s *State) DeepCopy() *State {
	if s == nil {
		return nil
	}
	cpy := *s
	cpy.Attributes = deepCopyMap(s.Attributes)
	return &cpy
}

// Domain returns the namespace portion of the entity ID ("light" for
// "light.kitchen"). Returns "" if the ID has no namespace separator.
func (s *State) Domain() string {
	if i := strings.IndexByte(s.EntityID, '.'); i > 0 {
		return s.EntityID[:i]
	}
	return ""
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue deep copies a single value, recursing into maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, item := range val {
			cpy[i] = deepCopyValue(item)
		}
		return cpy
	default:
		// Primitives (string, float64, bool, nil) are immutable
		return v
	}
}

// message is the envelope for every frame on the WebSocket connection.
// Fields are populated depending on Type.
type message struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Error   *apiError       `json:"error,omitempty"`

	// Auth handshake fields
	AccessToken string `json:"access_token,omitempty"`
	Message     string `json:"message,omitempty"`
	HAVersion   string `json:"ha_version,omitempty"`
}

// apiError is the error object attached to failed results.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame types used by the Home Assistant WebSocket API.
const (
	msgTypeAuthRequired = "auth_required"
	msgTypeAuth         = "auth"
	msgTypeAuthOK       = "auth_ok"
	msgTypeAuthInvalid  = "auth_invalid"
	msgTypeResult       = "result"
	msgTypeEvent        = "event"
)

// stateChangedEvent is the payload of a state_changed event.
type stateChangedEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		EntityID string `json:"entity_id"`
		NewState *State `json:"new_state"`
		OldState *State `json:"old_state"`
	} `json:"data"`
}
