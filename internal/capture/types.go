package capture

import (
	"context"
	"time"

	"github.com/smartqasa/scene-capture/internal/hass"
)

// AttributeMap holds the serialised attributes captured for one entity.
// Values are always YAML-safe scalars, sequences, or nested maps.
type AttributeMap map[string]any

// EntityMap holds captured state keyed by entity ID, as it appears under a
// scene record's entities key. Each value is an AttributeMap whose "state"
// key carries the entity's state string.
type EntityMap map[string]AttributeMap

// Status categorises the outcome of a capture.
type Status string

// Capture outcomes.
const (
	// StatusCompleted means every entity in the scene was captured.
	StatusCompleted Status = "completed"

	// StatusPartial means at least one entity was captured and at least one
	// was skipped.
	StatusPartial Status = "partial"

	// StatusFailed means no entity could be captured, or the write failed.
	StatusFailed Status = "failed"
)

// Skipped records one entity that could not be captured and why.
type Skipped struct {
	EntityID string `json:"entity_id" yaml:"entity_id"`
	Reason   string `json:"reason"    yaml:"reason"`
}

// Result reports the outcome of a capture operation.
type Result struct {
	// SceneID is the scenes.yaml record id that was targeted.
	SceneID string `json:"scene_id"`

	// EntityID is the scene entity the capture was requested against,
	// empty when the caller addressed the record id directly.
	EntityID string `json:"entity_id,omitempty"`

	// Status is completed, partial, or failed.
	Status Status `json:"status"`

	// Updated lists entity IDs whose captured state was written.
	Updated []string `json:"updated"`

	// Skipped lists entities that kept their previous attributes.
	Skipped []Skipped `json:"skipped,omitempty"`

	// Duration is the wall time of the whole capture.
	Duration time.Duration `json:"-"`

	// DurationMS is Duration in milliseconds for transport payloads.
	DurationMS int64 `json:"duration_ms"`
}

// StateProvider supplies live entity states. Implemented by hass.Client;
// tests substitute an in-memory provider.
type StateProvider interface {
	// State returns a copy of the entity's current state, or false when the
	// entity is unknown.
	State(entityID string) (*hass.State, bool)
}

// ReloadNotifier asks the runtime to re-read the scenes document after a
// successful write. Implemented by hass.Client via scene.reload.
type ReloadNotifier interface {
	ReloadScenes(ctx context.Context) error
}

// Logger defines the logging interface used by the capture package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
