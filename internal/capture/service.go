package capture

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sceneDomainPrefix is the entity ID prefix required of capture targets.
const sceneDomainPrefix = "scene."

// CaptureRecorder persists capture outcomes. Implemented by the history
// repository; nil disables recording.
type CaptureRecorder interface {
	RecordCapture(ctx context.Context, executionID string, result *Result) error
}

// MetricsRecorder publishes capture metrics. Implemented by the InfluxDB
// client; nil disables metrics.
type MetricsRecorder interface {
	WriteCaptureMetric(sceneID, status string, updated, skipped int, duration time.Duration)
}

// Service is the capture façade exposed to the transports.
//
// It validates capture targets, maps scene entity IDs to their scenes.yaml
// record via the runtime id attribute, and drives the Store with a mutator
// that re-captures every entity listed in the record. Each run is tagged
// with a UUID execution ID and, when collaborators are configured, recorded
// to history and metrics.
type Service struct {
	store      *Store
	resolver   *Resolver
	serializer *Serializer
	history    CaptureRecorder
	metrics    MetricsRecorder
	logger     Logger
}

// NewService creates the capture service.
//
// Parameters:
//   - store: Scenes document accessor
//   - resolver: Entity state resolver
//   - serializer: Attribute serialiser
//   - history: Capture history recorder (nil to disable)
//   - metrics: Capture metrics recorder (nil to disable)
//   - logger: Logger for capture events (nil for none)
func NewService(store *Store, resolver *Resolver, serializer *Serializer,
	history CaptureRecorder, metrics MetricsRecorder, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		store:      store,
		resolver:   resolver,
		serializer: serializer,
		history:    history,
		metrics:    metrics,
		logger:     logger,
	}
}

// CaptureScene captures live entity states into the scene's scenes.yaml
// record. This backs the update and scene_update service calls.
//
// The target must be a scene entity; its runtime id attribute names the
// record to rewrite. Every entity listed in the record is re-resolved and
// serialised; entities that stay unavailable keep their previous attributes
// and appear in the result's skipped list.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - entityID: Scene entity to capture (e.g., "scene.movie_night")
//
// Returns:
//   - *Result: Per-entity outcome (nil on error)
//   - error: ErrInvalidEntityID, ErrEntityUnavailable, ErrSceneIDMissing,
//     ErrSceneNotFound, ErrNoEntities, or a store failure
func (s *Service) CaptureScene(ctx context.Context, entityID string) (*Result, error) {
	start := time.Now()
	executionID := uuid.New().String()

	sceneID, err := s.lookupSceneID(ctx, entityID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("capture started",
		"execution_id", executionID,
		"entity_id", entityID,
		"scene_id", sceneID,
	)

	result, err := s.store.UpdateScene(ctx, sceneID, s.captureMutator())
	if err != nil {
		failed := &Result{
			SceneID:  sceneID,
			EntityID: entityID,
			Status:   StatusFailed,
			Updated:  []string{},
			Duration: time.Since(start),
		}
		failed.DurationMS = failed.Duration.Milliseconds()
		s.record(ctx, executionID, failed)
		return nil, err
	}

	result.EntityID = entityID
	result.Duration = time.Since(start)
	result.DurationMS = result.Duration.Milliseconds()
	s.record(ctx, executionID, result)

	return result, nil
}

// SceneEntities returns the entity IDs recorded for a scene entity. This
// backs the scene_get service call.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - entityID: Scene entity to inspect (e.g., "scene.movie_night")
//
// Returns:
//   - []string: Recorded entity IDs in document order
//   - error: ErrInvalidEntityID, ErrEntityUnavailable, ErrSceneIDMissing,
//     or ErrSceneNotFound
func (s *Service) SceneEntities(ctx context.Context, entityID string) ([]string, error) {
	sceneID, err := s.lookupSceneID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.store.SceneEntities(ctx, sceneID)
}

// SceneEntitiesByID returns the entity IDs for a scenes.yaml record
// addressed directly by its id, bypassing the runtime entity lookup.
func (s *Service) SceneEntitiesByID(ctx context.Context, sceneID string) ([]string, error) {
	return s.store.SceneEntities(ctx, sceneID)
}

// lookupSceneID validates the target and maps it to its scenes.yaml record
// id via the scene entity's runtime id attribute.
func (s *Service) lookupSceneID(ctx context.Context, entityID string) (string, error) {
	if !strings.HasPrefix(entityID, sceneDomainPrefix) {
		return "", fmt.Errorf("%w: %s", ErrInvalidEntityID, entityID)
	}

	state, err := s.resolver.Resolve(ctx, entityID)
	if err != nil {
		return "", err
	}

	sceneID, ok := state.Attributes["id"].(string)
	if !ok || sceneID == "" {
		return "", fmt.Errorf("%w: %s", ErrSceneIDMissing, entityID)
	}
	return sceneID, nil
}

// captureMutator builds the Store mutator that re-captures every entity in
// the record. Unresolved entities keep their stored attributes.
func (s *Service) captureMutator() Mutator {
	return func(ctx context.Context, current EntityMap) (*Mutation, error) {
		if len(current) == 0 {
			return nil, ErrNoEntities
		}

		replacement := make(EntityMap, len(current))
		updated := make([]string, 0, len(current))
		skipped := make([]Skipped, 0)

		for entityID, previous := range current {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			state, err := s.resolver.Resolve(ctx, entityID)
			if err != nil {
				s.logger.Warn("entity skipped, keeping previous attributes",
					"entity_id", entityID,
					"error", err,
				)
				replacement[entityID] = previous
				skipped = append(skipped, Skipped{EntityID: entityID, Reason: "unavailable"})
				continue
			}

			attrs := s.serializer.SerializeAttributes(state.Attributes)
			attrs["state"] = state.State
			replacement[entityID] = attrs
			updated = append(updated, entityID)
		}

		sort.Strings(updated)
		sort.Slice(skipped, func(i, j int) bool { return skipped[i].EntityID < skipped[j].EntityID })

		return &Mutation{Entities: replacement, Updated: updated, Skipped: skipped}, nil
	}
}

// record writes the run to history and metrics. Failures are logged, never
// surfaced: recording must not turn a successful capture into an error.
func (s *Service) record(ctx context.Context, executionID string, result *Result) {
	if s.history != nil {
		if err := s.history.RecordCapture(ctx, executionID, result); err != nil {
			s.logger.Warn("recording capture history failed",
				"execution_id", executionID,
				"error", err,
			)
		}
	}
	if s.metrics != nil {
		s.metrics.WriteCaptureMetric(result.SceneID, string(result.Status),
			len(result.Updated), len(result.Skipped), result.Duration)
	}
}
