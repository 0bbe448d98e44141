package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/smartqasa/scene-capture/internal/hass"
)

// Retry schedule for state resolution. Waits before attempts 2 and 3 are
// 250ms and 500ms.
const (
	maxResolveAttempts = 3
	baseRetryDelay     = 250 * time.Millisecond
)

// Resolver fetches entity states from a StateProvider, retrying briefly when
// an entity has not settled yet. Scene captures often follow automations that
// are still writing state, so a short backoff recovers most transient misses.
type Resolver struct {
	provider StateProvider
	logger   Logger
}

// NewResolver creates a Resolver backed by the given provider.
func NewResolver(provider StateProvider, logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Resolver{provider: provider, logger: logger}
}

// Resolve returns the entity's current state, retrying up to three times
// with doubling waits between attempts.
//
// An attempt succeeds when the provider knows the entity and its state
// string is non-empty. After the final attempt fails, ErrEntityUnavailable
// is returned; callers are expected to skip the entity and continue.
//
// The waits honour ctx, so cancellation aborts the retry loop early.
func (r *Resolver) Resolve(ctx context.Context, entityID string) (*hass.State, error) {
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		if attempt > 1 {
			// 250ms before attempt 2, 500ms before attempt 3
			delay := baseRetryDelay << (attempt - 2)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("resolving %s: %w", entityID, ctx.Err())
			case <-time.After(delay):
			}
		}

		state, ok := r.provider.State(entityID)
		if ok && state.State != "" {
			return state, nil
		}

		r.logger.Debug("entity not resolved",
			"entity_id", entityID,
			"attempt", attempt,
		)
	}

	return nil, fmt.Errorf("%w: %s after %d attempts", ErrEntityUnavailable, entityID, maxResolveAttempts)
}
