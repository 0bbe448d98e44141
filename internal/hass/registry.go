package hass

import "sync"

// stateRegistry is an in-memory cache of entity states, kept current by the
// client's state_changed event subscription.
//
// All methods are safe for concurrent use. Returned states are deep copies
// so callers can never mutate the cache.
type stateRegistry struct {
	mu     sync.RWMutex
	states map[string]*State
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{
		states: make(map[string]*State),
	}
}

// replaceAll rebuilds the cache from a full get_states snapshot.
// Called on connect and after every reconnect.
func (r *stateRegistry) replaceAll(states []State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = make(map[string]*State, len(states))
	for i := range states {
		s := states[i]
		r.states[s.EntityID] = s.DeepCopy()
	}
}

// set stores or replaces a single entity state.
func (r *stateRegistry) set(s *State) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.states[s.EntityID] = s.DeepCopy()
	r.mu.Unlock()
}

// remove drops an entity from the cache (entity removed from Home Assistant).
func (r *stateRegistry) remove(entityID string) {
	r.mu.Lock()
	delete(r.states, entityID)
	r.mu.Unlock()
}

// get retrieves a single entity state.
// The returned state is a deep copy; callers can safely modify it.
func (r *stateRegistry) get(entityID string) (*State, bool) {
	r.mu.RLock()
	s, ok := r.states[entityID]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return s.DeepCopy(), true
}

// all returns every cached entity state keyed by entity ID.
// The returned states are deep copies; callers can safely modify them.
func (r *stateRegistry) all() map[string]*State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]*State, len(r.states))
	for id, s := range r.states {
		states[id] = s.DeepCopy()
	}
	return states
}

// count returns the number of cached entities.
func (r *stateRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
