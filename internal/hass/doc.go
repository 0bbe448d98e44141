// Package hass provides a Home Assistant WebSocket API client.
//
// The client maintains a persistent connection to a Home Assistant instance,
// authenticating with a long-lived access token. On connect it takes a full
// entity state snapshot and then tracks state_changed events, so entity
// lookups are served from an in-memory registry without a network round trip.
//
// Connection loss is handled transparently: a supervisor goroutine
// re-establishes the connection with exponential backoff and re-syncs the
// snapshot, while in-flight calls fail fast with ErrNotConnected.
//
// Services are invoked over the same connection via CallService, with
// ReloadScenes as a convenience for the scene.reload service used after
// scene captures.
package hass
