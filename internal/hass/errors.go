package hass

import "errors"

// Domain-specific errors for the Home Assistant client.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("hass: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("hass: connection failed")

	// ErrAuthFailed is returned when the access token is rejected.
	ErrAuthFailed = errors.New("hass: authentication failed")

	// ErrCallFailed is returned when a WebSocket command returns an error result.
	ErrCallFailed = errors.New("hass: call failed")

	// ErrTimeout is returned when a WebSocket command times out.
	ErrTimeout = errors.New("hass: operation timed out")
)
