package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartqasa/scene-capture/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultDialTimeout is the maximum time for the WebSocket handshake.
	defaultDialTimeout = 10 * time.Second

	// defaultCallTimeout is the maximum time to wait for a command result.
	defaultCallTimeout = 10 * time.Second

	// defaultWriteTimeout bounds each frame write.
	defaultWriteTimeout = 10 * time.Second

	// reconnectBackoffFactor doubles the delay between reconnect attempts.
	reconnectBackoffFactor = 2
)

// Logger defines the logging interface used by the Client.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is a Home Assistant WebSocket API client.
//
// It authenticates with a long-lived access token, takes a full get_states
// snapshot on connect, and keeps an in-memory state registry current via a
// state_changed event subscription. Lost connections are re-established with
// exponential backoff and the snapshot is re-synced.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg    config.HomeAssistantConfig
	logger Logger

	// conn is the active WebSocket connection; writes are serialised by writeMu
	// (gorilla/websocket permits only one concurrent writer).
	conn    *websocket.Conn
	connsMu sync.RWMutex
	writeMu sync.Mutex

	// nextID numbers outgoing commands per the Home Assistant protocol.
	nextID atomic.Int64

	// pending maps command IDs to result channels.
	pending   map[int64]chan message
	pendingMu sync.Mutex

	// readDone carries the read loop's exit error to the supervisor.
	readDone chan error

	// registry caches entity states.
	registry *stateRegistry

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// closed is set by Close() to stop the supervisor.
	closed atomic.Bool

	// Callbacks for connection events (optional).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// Connect establishes a connection to the Home Assistant WebSocket API.
//
// It performs the following setup:
//  1. Dials the WebSocket endpoint and completes the token auth handshake
//  2. Subscribes to state_changed events
//  3. Takes a full get_states snapshot into the state registry
//  4. Starts a supervisor that reconnects with exponential backoff
//
// The supervisor runs until ctx is cancelled or Close() is called.
//
// Parameters:
//   - ctx: Lifetime context for the connection supervisor
//   - cfg: Home Assistant configuration from config.yaml
//   - logger: Logger for connection events (nil for none)
//
// Returns:
//   - *Client: Connected client with a populated state registry
//   - error: If the initial connection or handshake fails
func Connect(ctx context.Context, cfg config.HomeAssistantConfig, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		pending:  make(map[int64]chan message),
		registry: newStateRegistry(),
	}

	if err := c.establish(ctx); err != nil {
		return nil, err
	}

	go c.supervise(ctx)

	return c, nil
}

// establish dials, authenticates, starts the read loop, subscribes to
// events, and syncs the state snapshot.
func (c *Client) establish(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.connsMu.Lock()
	c.conn = conn
	c.readDone = make(chan error, 1)
	c.connsMu.Unlock()

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	go c.readLoop(conn)

	if err := c.subscribeStateChanges(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("subscribing to state changes: %w", err)
	}

	if err := c.syncStates(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("syncing states: %w", err)
	}

	c.logger.Info("connected to Home Assistant", "entities", c.registry.count())
	return nil
}

// dial opens the WebSocket connection and completes the auth handshake.
//
// The handshake happens before the read loop starts, so frames are read
// directly here:
//
//	server: {"type": "auth_required"}
//	client: {"type": "auth", "access_token": "..."}
//	server: {"type": "auth_ok"} or {"type": "auth_invalid"}
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultDialTimeout}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	var greeting message
	if err := conn.ReadJSON(&greeting); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: reading greeting: %w", ErrConnectionFailed, err)
	}
	if greeting.Type != msgTypeAuthRequired {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: unexpected greeting %q", ErrConnectionFailed, greeting.Type)
	}

	auth := message{Type: msgTypeAuth, AccessToken: c.cfg.Token}
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: sending auth: %w", ErrConnectionFailed, err)
	}

	var reply message
	if err := conn.ReadJSON(&reply); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: reading auth reply: %w", ErrConnectionFailed, err)
	}

	switch reply.Type {
	case msgTypeAuthOK:
		return conn, nil
	case msgTypeAuthInvalid:
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, reply.Message)
	default:
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: unexpected auth reply %q", ErrAuthFailed, reply.Type)
	}
}

// supervise reconnects with exponential backoff after the read loop exits.
func (c *Client) supervise(ctx context.Context) {
	for {
		c.connsMu.RLock()
		readDone := c.readDone
		c.connsMu.RUnlock()

		var readErr error
		select {
		case <-ctx.Done():
			return
		case readErr = <-readDone:
		}

		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()

		c.failPending()

		if c.closed.Load() || ctx.Err() != nil {
			return
		}

		c.logger.Warn("Home Assistant connection lost", "error", readErr)
		c.notifyDisconnect(readErr)

		if !c.reconnect(ctx) {
			return
		}

		c.notifyConnect()
	}
}

// reconnect retries establish() with exponential backoff.
// Returns false when the context is cancelled, the client is closed, or the
// configured attempt limit is reached.
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.cfg.GetReconnectInitialDelay()
	maxDelay := c.cfg.GetReconnectMaxDelay()
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if c.closed.Load() {
			return false
		}

		attempts++
		err := c.establish(ctx)
		if err == nil {
			c.logger.Info("Home Assistant reconnected", "attempts", attempts)
			return true
		}
		c.logger.Warn("Home Assistant reconnect failed",
			"attempt", attempts,
			"next_delay", delay.String(),
			"error", err,
		)

		if c.cfg.Reconnect.MaxAttempts > 0 && attempts >= c.cfg.Reconnect.MaxAttempts {
			c.logger.Error("Home Assistant reconnect attempts exhausted", "attempts", attempts)
			return false
		}

		delay *= reconnectBackoffFactor
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// readLoop reads frames until the connection fails, dispatching results to
// pending calls and events to the state registry.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var m message
		if err := conn.ReadJSON(&m); err != nil {
			c.connsMu.RLock()
			readDone := c.readDone
			c.connsMu.RUnlock()
			readDone <- err
			return
		}

		switch m.Type {
		case msgTypeResult:
			c.dispatchResult(m)
		case msgTypeEvent:
			c.handleEvent(m.Event)
		default:
			// pong frames and future message types are ignored
		}
	}
}

// dispatchResult delivers a result frame to the waiting caller.
func (c *Client) dispatchResult(m message) {
	c.pendingMu.Lock()
	ch, ok := c.pending[m.ID]
	if ok {
		delete(c.pending, m.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- m
	}
}

// handleEvent applies a state_changed event to the registry.
func (c *Client) handleEvent(raw json.RawMessage) {
	var ev stateChangedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Warn("malformed event payload", "error", err)
		return
	}
	if ev.EventType != "state_changed" {
		return
	}

	if ev.Data.NewState == nil {
		// Entity removed from Home Assistant
		c.registry.remove(ev.Data.EntityID)
		return
	}
	c.registry.set(ev.Data.NewState)
}

// failPending closes all outstanding result channels so blocked callers
// fail fast with ErrNotConnected instead of waiting out their timeout.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends a command and waits for its result frame.
func (c *Client) call(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	id := c.nextID.Add(1)
	payload["id"] = id

	ch := make(chan message, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeJSON(payload); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("hass call: %w", ctx.Err())
	case <-time.After(defaultCallTimeout):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, ErrTimeout
	case m, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if m.Success != nil && !*m.Success {
			if m.Error != nil {
				return nil, fmt.Errorf("%w: %s (%s)", ErrCallFailed, m.Error.Message, m.Error.Code)
			}
			return nil, ErrCallFailed
		}
		return m.Result, nil
	}
}

// writeJSON writes a single frame, serialising concurrent writers.
func (c *Client) writeJSON(v any) error {
	c.connsMu.RLock()
	conn := c.conn
	c.connsMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)) //nolint:errcheck // Deadline errors surface on write
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// subscribeStateChanges subscribes to state_changed events.
func (c *Client) subscribeStateChanges(ctx context.Context) error {
	_, err := c.call(ctx, map[string]any{
		"type":       "subscribe_events",
		"event_type": "state_changed",
	})
	return err
}

// syncStates replaces the registry with a full get_states snapshot.
func (c *Client) syncStates(ctx context.Context) error {
	result, err := c.call(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return err
	}

	var states []State
	if err := json.Unmarshal(result, &states); err != nil {
		return fmt.Errorf("decoding states: %w", err)
	}

	c.registry.replaceAll(states)
	return nil
}

// State retrieves the current state of an entity from the registry cache.
// The returned state is a deep copy; callers can safely modify it.
func (c *Client) State(entityID string) (*State, bool) {
	return c.registry.get(entityID)
}

// AllStates returns every known entity state keyed by entity ID.
// The returned states are deep copies; callers can safely modify them.
func (c *Client) AllStates() map[string]*State {
	return c.registry.all()
}

// StateCount returns the number of entities in the registry cache.
func (c *Client) StateCount() int {
	return c.registry.count()
}

// CallService invokes a Home Assistant service.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - domain: Service domain (e.g., "scene")
//   - service: Service name (e.g., "reload")
//   - data: Optional service data (nil for none)
//
// Returns:
//   - error: If the client is disconnected or Home Assistant rejects the call
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	payload := map[string]any{
		"type":    "call_service",
		"domain":  domain,
		"service": service,
	}
	if len(data) > 0 {
		payload["service_data"] = data
	}

	_, err := c.call(ctx, payload)
	return err
}

// ReloadScenes asks Home Assistant to re-read scenes.yaml from disk.
// Called after every successful capture so the running instance picks up
// the rewritten document.
func (c *Client) ReloadScenes(ctx context.Context) error {
	return c.CallService(ctx, "scene", "reload", nil)
}

// HealthCheck verifies the WebSocket connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("hass health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// SetOnConnect sets a callback invoked after every successful reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

func (c *Client) notifyConnect() {
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) notifyDisconnect(err error) {
	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Close shuts down the client and stops the reconnect supervisor.
func (c *Client) Close() error {
	c.closed.Store(true)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.connsMu.RLock()
	conn := c.conn
	c.connsMu.RUnlock()

	if conn != nil {
		// Best-effort close frame; the read loop exits on the closed socket
		deadline := time.Now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage, //nolint:errcheck // Best effort close frame
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		return conn.Close()
	}
	return nil
}
