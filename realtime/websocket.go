package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

const defaultMaxReconnectAttempts = 5

// WSClient keeps one broadcast WebSocket open, toasting notifications and
// routing every frame to the handler registered for its type. Unlike the SSE
// channels it gives up after a bounded number of reconnects.
type WSClient struct {
	cfg        Config
	url        string
	transport  DuplexTransport
	logger     Logger
	dispatcher *Dispatcher

	mu      sync.Mutex
	state   ConnectionState
	session *wsSession
	retry   *retryPolicy

	stateListeners listenerSet[StateEvent]
}

type wsSession struct {
	cancel context.CancelFunc
	conn   DuplexConn
}

// NewWSClient builds the client and immediately starts connecting.
func NewWSClient(cfg Config, opts ...Option) *WSClient {
	o := buildOptions(opts)
	transport := o.wsTransport
	if transport == nil {
		transport = NewWebSocketTransport(cfg)
	}
	toaster := o.toaster
	if toaster == nil {
		toaster = LogToaster{Logger: o.logger}
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxReconnectAttempts
	}

	c := &WSClient{
		cfg:        cfg,
		url:        cfg.WebSocketURL(),
		transport:  transport,
		logger:     o.logger,
		dispatcher: newDispatcher(toaster, o.logger),
		retry:      newRetryPolicy(o.scheduler, cfg.ReconnectDelay, maxAttempts),
	}
	c.Connect()
	return c
}

// Connect starts a connection attempt unless one is already connecting or open.
func (c *WSClient) Connect() {
	c.mu.Lock()
	evs := c.connectLocked()
	c.mu.Unlock()
	c.emitStates(evs)
}

// Reconnect drops any pending retry, resets the attempt budget and connects.
func (c *WSClient) Reconnect() {
	c.mu.Lock()
	c.retry.cancel()
	c.retry.reset()
	evs := c.connectLocked()
	c.mu.Unlock()
	c.emitStates(evs)
}

// Disconnect closes the socket without scheduling a reconnect.
func (c *WSClient) Disconnect() {
	c.mu.Lock()
	c.retry.cancel()
	sess := c.session
	c.session = nil
	if sess != nil {
		sess.cancel()
	}
	evs := c.setStateLocked(StateDisconnected, nil)
	c.mu.Unlock()

	if sess != nil && sess.conn != nil {
		_ = sess.conn.Close()
	}
	c.emitStates(evs)
}

// Close is Disconnect for io.Closer.
func (c *WSClient) Close() error {
	c.Disconnect()
	return nil
}

// SendMessage JSON-encodes payload and writes it. It fails with an
// ErrorNotConnected error when the socket is not open.
func (c *WSClient) SendMessage(ctx context.Context, payload any) error {
	c.mu.Lock()
	var conn DuplexConn
	if c.state == StateOpen && c.session != nil {
		conn = c.session.conn
	}
	c.mu.Unlock()

	if conn == nil {
		c.logger.Warn("websocket is not connected", nil)
		return NewError(ErrorNotConnected, "websocket is not connected")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return WrapError(ErrorSerialization, "failed to marshal message", err)
	}
	return conn.Write(ctx, data)
}

// IsConnected reports whether the socket is open.
func (c *WSClient) IsConnected() bool {
	return c.State() == StateOpen
}

func (c *WSClient) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the reconnects spent since the last successful open.
func (c *WSClient) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry.attempts
}

// OnMessage registers the handler for frames of msgType. A later call for the
// same type replaces it.
func (c *WSClient) OnMessage(msgType string, fn func(data json.RawMessage)) {
	c.dispatcher.SetHandler(msgType, fn)
}

// OffMessage removes the handler for msgType.
func (c *WSClient) OffMessage(msgType string) {
	c.dispatcher.RemoveHandler(msgType)
}

// OnStateChanged registers fn for connection state transitions.
func (c *WSClient) OnStateChanged(fn func(StateEvent)) (unsubscribe func()) {
	return c.stateListeners.add(fn)
}

func (c *WSClient) connectLocked() []StateEvent {
	if c.state == StateConnecting || c.state == StateOpen {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess := &wsSession{cancel: cancel}
	c.session = sess
	evs := c.setStateLocked(StateConnecting, nil)
	go c.run(ctx, sess)
	return evs
}

func (c *WSClient) run(ctx context.Context, sess *wsSession) {
	conn, err := c.transport.Open(ctx, c.url)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("websocket error", map[string]any{"url": c.url, "error": err.Error()})
		c.handleClose(sess, err)
		return
	}

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	sess.conn = conn
	c.retry.reset()
	evs := c.setStateLocked(StateOpen, nil)
	c.mu.Unlock()
	c.emitStates(evs)
	c.logger.Info("websocket connected", map[string]any{"url": c.url})

	for {
		data, err := conn.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if IsClosure(err) {
				c.handleClose(sess, err)
				return
			}
			c.logger.Warn("websocket read error", map[string]any{"error": err.Error()})
			continue
		}
		if err := c.dispatcher.Dispatch(data); err != nil {
			c.logger.Error("error parsing websocket message", map[string]any{"error": err.Error()})
		}
	}
}

func (c *WSClient) handleClose(sess *wsSession, cause error) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}
	c.session = nil
	sess.cancel()
	evs := c.setStateLocked(StateErrored, cause)
	scheduled, exhausted := c.retry.schedule(c.fireRetry)
	attempt := c.retry.attempts
	limit := c.retry.maxAttempts
	c.mu.Unlock()

	if sess.conn != nil {
		_ = sess.conn.Close()
	}
	c.logger.Info("websocket disconnected", nil)
	switch {
	case scheduled:
		c.logger.Info("attempting to reconnect", map[string]any{"attempt": attempt, "max": limit})
	case exhausted:
		c.logger.Error("max reconnection attempts reached", map[string]any{"max": limit})
	}
	c.emitStates(evs)
}

func (c *WSClient) fireRetry(token uint64) {
	c.mu.Lock()
	if !c.retry.take(token) {
		c.mu.Unlock()
		return
	}
	evs := c.connectLocked()
	c.mu.Unlock()
	c.emitStates(evs)
}

func (c *WSClient) setStateLocked(s ConnectionState, cause error) []StateEvent {
	old := c.state
	if old == s {
		return nil
	}
	c.state = s
	return []StateEvent{{Audience: AudienceBroadcast, OldState: old, NewState: s, Error: cause}}
}

func (c *WSClient) emitStates(evs []StateEvent) {
	for _, ev := range evs {
		c.stateListeners.emit(ev)
	}
}
