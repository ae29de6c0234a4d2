package realtime

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SSEClient holds at most one admin and one user event stream. Every decoded
// event goes to the listeners of its audience and then into the store.
type SSEClient struct {
	cfg       Config
	creds     CredentialSource
	store     *NotificationStore
	transport Transport
	logger    Logger
	now       func() time.Time

	mu       sync.Mutex
	channels [2]*sseChannel
	states   [2]ConnectionState
	retry    [2]*retryPolicy

	listeners      [2]listenerSet[RealtimeEvent]
	stateListeners listenerSet[StateEvent]
}

type sseChannel struct {
	audience Audience
	userID   string
	url      string
	cancel   context.CancelFunc
	conn     Conn

	// closed is set under mu when the channel stops being current.
	closed atomic.Bool
}

// NewSSEClient builds a disconnected client. A nil store gets a fresh one.
func NewSSEClient(cfg Config, creds CredentialSource, store *NotificationStore, opts ...Option) *SSEClient {
	o := buildOptions(opts)
	if store == nil {
		store = NewNotificationStore(cfg.NotificationLimit)
	}
	if creds == nil {
		creds = StaticCredentials{}
	}
	transport := o.sseTransport
	if transport == nil {
		transport = NewSSETransport(cfg.HTTPClient)
	}
	c := &SSEClient{
		cfg:       cfg,
		creds:     creds,
		store:     store,
		transport: transport,
		logger:    o.logger,
		now:       o.now,
	}
	for i := range c.retry {
		// SSE retries without a cap
		c.retry[i] = newRetryPolicy(o.scheduler, cfg.ReconnectDelay, 0)
	}
	return c
}

// Store returns the notification store fed by this client.
func (c *SSEClient) Store() *NotificationStore { return c.store }

// OnAdminEvent registers fn for admin stream events.
func (c *SSEClient) OnAdminEvent(fn func(RealtimeEvent)) (unsubscribe func()) {
	return c.listeners[AudienceAdmin].add(fn)
}

// OnUserEvent registers fn for user stream events.
func (c *SSEClient) OnUserEvent(fn func(RealtimeEvent)) (unsubscribe func()) {
	return c.listeners[AudienceUser].add(fn)
}

// OnStateChanged registers fn for connection state transitions of both audiences.
func (c *SSEClient) OnStateChanged(fn func(StateEvent)) (unsubscribe func()) {
	return c.stateListeners.add(fn)
}

// State reports the connection state of one audience.
func (c *SSEClient) State(aud Audience) ConnectionState {
	if !validAudience(aud) {
		return StateDisconnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[aud]
}

// UserID returns the user the live user stream is scoped to, or "".
func (c *SSEClient) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch := c.channels[AudienceUser]; ch != nil {
		return ch.userID
	}
	return ""
}

// ConnectAdmin opens the admin stream in the background. It returns an
// ErrorAlreadyConnected error when a stream exists and an
// ErrorMissingCredential error when no admin key is available.
func (c *SSEClient) ConnectAdmin() error {
	c.mu.Lock()
	evs, err := c.connectAdminLocked()
	c.mu.Unlock()
	c.emitStates(evs)
	return err
}

func (c *SSEClient) connectAdminLocked() ([]StateEvent, error) {
	if c.channels[AudienceAdmin] != nil {
		return nil, NewError(ErrorAlreadyConnected, "admin stream already exists")
	}
	key := c.creds.AdminKey()
	if key == "" {
		c.logger.Warn("no admin key found for SSE connection", nil)
		return nil, NewError(ErrorMissingCredential, "admin key not set")
	}
	c.retry[AudienceAdmin].cancel()

	u := c.cfg.apiBase() + "/admin/sse?admin_key=" + url.QueryEscape(key)
	return c.openLocked(AudienceAdmin, "", u), nil
}

// ConnectUser replaces any user stream with one scoped to userID. It returns
// an ErrorMissingCredential error when the access token is empty or blank.
func (c *SSEClient) ConnectUser(userID string) error {
	c.mu.Lock()
	conn, evs, err := c.connectUserLocked(userID)
	c.mu.Unlock()
	closeQuietly(conn)
	c.emitStates(evs)
	return err
}

func (c *SSEClient) connectUserLocked(userID string) (Conn, []StateEvent, error) {
	stale, evs := c.teardownLocked(AudienceUser)

	token := c.creds.AccessToken()
	if strings.TrimSpace(token) == "" {
		c.logger.Warn("no token found for user SSE connection", map[string]any{"user_id": userID})
		return stale, evs, NewError(ErrorMissingCredential, "access token not set")
	}

	u := c.cfg.apiBase() + "/user/sse/notification/" + url.PathEscape(userID) + "?token=" + url.QueryEscape(token)
	c.logger.Info("connecting to user SSE", map[string]any{
		"user_id":      userID,
		"url":          redactToken(u),
		"token_length": len(token),
	})
	return stale, append(evs, c.openLocked(AudienceUser, userID, u)...), nil
}

// DisconnectAdmin cancels any pending reconnect and closes the admin stream.
func (c *SSEClient) DisconnectAdmin() { c.disconnect(AudienceAdmin) }

// DisconnectUser cancels any pending reconnect and closes the user stream.
func (c *SSEClient) DisconnectUser() { c.disconnect(AudienceUser) }

// Close disconnects both audiences.
func (c *SSEClient) Close() error {
	c.DisconnectAdmin()
	c.DisconnectUser()
	return nil
}

func (c *SSEClient) disconnect(aud Audience) {
	c.mu.Lock()
	conn, evs := c.teardownLocked(aud)
	c.mu.Unlock()
	closeQuietly(conn)
	c.emitStates(evs)
}

// teardownLocked drops the channel of aud and its pending reconnect. The
// returned conn must be closed by the caller once the lock is released.
func (c *SSEClient) teardownLocked(aud Audience) (Conn, []StateEvent) {
	c.retry[aud].cancel()
	ch := c.channels[aud]
	if ch == nil {
		return nil, c.setStateLocked(aud, StateDisconnected, nil)
	}
	c.channels[aud] = nil
	ch.closed.Store(true)
	ch.cancel()
	return ch.conn, c.setStateLocked(aud, StateDisconnected, nil)
}

func (c *SSEClient) openLocked(aud Audience, userID, rawURL string) []StateEvent {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &sseChannel{audience: aud, userID: userID, url: rawURL, cancel: cancel}
	c.channels[aud] = ch
	evs := c.setStateLocked(aud, StateConnecting, nil)
	go c.run(ctx, ch)
	return evs
}

func (c *SSEClient) run(ctx context.Context, ch *sseChannel) {
	conn, err := c.transport.Open(ctx, ch.url)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if !IsClosure(err) {
			err = WrapError(ErrorConnection, "open event stream", err)
		}
		c.handleClosure(ch, err)
		return
	}

	c.mu.Lock()
	if c.channels[ch.audience] != ch {
		c.mu.Unlock()
		closeQuietly(conn)
		return
	}
	ch.conn = conn
	evs := c.setStateLocked(ch.audience, StateOpen, nil)
	c.mu.Unlock()
	c.emitStates(evs)
	c.logger.Info("SSE connection opened", map[string]any{"audience": ch.audience.String()})

	for {
		data, err := conn.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if IsClosure(err) {
				c.handleClosure(ch, err)
				return
			}
			c.logger.Warn("SSE stream error", map[string]any{"audience": ch.audience.String(), "error": err.Error()})
			continue
		}
		c.deliver(ch, data)
	}
}

func (c *SSEClient) deliver(ch *sseChannel, data []byte) {
	var ev RealtimeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Error("failed to parse SSE message", map[string]any{
			"audience": ch.audience.String(),
			"error":    err.Error(),
		})
		return
	}

	// A listener may replace the channel mid-fanout. Remaining listeners and
	// the store then skip the event; a listener already running is not stopped.
	live := func() bool { return !ch.closed.Load() }
	if !live() {
		return
	}
	c.listeners[ch.audience].emitWhile(ev, live)
	if live() {
		c.store.Add(NewNotification(ev, c.now()))
	}
}

func (c *SSEClient) handleClosure(ch *sseChannel, cause error) {
	aud := ch.audience
	c.mu.Lock()
	if c.channels[aud] != ch {
		c.mu.Unlock()
		return
	}
	c.channels[aud] = nil
	ch.closed.Store(true)
	ch.cancel()
	conn := ch.conn
	evs := c.setStateLocked(aud, StateErrored, cause)
	scheduled, _ := c.retry[aud].schedule(func(token uint64) {
		c.fireRetry(aud, token, ch.userID)
	})
	c.mu.Unlock()

	closeQuietly(conn)
	fields := map[string]any{"audience": aud.String(), "error": cause.Error()}
	if scheduled {
		fields["retry_in"] = c.cfg.ReconnectDelay.String()
	}
	c.logger.Warn("SSE connection closed, will attempt to reconnect", fields)
	c.emitStates(evs)
}

func (c *SSEClient) fireRetry(aud Audience, token uint64, userID string) {
	c.mu.Lock()
	if !c.retry[aud].take(token) {
		c.mu.Unlock()
		return
	}
	var (
		stale Conn
		evs   []StateEvent
	)
	switch aud {
	case AudienceAdmin:
		var err error
		evs, err = c.connectAdminLocked()
		if IsMissingCredential(err) {
			evs = append(evs, c.setStateLocked(aud, StateDisconnected, err)...)
		}
	case AudienceUser:
		stale, evs, _ = c.connectUserLocked(userID)
	}
	c.mu.Unlock()

	closeQuietly(stale)
	c.emitStates(evs)
}

func (c *SSEClient) setStateLocked(aud Audience, s ConnectionState, cause error) []StateEvent {
	old := c.states[aud]
	if old == s {
		return nil
	}
	c.states[aud] = s
	return []StateEvent{{Audience: aud, OldState: old, NewState: s, Error: cause}}
}

func (c *SSEClient) emitStates(evs []StateEvent) {
	for _, ev := range evs {
		c.stateListeners.emit(ev)
	}
}

func validAudience(aud Audience) bool {
	return aud == AudienceAdmin || aud == AudienceUser
}

func closeQuietly(conn Conn) {
	if conn != nil {
		_ = conn.Close()
	}
}

var tokenParam = regexp.MustCompile(`(token|admin_key)=[^&]*`)

func redactToken(u string) string {
	return tokenParam.ReplaceAllString(u, "$1=***")
}
