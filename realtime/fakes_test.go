package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

const waitFor = 2 * time.Second

// fakeScheduler records timers so tests decide when a reconnect fires.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{s: s, delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) lastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return 0
	}
	return s.timers[len(s.timers)-1].delay
}

// fire runs every armed timer, including stopped ones when force is set, to
// mimic a timer that raced its Stop.
func (s *fakeScheduler) fire(force bool) int {
	s.mu.Lock()
	var due []*fakeTimer
	for _, t := range s.timers {
		if t.fired || (t.stopped && !force) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

type frame struct {
	data []byte
	err  error
}

// fakeConn is a push connection fed by the test.
type fakeConn struct {
	url    string
	frames chan frame
	closed chan struct{}
	once   sync.Once

	mu     sync.Mutex
	writes [][]byte
}

func newFakeConn(url string) *fakeConn {
	return &fakeConn{url: url, frames: make(chan frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, NewError(ErrorDisconnected, "closed")
	case f := <-c.frames:
		return f.data, f.err
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) push(data string) { c.frames <- frame{data: []byte(data)} }

func (c *fakeConn) pushErr(err error) { c.frames <- frame{err: err} }

// drop simulates the server ending the stream.
func (c *fakeConn) drop() { c.pushErr(NewError(ErrorDisconnected, "stream ended")) }

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

type fakeTransport struct {
	mu      sync.Mutex
	urls    []string
	failing bool
	opened  chan *fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{opened: make(chan *fakeConn, 32)}
}

func (t *fakeTransport) open(url string) (*fakeConn, error) {
	t.mu.Lock()
	t.urls = append(t.urls, url)
	failing := t.failing
	t.mu.Unlock()
	if failing {
		return nil, NewError(ErrorConnection, "connection refused")
	}
	c := newFakeConn(url)
	t.opened <- c
	return c, nil
}

func (t *fakeTransport) setFailing(v bool) {
	t.mu.Lock()
	t.failing = v
	t.mu.Unlock()
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.urls)
}

func (t *fakeTransport) lastURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.urls) == 0 {
		return ""
	}
	return t.urls[len(t.urls)-1]
}

func (t *fakeTransport) waitConn(tb testing.TB) *fakeConn {
	tb.Helper()
	select {
	case c := <-t.opened:
		return c
	case <-time.After(waitFor):
		tb.Fatalf("no connection opened")
		return nil
	}
}

func (t *fakeTransport) sse() Transport { return sseFake{t} }

func (t *fakeTransport) ws() DuplexTransport { return wsFake{t} }

type sseFake struct{ t *fakeTransport }

func (f sseFake) Open(_ context.Context, url string) (Conn, error) {
	c, err := f.t.open(url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type wsFake struct{ t *fakeTransport }

func (f wsFake) Open(_ context.Context, url string) (DuplexConn, error) {
	c, err := f.t.open(url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// mutableCreds lets a test rotate credentials between reconnects.
type mutableCreds struct {
	mu    sync.Mutex
	admin string
	token string
}

func (c *mutableCreds) AdminKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

func (c *mutableCreds) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *mutableCreds) setToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordLogger) add(level, msg string, fields map[string]any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
	l.mu.Unlock()
}

func (l *recordLogger) Debug(msg string, f map[string]any) { l.add("debug", msg, f) }
func (l *recordLogger) Info(msg string, f map[string]any)  { l.add("info", msg, f) }
func (l *recordLogger) Warn(msg string, f map[string]any)  { l.add("warn", msg, f) }
func (l *recordLogger) Error(msg string, f map[string]any) { l.add("error", msg, f) }

func (l *recordLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, msg) {
			return true
		}
	}
	return false
}

func (l *recordLogger) dump() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var b strings.Builder
	for _, e := range l.entries {
		fmt.Fprintf(&b, "%s %s %v\n", e.level, e.msg, e.fields)
	}
	return b.String()
}

// stateRecorder collects StateEvents in order.
type stateRecorder struct {
	mu  sync.Mutex
	evs []StateEvent
}

func (r *stateRecorder) record(ev StateEvent) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *stateRecorder) states(aud Audience) []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ConnectionState
	for _, ev := range r.evs {
		if ev.Audience == aud {
			out = append(out, ev.NewState)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.APIBaseURL = "http://api.test/"
	cfg.RealtimeBaseURL = "https://rt.test"
	return cfg
}

const orderCreated = `{"resource":"order","resource_type":"orders.created","data":{"order_id":"o-1"}}`
