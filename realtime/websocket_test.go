package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type wsHarness struct {
	client *WSClient
	tr     *fakeTransport
	sched  *fakeScheduler
	log    *recordLogger
	toasts chan Toast
}

func newWSHarness(t *testing.T, failing bool) *wsHarness {
	t.Helper()
	h := &wsHarness{
		tr:     newFakeTransport(),
		sched:  &fakeScheduler{},
		log:    &recordLogger{},
		toasts: make(chan Toast, 8),
	}
	h.tr.setFailing(failing)
	h.client = NewWSClient(testConfig(),
		WithWSTransport(h.tr.ws()),
		WithScheduler(h.sched),
		WithLogger(h.log),
		WithToaster(ToasterFunc(func(ts Toast) { h.toasts <- ts })),
	)
	t.Cleanup(func() { _ = h.client.Close() })
	return h
}

func (h *wsHarness) waitState(t *testing.T, want ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == want },
		waitFor, 5*time.Millisecond, "state never became %s\n%s", want, h.log.dump())
}

func (h *wsHarness) waitPending(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sched.pending() == 1 }, waitFor, 5*time.Millisecond)
}

func TestWSConnectsOnConstruction(t *testing.T) {
	h := newWSHarness(t, false)

	conn := h.tr.waitConn(t)
	require.Equal(t, "wss://rt.test/api/ws", conn.url)
	h.waitState(t, StateOpen)
	require.True(t, h.client.IsConnected())

	h.client.Connect()
	h.client.Reconnect()
	require.Equal(t, 1, h.tr.openCount())
}

func TestWSGivesUpAfterFiveRetries(t *testing.T) {
	h := newWSHarness(t, true)

	for i := 1; i <= 5; i++ {
		h.waitPending(t)
		require.Equal(t, i, h.client.Attempts())
		h.sched.fire(false)
	}

	require.Eventually(t, func() bool { return h.log.has("error", "max reconnection attempts reached") },
		waitFor, 5*time.Millisecond, h.log.dump())
	require.Zero(t, h.sched.pending())
	require.Equal(t, 6, h.tr.openCount())
	require.Equal(t, StateErrored, h.client.State())
	require.True(t, h.log.has("info", "attempting to reconnect"))
}

func TestWSReconnectResetsBudget(t *testing.T) {
	h := newWSHarness(t, true)

	for i := 0; i < 5; i++ {
		h.waitPending(t)
		h.sched.fire(false)
	}
	require.Eventually(t, func() bool { return h.tr.openCount() == 6 }, waitFor, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.log.has("error", "max reconnection") }, waitFor, 5*time.Millisecond)

	h.tr.setFailing(false)
	h.client.Reconnect()
	h.tr.waitConn(t)
	h.waitState(t, StateOpen)
	require.Zero(t, h.client.Attempts())
}

func TestWSOpenResetsAttempts(t *testing.T) {
	h := newWSHarness(t, true)

	h.waitPending(t)
	require.Equal(t, 1, h.client.Attempts())

	h.tr.setFailing(false)
	h.sched.fire(false)
	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)
	require.Zero(t, h.client.Attempts())

	conn.drop()
	h.waitPending(t)
	require.Equal(t, 1, h.client.Attempts())
	require.Equal(t, 3*time.Second, h.sched.lastDelay())
}

func TestWSDisconnectStopsReconnecting(t *testing.T) {
	h := newWSHarness(t, false)

	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)

	h.client.Disconnect()
	require.Equal(t, StateDisconnected, h.client.State())
	require.True(t, conn.isClosed())

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, h.sched.pending())
	require.Equal(t, 1, h.tr.openCount())
}

func TestWSNotificationIsToastedAndRouted(t *testing.T) {
	h := newWSHarness(t, false)

	var (
		mu  sync.Mutex
		got []string
	)
	routed := make(chan struct{}, 4)
	h.client.OnMessage(MessageTypeNotification, func(data json.RawMessage) {
		var n BroadcastNotification
		_ = json.Unmarshal(data, &n)
		mu.Lock()
		got = append(got, "first:"+n.ID)
		mu.Unlock()
		routed <- struct{}{}
	})
	h.client.OnMessage(MessageTypeNotification, func(data json.RawMessage) {
		var n BroadcastNotification
		_ = json.Unmarshal(data, &n)
		mu.Lock()
		got = append(got, "second:"+n.ID)
		mu.Unlock()
		routed <- struct{}{}
	})

	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)
	conn.push(`{"type":"notification","timestamp":"2024-05-01T12:00:00Z","data":{"id":"n-1","title":"Sale","message":"20% off","type":"warning","target":"all"}}`)

	select {
	case ts := <-h.toasts:
		require.Equal(t, SeverityWarning, ts.Severity)
		require.Equal(t, "Sale", ts.Title)
		require.Equal(t, "20% off", ts.Message)
		require.Equal(t, 5*time.Second, ts.Duration)
	case <-time.After(waitFor):
		t.Fatal("no toast")
	}
	<-routed

	mu.Lock()
	require.Equal(t, []string{"second:n-1"}, got)
	mu.Unlock()
}

func TestWSUnknownTypeStillRouted(t *testing.T) {
	h := newWSHarness(t, false)

	routed := make(chan json.RawMessage, 1)
	h.client.OnMessage("order_status", func(data json.RawMessage) { routed <- data })
	h.client.OnMessage("gone", func(json.RawMessage) { t.Error("removed handler called") })
	h.client.OffMessage("gone")

	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)
	conn.push(`{"type":"gone","data":{}}`)
	conn.push(`oops`)
	conn.push(`{"type":"order_status","data":{"order_id":"o-9"}}`)

	select {
	case data := <-routed:
		require.JSONEq(t, `{"order_id":"o-9"}`, string(data))
	case <-time.After(waitFor):
		t.Fatal("handler not called")
	}
	require.True(t, h.log.has("error", "error parsing websocket message"))
	require.True(t, h.log.has("debug", "unknown message type"))
	require.Empty(t, h.toasts)
}

func TestWSSendMessage(t *testing.T) {
	h := newWSHarness(t, false)

	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)

	require.NoError(t, h.client.SendMessage(context.Background(), map[string]string{"type": "ping"}))
	require.Len(t, conn.written(), 1)
	require.JSONEq(t, `{"type":"ping"}`, string(conn.written()[0]))
}

func TestWSSendMessageNotConnected(t *testing.T) {
	h := newWSHarness(t, true)
	h.waitPending(t)

	err := h.client.SendMessage(context.Background(), map[string]string{"type": "ping"})
	code, ok := codeOf(err)
	require.True(t, ok)
	require.Equal(t, ErrorNotConnected, code)
	require.True(t, h.log.has("warn", "websocket is not connected"))
}

func TestWSStateEventsUseBroadcastAudience(t *testing.T) {
	h := newWSHarness(t, false)
	rec := &stateRecorder{}
	h.client.OnStateChanged(rec.record)

	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)
	conn.drop()
	h.waitPending(t)

	require.Eventually(t, func() bool {
		s := rec.states(AudienceBroadcast)
		return len(s) > 0 && s[len(s)-1] == StateErrored
	}, waitFor, 5*time.Millisecond)
}

func TestWSMalformedFrameKeepsConnection(t *testing.T) {
	h := newWSHarness(t, false)

	routed := make(chan json.RawMessage, 2)
	h.client.OnMessage("custom", func(data json.RawMessage) { routed <- data })

	conn := h.tr.waitConn(t)
	h.waitState(t, StateOpen)
	conn.push(`{not json`)
	conn.push(`{"type":"custom","data":{"x":1}}`)

	select {
	case data := <-routed:
		require.JSONEq(t, `{"x":1}`, string(data))
	case <-time.After(waitFor):
		t.Fatal("frame after malformed one not routed")
	}
	require.Empty(t, routed)
	require.True(t, h.client.IsConnected())
	require.Equal(t, 1, h.tr.openCount())
	require.Zero(t, h.sched.pending())
	require.Zero(t, h.client.Attempts())
	require.False(t, conn.isClosed())
}
