package app

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/storefront-realtime-go/internal/ui"
	"github.com/vovakirdan/storefront-realtime-go/internal/ui/bell"
	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

type fakeStream struct {
	mu        sync.Mutex
	admin     realtime.ConnectionState
	listeners []func(realtime.StateEvent)
	reconnect int
}

func (s *fakeStream) State(aud realtime.Audience) realtime.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if aud == realtime.AudienceAdmin {
		return s.admin
	}
	return realtime.StateDisconnected
}

func (s *fakeStream) OnStateChanged(fn func(realtime.StateEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
	return func() {}
}

func (s *fakeStream) ConnectAdmin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnect++
	return nil
}

func (s *fakeStream) ConnectUser(string) error { return nil }
func (s *fakeStream) DisconnectAdmin()         {}
func (s *fakeStream) UserID() string           { return "" }

func (s *fakeStream) setAdmin(state realtime.ConnectionState) {
	s.mu.Lock()
	old := s.admin
	s.admin = state
	fns := append([]func(realtime.StateEvent){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(realtime.StateEvent{Audience: realtime.AudienceAdmin, OldState: old, NewState: state})
	}
}

func newApp(t *testing.T) (Model, *realtime.NotificationStore, *fakeStream, *ui.ToastQueue) {
	t.Helper()
	store := realtime.NewNotificationStore(0)
	sse := &fakeStream{}
	toasts := ui.NewToastQueue()
	m := New(Services{Store: store, SSE: sse, Toasts: toasts, Admin: true})
	t.Cleanup(m.Close)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return next.(Model), store, sse, toasts
}

func TestStoreChangesReachTheBell(t *testing.T) {
	m, store, _, _ := newApp(t)

	store.Add(realtime.NewNotification(realtime.RealtimeEvent{ResourceType: realtime.ResourceOrdersCreated}, time.Now()))
	msg := m.waitStore()()
	require.IsType(t, bell.NotificationsMsg{}, msg)

	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	m = next.(Model)
	require.Equal(t, 1, m.bell.Unread())
	require.Contains(t, m.View(), "New Order")
	require.Contains(t, m.View(), "Storefront Admin")
}

func TestConnectionStateInHeader(t *testing.T) {
	m, _, sse, _ := newApp(t)
	require.Contains(t, m.View(), "sse/admin disconnected")

	sse.setAdmin(realtime.StateOpen)
	next, _ := m.Update(m.waitStates()())
	require.Contains(t, next.View(), "sse/admin open")
}

func TestToastExpires(t *testing.T) {
	m, _, _, toasts := newApp(t)

	toasts.Toast(realtime.Toast{Severity: realtime.SeverityWarning, Title: "Maintenance", Message: "at 22:00"})
	next, _ := m.Update(toasts.Wait()())
	m = next.(Model)
	require.Contains(t, m.View(), "Maintenance at 22:00")

	next, _ = m.Update(toastExpiredMsg{seq: m.toastSeq - 1})
	require.Contains(t, next.View(), "Maintenance")

	next, _ = m.Update(toastExpiredMsg{seq: m.toastSeq})
	require.NotContains(t, next.View(), "Maintenance")
}

func TestToastLineKeepsSingleSpace(t *testing.T) {
	m, _, _, _ := newApp(t)

	m.toast = &realtime.Toast{Severity: realtime.SeverityInfo, Title: "New Order", Message: "o-1"}
	line := m.renderToast()
	require.Contains(t, line, "New Order o-1")
	require.NotContains(t, line, "New Order  o-1")

	m.toast = &realtime.Toast{Severity: realtime.SeverityError, Title: "Offline"}
	require.Contains(t, m.renderToast(), "Offline")
}

func TestReconnectKey(t *testing.T) {
	m, _, sse, _ := newApp(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	require.Equal(t, reconnectedMsg{}, cmd())
	require.Equal(t, 1, sse.reconnect)
}

func TestQuit(t *testing.T) {
	m, _, _, _ := newApp(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
}
