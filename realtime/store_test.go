package realtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func note(id string) Notification {
	return Notification{ID: id, ResourceType: ResourceOrdersUpdated, CreatedAt: time.Unix(0, 0)}
}

func TestStoreKeepsNewestFifty(t *testing.T) {
	s := NewNotificationStore(0)
	for i := 0; i < 60; i++ {
		s.Add(note(fmt.Sprint(i)))
	}

	items := s.Notifications()
	require.Len(t, items, DefaultNotificationLimit)
	require.Equal(t, "59", items[0].ID)
	require.Equal(t, "10", items[len(items)-1].ID)
	require.Equal(t, 50, s.UnreadCount())
}

func TestStoreCustomLimit(t *testing.T) {
	s := NewNotificationStore(2)
	s.Add(note("a"))
	s.Add(note("b"))
	s.Add(note("c"))

	require.Equal(t, []string{"c", "b"}, ids(s.Notifications()))
}

func TestStoreMarkAsRead(t *testing.T) {
	s := NewNotificationStore(10)
	s.Add(note("a"))
	s.Add(note("b"))

	var changes int
	s.OnChange(func([]Notification) { changes++ })

	s.MarkAsRead("a")
	s.MarkAsRead("a")
	require.Equal(t, 1, s.UnreadCount())
	require.Equal(t, []string{"b", "a"}, ids(s.Notifications()))
	require.True(t, s.Notifications()[1].IsRead)
	require.Equal(t, 2, changes)

	s.MarkAsRead("missing")
	require.Equal(t, 2, changes)
}

func TestStoreClear(t *testing.T) {
	s := NewNotificationStore(10)
	s.Add(note("a"))

	var last []Notification
	s.OnChange(func(items []Notification) { last = items })
	s.Clear()

	require.NotNil(t, last)
	require.Empty(t, last)
	require.Zero(t, s.Len())
	require.Zero(t, s.UnreadCount())
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	s := NewNotificationStore(10)
	s.Add(note("a"))

	snap := s.Notifications()
	snap[0].IsRead = true
	require.Equal(t, 1, s.UnreadCount())
}

func TestStoreObserverUnsubscribe(t *testing.T) {
	s := NewNotificationStore(10)
	var calls int
	stop := s.OnChange(func([]Notification) { calls++ })

	s.Add(note("a"))
	stop()
	s.Add(note("b"))
	require.Equal(t, 1, calls)
}

func TestNotificationLink(t *testing.T) {
	n := NewNotification(RealtimeEvent{
		Resource:     "message",
		ResourceType: ResourceMessagesNew,
		Data:         EventData{OrderID: "o-7", ThreadID: "t-1"},
	}, time.UnixMilli(1700000000123))

	require.Equal(t, "/admin/orders/o-7", n.Link(true))
	require.Equal(t, "/orders/o-7", n.Link(false))
	require.Regexp(t, `^1700000000123-[0-9a-f]{8}$`, n.ID)
	require.Equal(t, "New Message", n.ResourceType.Label())

	n.ResourceType = ResourceOrdersCreated
	require.Empty(t, n.Link(true))
}

func ids(items []Notification) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
