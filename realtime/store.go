package realtime

import "sync"

// DefaultNotificationLimit is the bell history size.
const DefaultNotificationLimit = 50

// NotificationStore is a bounded, most-recent-first history of received events.
// It does not care which transport produced an entry.
type NotificationStore struct {
	limit int

	mu    sync.Mutex
	items []Notification

	observers listenerSet[[]Notification]
}

// NewNotificationStore returns an empty store. limit <= 0 selects the default.
func NewNotificationStore(limit int) *NotificationStore {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return &NotificationStore{limit: limit}
}

// Add prepends n, silently evicting the oldest entries beyond the limit.
func (s *NotificationStore) Add(n Notification) {
	s.mu.Lock()
	items := make([]Notification, 0, min(len(s.items)+1, s.limit))
	items = append(items, n)
	for _, it := range s.items {
		if len(items) == s.limit {
			break
		}
		items = append(items, it)
	}
	s.items = items
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.observers.emit(snap)
}

// MarkAsRead flags the entry with id as read without reordering.
// Unknown ids are ignored and do not notify observers.
func (s *NotificationStore) MarkAsRead(id string) {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.observers.emit(snap)
}

// Notifications returns a snapshot, newest first.
func (s *NotificationStore) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// UnreadCount returns the number of entries not yet acknowledged.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// Len returns the number of stored entries.
func (s *NotificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear empties the store and notifies observers with an empty list.
func (s *NotificationStore) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.observers.emit([]Notification{})
}

// OnChange registers fn to receive a fresh copy of the list after every change.
func (s *NotificationStore) OnChange(fn func([]Notification)) (unsubscribe func()) {
	return s.observers.add(fn)
}

func (s *NotificationStore) snapshotLocked() []Notification {
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}
