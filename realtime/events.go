package realtime

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResourceType is the dotted category tag used to route an event.
type ResourceType string

const (
	ResourceMessagesNew   ResourceType = "messages.new"
	ResourceOrdersUpdated ResourceType = "orders.updated"
	ResourceOrdersCreated ResourceType = "orders.created"
	ResourceThreadsClosed ResourceType = "threads.closed"
)

// Label returns a human readable name for the bell list.
func (r ResourceType) Label() string {
	switch r {
	case ResourceMessagesNew:
		return "New Message"
	case ResourceOrdersCreated:
		return "New Order"
	case ResourceOrdersUpdated:
		return "Order Updated"
	case ResourceThreadsClosed:
		return "Thread Closed"
	default:
		return string(r)
	}
}

// EventData is the loosely typed payload of a RealtimeEvent.
type EventData struct {
	OrderID   string         `json:"order_id,omitempty"`
	ThreadID  string         `json:"thread_id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// RealtimeEvent is one frame pushed over an SSE channel.
type RealtimeEvent struct {
	Resource     string       `json:"resource"`
	ResourceType ResourceType `json:"resource_type"`
	Data         EventData    `json:"data"`
}

// Notification is the client-side record of a received RealtimeEvent.
// IDs are generated locally, so uniqueness across reconnects is best effort.
type Notification struct {
	ID           string       `json:"id"`
	Resource     string       `json:"resource"`
	ResourceType ResourceType `json:"resource_type"`
	Data         EventData    `json:"data"`
	CreatedAt    time.Time    `json:"created_at"`
	IsRead       bool         `json:"is_read"`
}

// NewNotification wraps ev, stamping it with the receipt time.
func NewNotification(ev RealtimeEvent, now time.Time) Notification {
	return Notification{
		ID:           fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Resource:     ev.Resource,
		ResourceType: ev.ResourceType,
		Data:         ev.Data,
		CreatedAt:    now,
	}
}

// Link returns the order page a notification points to, or "" when it has none.
func (n Notification) Link(admin bool) string {
	if n.Data.OrderID == "" {
		return ""
	}
	switch n.ResourceType {
	case ResourceMessagesNew, ResourceOrdersUpdated:
		if admin {
			return "/admin/orders/" + n.Data.OrderID
		}
		return "/orders/" + n.Data.OrderID
	default:
		return ""
	}
}
