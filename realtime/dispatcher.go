package realtime

import (
	"encoding/json"
	"sync"
)

// Dispatcher routes WebSocket frames by type: first to the built-in handler
// for that type, then to the caller's handler registered for it.
type Dispatcher struct {
	toaster Toaster
	logger  Logger

	mu       sync.RWMutex
	handlers map[string]func(json.RawMessage)
}

func newDispatcher(toaster Toaster, logger Logger) *Dispatcher {
	return &Dispatcher{
		toaster:  toaster,
		logger:   logger,
		handlers: make(map[string]func(json.RawMessage)),
	}
}

// SetHandler installs fn for msgType, replacing any previous one.
func (d *Dispatcher) SetHandler(msgType string, fn func(json.RawMessage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fn == nil {
		delete(d.handlers, msgType)
		return
	}
	d.handlers[msgType] = fn
}

func (d *Dispatcher) RemoveHandler(msgType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, msgType)
}

// Dispatch decodes raw and routes it. A decode failure returns the error and
// invokes nothing.
func (d *Dispatcher) Dispatch(raw []byte) error {
	msg, err := DecodeMessage(raw)
	if err != nil {
		return err
	}

	switch m := msg.(type) {
	case NotificationMessage:
		d.toaster.Toast(Toast{
			Severity: ParseSeverity(m.Notification.Type),
			Title:    m.Notification.Title,
			Message:  m.Notification.Message,
			Duration: ToastDuration,
		})
	case ConnectionStatsMessage:
		d.logger.Debug("connection stats updated", map[string]any{
			"total":     m.Stats.TotalConnections,
			"logged_in": m.Stats.LoggedInUsers,
			"anonymous": m.Stats.AnonymousUsers,
			"admins":    m.Stats.AdminUsers,
		})
	case UnknownMessage:
		d.logger.Debug("unknown message type", map[string]any{"type": m.Type})
	}

	env := msg.envelope()
	d.mu.RLock()
	fn := d.handlers[env.Type]
	d.mu.RUnlock()
	if fn != nil {
		fn(env.Data)
	}
	return nil
}
