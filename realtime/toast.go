package realtime

import "time"

// ToastDuration is how long a broadcast notification stays on screen.
const ToastDuration = 5 * time.Second

// Severity categorizes a broadcast notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ParseSeverity maps s onto a known severity, falling back to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeveritySuccess, SeverityWarning, SeverityError:
		return Severity(s)
	default:
		return SeverityInfo
	}
}

// Toast is a transient on-screen notice.
type Toast struct {
	Severity Severity
	Title    string
	Message  string
	Duration time.Duration
}

// Toaster shows toasts.
type Toaster interface {
	Toast(t Toast)
}

// ToasterFunc adapts a function to Toaster.
type ToasterFunc func(Toast)

func (f ToasterFunc) Toast(t Toast) { f(t) }

// LogToaster writes toasts to a Logger, picking the level from the severity.
type LogToaster struct {
	Logger Logger
}

func (l LogToaster) Toast(t Toast) {
	if l.Logger == nil {
		return
	}
	fields := map[string]any{"title": t.Title, "message": t.Message, "severity": string(t.Severity)}
	switch t.Severity {
	case SeverityError:
		l.Logger.Error("notification", fields)
	case SeverityWarning:
		l.Logger.Warn("notification", fields)
	default:
		l.Logger.Info("notification", fields)
	}
}
