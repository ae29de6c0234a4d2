package realtime

import (
	"net/http"
	"strings"
	"time"
)

// Config controls how the SDK reaches the storefront backend.
type Config struct {
	APIBaseURL      string // REST and SSE endpoints, e.g. "http://localhost:9997"
	RealtimeBaseURL string // WebSocket service, e.g. "http://localhost:9998"
	WebSocketPath   string

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration // 0 disables; push channels idle for long periods
	WriteTimeout     time.Duration

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // WebSocket only; SSE retries without a cap

	NotificationLimit int

	HTTPClient *http.Client // used by the SSE transport; nil means a client without timeout
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:           "http://localhost:9997",
		RealtimeBaseURL:      "http://localhost:9998",
		WebSocketPath:        "/api/ws",
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		NotificationLimit:    DefaultNotificationLimit,
	}
}

// WebSocketURL derives the socket URL from RealtimeBaseURL by swapping the
// http(s) scheme for ws(s).
func (c Config) WebSocketURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.RealtimeBaseURL), "/")
	if base == "" {
		base = "http://localhost:9998"
	}
	if strings.HasPrefix(base, "http") {
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	path := c.WebSocketPath
	if path == "" {
		path = "/api/ws"
	}
	return base + path
}

func (c Config) apiBase() string {
	return strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
}
