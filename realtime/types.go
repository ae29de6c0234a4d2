package realtime

import (
	"encoding/json"
)

const (
	MessageTypeNotification    = "notification"
	MessageTypeConnectionStats = "connection_stats"
)

// Envelope is the JSON frame carried by the WebSocket channel.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
}

// Message is a decoded WebSocket frame: one of NotificationMessage,
// ConnectionStatsMessage or UnknownMessage.
type Message interface {
	envelope() Envelope
}

// BroadcastNotification is an admin-sent notice.
type BroadcastNotification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Target    string `json:"target"`
	CreatedAt string `json:"created_at"`
	Read      bool   `json:"read"`
}

// ConnectionInfo describes one socket known to the realtime service.
type ConnectionInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	LastSeen  string `json:"last_seen"`
}

// ConnectionStats is the live connection summary pushed to admins.
type ConnectionStats struct {
	TotalConnections int              `json:"total_connections"`
	LoggedInUsers    int              `json:"logged_in_users"`
	AnonymousUsers   int              `json:"anonymous_users"`
	AdminUsers       int              `json:"admin_users"`
	Connections      []ConnectionInfo `json:"connections"`
}

type NotificationMessage struct {
	Envelope
	Notification BroadcastNotification
}

type ConnectionStatsMessage struct {
	Envelope
	Stats ConnectionStats
}

type UnknownMessage struct {
	Envelope
}

func (m NotificationMessage) envelope() Envelope    { return m.Envelope }
func (m ConnectionStatsMessage) envelope() Envelope { return m.Envelope }
func (m UnknownMessage) envelope() Envelope         { return m.Envelope }

// DecodeMessage parses one WebSocket frame.
func DecodeMessage(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, WrapError(ErrorSerialization, "failed to unmarshal websocket frame", err)
	}

	switch env.Type {
	case MessageTypeNotification:
		var n BroadcastNotification
		if err := UnmarshalData(env.Data, &n); err != nil {
			return nil, WrapError(ErrorSerialization, "failed to unmarshal notification", err)
		}
		return NotificationMessage{Envelope: env, Notification: n}, nil
	case MessageTypeConnectionStats:
		var s ConnectionStats
		if err := UnmarshalData(env.Data, &s); err != nil {
			return nil, WrapError(ErrorSerialization, "failed to unmarshal connection stats", err)
		}
		return ConnectionStatsMessage{Envelope: env, Stats: s}, nil
	default:
		return UnknownMessage{Envelope: env}, nil
	}
}

// UnmarshalData decodes RawMessage into target. Empty data leaves v untouched.
func UnmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
