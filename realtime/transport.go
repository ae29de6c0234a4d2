package realtime

import (
	"context"
	"time"
)

// Conn is one live push connection. Read blocks until the next frame payload
// arrives. Errors for which IsClosure reports true end the connection; any
// other error is a hiccup and the caller may keep reading.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Transport opens receive-only push connections (SSE).
type Transport interface {
	Open(ctx context.Context, rawURL string) (Conn, error)
}

// DuplexConn is a Conn that can also send frames.
type DuplexConn interface {
	Conn
	Write(ctx context.Context, data []byte) error
}

// DuplexTransport opens bidirectional connections (WebSocket).
type DuplexTransport interface {
	Open(ctx context.Context, rawURL string) (DuplexConn, error)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler arms timers for reconnects.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
