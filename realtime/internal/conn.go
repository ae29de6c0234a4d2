package internal

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// maxFrameSize bounds a single inbound frame; connection stats can be large.
const maxFrameSize = 1 << 20

// Conn is a websocket.Conn whose reads and writes carry per-call deadlines.
// Frames are passed through as raw bytes so the caller owns decoding.
type Conn struct {
	ws           *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewConn(ws *websocket.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// bounded derives a context that expires after d; d <= 0 leaves ctx as is.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Read returns the payload of the next text or binary frame.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	ctx, cancel := bounded(ctx, c.readTimeout)
	defer cancel()

	_, data, err := c.ws.Read(ctx)
	return data, err
}

// Write sends data as one text frame.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	ctx, cancel := bounded(ctx, c.writeTimeout)
	defer cancel()

	return c.ws.Write(ctx, websocket.MessageText, data)
}

// CloseNormal performs the closing handshake with status 1000.
func (c *Conn) CloseNormal(reason string) error {
	return c.ws.Close(websocket.StatusNormalClosure, reason)
}
