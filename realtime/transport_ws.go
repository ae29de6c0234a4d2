package realtime

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/vovakirdan/storefront-realtime-go/realtime/internal"

	"github.com/coder/websocket"
)

// NewWebSocketTransport dials with coder/websocket using cfg's timeouts.
func NewWebSocketTransport(cfg Config) DuplexTransport {
	return &wsTransport{
		handshakeTimeout: cfg.HandshakeTimeout,
		readTimeout:      cfg.ReadTimeout,
		writeTimeout:     cfg.WriteTimeout,
	}
}

type wsTransport struct {
	handshakeTimeout time.Duration
	readTimeout      time.Duration
	writeTimeout     time.Duration
}

func (t *wsTransport) Open(ctx context.Context, rawURL string) (DuplexConn, error) {
	dialCtx := ctx
	if t.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.handshakeTimeout)
		defer cancel()
	}

	ws, _, err := websocket.Dial(dialCtx, rawURL, nil)
	if err != nil {
		return nil, WrapError(ErrorConnection, "dial websocket", err)
	}
	return &wsConn{conn: internal.NewConn(ws, t.readTimeout, t.writeTimeout)}, nil
}

type wsConn struct {
	conn *internal.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, readError(ctx, err)
	}
	return data, nil
}

// readError tells a clean close apart from a broken connection. Both end the
// read loop.
func readError(ctx context.Context, err error) error {
	if isExpectedDisconnect(ctx, err) {
		return WrapError(ErrorDisconnected, "websocket closed", err)
	}
	return WrapError(ErrorConnection, "websocket read failed", err)
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	if err := c.conn.Write(ctx, data); err != nil {
		return WrapError(ErrorDisconnected, "websocket write failed", err)
	}
	return nil
}

func (c *wsConn) Close() error {
	return c.conn.CloseNormal("client close")
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
