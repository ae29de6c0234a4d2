package realtime

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/vovakirdan/storefront-realtime-go/realtime/internal"
)

// NewSSETransport returns a Transport reading text/event-stream responses.
// The client must not set a Timeout, it would cut long-lived streams.
func NewSSETransport(client *http.Client) Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &sseTransport{client: client}
}

type sseTransport struct {
	client *http.Client
}

func (t *sseTransport) Open(ctx context.Context, rawURL string) (Conn, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		cancel()
		return nil, WrapError(ErrorInvalidConfig, "create event stream request", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, WrapError(ErrorConnection, "open event stream", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, NewError(ErrorConnection, fmt.Sprintf("event stream responded with status %d", resp.StatusCode))
	}
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "text/event-stream" {
		resp.Body.Close()
		cancel()
		return nil, NewError(ErrorConnection, fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	return &sseConn{
		body:   resp.Body,
		reader: internal.NewEventStreamReader(resp.Body, internal.DefaultMaxLine),
		cancel: cancel,
	}, nil
}

type sseConn struct {
	body   io.ReadCloser
	reader *internal.EventStreamReader
	cancel context.CancelFunc
}

// Read returns the data of the next "message" event. Named events of other
// kinds are skipped. Cancelling ctx tears the stream down.
func (c *sseConn) Read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, c.cancel)
	defer stop()

	for {
		ev, err := c.reader.ReadEvent()
		if err != nil {
			return nil, WrapError(ErrorDisconnected, "event stream ended", err)
		}
		if ev.Name == "" || ev.Name == "message" {
			return ev.Data, nil
		}
	}
}

func (c *sseConn) Close() error {
	c.cancel()
	return c.body.Close()
}
