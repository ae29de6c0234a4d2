package internal

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/stretchr/testify/require"
)

func TestEventStreamReaderDecodesGinEncoding(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sse.Encode(&buf, sse.Event{
		Event: "message",
		Id:    "7",
		Retry: 1500,
		Data:  map[string]string{"resource_type": "orders.created"},
	}))
	require.NoError(t, sse.Encode(&buf, sse.Event{Data: "line1\nline2"}))

	r := NewEventStreamReader(&buf, 0)

	ev, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "message", ev.Name)
	require.Equal(t, "7", ev.ID)
	require.Equal(t, 1500*time.Millisecond, ev.Retry)
	require.JSONEq(t, `{"resource_type":"orders.created"}`, string(ev.Data))

	ev, err = r.ReadEvent()
	require.NoError(t, err)
	require.Empty(t, ev.Name)
	require.Equal(t, "7", ev.ID)
	require.Equal(t, "line1\nline2", string(ev.Data))

	_, err = r.ReadEvent()
	require.ErrorIs(t, err, io.EOF)
}

func TestEventStreamReaderSkipsCommentsAndEmptyEvents(t *testing.T) {
	stream := ": keepalive\n\nevent: ping\n\ndata: {\"a\":1}\n\n"
	r := NewEventStreamReader(strings.NewReader(stream), 0)

	ev, err := r.ReadEvent()
	require.NoError(t, err)
	require.Empty(t, ev.Name)
	require.Equal(t, `{"a":1}`, string(ev.Data))
}

func TestEventStreamReaderDropsPartialEvent(t *testing.T) {
	r := NewEventStreamReader(strings.NewReader("data: half"), 0)

	_, err := r.ReadEvent()
	require.ErrorIs(t, err, io.EOF)
}

func TestEventStreamReaderLineLimit(t *testing.T) {
	long := "data: " + strings.Repeat("x", 128) + "\n\n"
	r := NewEventStreamReader(strings.NewReader(long), 64)

	_, err := r.ReadEvent()
	require.Error(t, err)
	require.False(t, errors.Is(err, io.EOF))
}

func TestEventStreamReaderFieldWithoutValue(t *testing.T) {
	r := NewEventStreamReader(strings.NewReader("data\ndata:x\n\n"), 0)

	ev, err := r.ReadEvent()
	require.NoError(t, err)
	require.Equal(t, "\nx", string(ev.Data))
}
