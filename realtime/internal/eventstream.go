package internal

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"time"
)

// DefaultMaxLine bounds one text/event-stream line.
const DefaultMaxLine = 1 << 20

// Event is one dispatched text/event-stream event.
type Event struct {
	ID    string
	Name  string // "" when the stream did not name it
	Data  []byte
	Retry time.Duration
}

// EventStreamReader decodes a text/event-stream body event by event.
type EventStreamReader struct {
	sc     *bufio.Scanner
	lastID string
}

func NewEventStreamReader(r io.Reader, maxLine int) *EventStreamReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(4096, maxLine)), maxLine)
	return &EventStreamReader{sc: sc}
}

// ReadEvent blocks until a complete event is dispatched. A partial event at
// end of stream is discarded and io.EOF returned.
func (r *EventStreamReader) ReadEvent() (Event, error) {
	var (
		ev      Event
		data    bytes.Buffer
		hasData bool
	)
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			if !hasData {
				ev = Event{}
				continue
			}
			ev.ID = r.lastID
			ev.Data = bytes.TrimSuffix(data.Bytes(), []byte("\n"))
			return ev, nil
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}

		switch string(field) {
		case "data":
			data.Write(value)
			data.WriteByte('\n')
			hasData = true
		case "event":
			ev.Name = string(value)
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				r.lastID = string(value)
			}
		case "retry":
			if ms, err := strconv.Atoi(string(value)); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
