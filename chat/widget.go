// Package chat implements the order chat widget: it finds the thread of an
// order, keeps its history current from realtime events and sends messages
// optimistically. It has no rendering of its own.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
	"github.com/vovakirdan/storefront-realtime-go/realtime/rest"
)

// HistoryPageSize is how many messages one history fetch asks for.
const HistoryPageSize = 100

var (
	ErrNoThread           = errors.New("chat: no thread for this order")
	ErrEmptyMessage       = errors.New("chat: message is empty")
	ErrThreadClosed       = errors.New("chat: thread is closed")
	ErrSendInFlight       = errors.New("chat: a message is already being sent")
	ErrAttachmentTooLarge = rest.ErrAttachmentTooLarge
)

// State is the lifecycle of a mounted widget.
type State int

const (
	StateLoadingThread State = iota
	StateIdle
	StateHidden
)

func (s State) String() string {
	switch s {
	case StateLoadingThread:
		return "loading_thread"
	case StateIdle:
		return "idle"
	case StateHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Backend is the REST surface the widget needs. *rest.Client satisfies it.
type Backend interface {
	GetThreadByOrderID(ctx context.Context, orderID string, admin bool) (*rest.Thread, error)
	GetMessages(ctx context.Context, threadID string, skip, take int, admin bool) (*rest.MessagesResponse, error)
	CreateMessage(ctx context.Context, req rest.CreateMessageRequest) (*rest.Message, error)
}

// Events is the realtime surface the widget listens to. *realtime.SSEClient
// satisfies it.
type Events interface {
	OnAdminEvent(fn func(realtime.RealtimeEvent)) (unsubscribe func())
	OnUserEvent(fn func(realtime.RealtimeEvent)) (unsubscribe func())
}

// View is a snapshot of everything a renderer needs.
type View struct {
	OrderID  string
	State    State
	Thread   *rest.Thread
	Messages []rest.Message
	Open     bool
	Unread   int
	Closed   bool
	Sending  bool
	Admin    bool
}

// Option configures a Widget.
type Option func(*Widget)

// WithAdmin makes the widget act for the admin side of the conversation.
func WithAdmin(admin bool) Option {
	return func(w *Widget) { w.admin = admin }
}

func WithLogger(l realtime.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the time stamped on optimistic messages.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

// Widget is one mounted chat for one order.
type Widget struct {
	orderID string
	backend Backend
	events  Events
	admin   bool
	logger  realtime.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     State
	thread    *rest.Thread
	messages  []rest.Message
	loadedFor string
	open      bool
	unread    int
	closed    bool
	sending   bool
	unsubs    []func()

	obsMu     sync.Mutex
	obsNext   int
	observers map[int]func(View)

	background sync.WaitGroup
}

// NewWidget prepares a widget for orderID. Call Mount to start it.
func NewWidget(orderID string, backend Backend, events Events, opts ...Option) *Widget {
	w := &Widget{
		orderID:   orderID,
		backend:   backend,
		events:    events,
		logger:    realtime.NewSlogLogger(nil),
		now:       time.Now,
		observers: make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Mount looks up the order's thread and subscribes to realtime events. The
// widget ends Idle when a thread exists and Hidden otherwise; the lookup error
// is returned in the latter case.
func (w *Widget) Mount(ctx context.Context) error {
	w.mu.Lock()
	w.state = StateLoadingThread
	w.mu.Unlock()
	w.notify()

	thread, err := w.backend.GetThreadByOrderID(ctx, w.orderID, w.admin)

	w.mu.Lock()
	if err != nil {
		w.state = StateHidden
		w.mu.Unlock()
		w.logger.Error("failed to load thread", map[string]any{"order_id": w.orderID, "error": err.Error()})
		w.notify()
		return err
	}
	w.thread = thread
	w.closed = !thread.IsActive
	w.state = StateIdle
	if w.events != nil {
		w.unsubs = append(w.unsubs, w.events.OnAdminEvent(w.handleEvent))
		if !w.admin {
			w.unsubs = append(w.unsubs, w.events.OnUserEvent(w.handleEvent))
		}
	}
	w.mu.Unlock()

	w.notify()
	return nil
}

// Unmount drops the realtime subscriptions. Fetches already running are left
// to finish.
func (w *Widget) Unmount() {
	w.mu.Lock()
	unsubs := w.unsubs
	w.unsubs = nil
	w.mu.Unlock()

	for _, fn := range unsubs {
		fn()
	}
}

// Open shows the conversation, clears the unread badge and fetches history
// the first time the thread is opened.
func (w *Widget) Open(ctx context.Context) error {
	w.mu.Lock()
	if w.thread == nil {
		w.mu.Unlock()
		return ErrNoThread
	}
	w.open = true
	w.unread = 0
	load := w.loadedFor != w.thread.ThreadID
	w.mu.Unlock()
	w.notify()

	if load {
		return w.loadMessages(ctx)
	}
	return nil
}

// Hide collapses the conversation. New messages count as unread again.
func (w *Widget) Hide() {
	w.mu.Lock()
	w.open = false
	w.mu.Unlock()
	w.notify()
}

// Send posts content, showing it immediately under a temporary id. On failure
// the temporary message is removed and the error returned.
func (w *Widget) Send(ctx context.Context, content string, media *rest.Attachment) error {
	if media != nil && len(media.Data) > rest.MaxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	content = strings.TrimSpace(content)

	w.mu.Lock()
	switch {
	case w.thread == nil:
		w.mu.Unlock()
		return ErrNoThread
	case content == "" && media == nil:
		w.mu.Unlock()
		return ErrEmptyMessage
	case w.closed:
		w.mu.Unlock()
		return ErrThreadClosed
	case w.sending:
		w.mu.Unlock()
		return ErrSendInFlight
	}

	owner := rest.OwnerUser
	if w.admin {
		owner = rest.OwnerAdmin
	}
	temp := rest.Message{
		MessageID:      "temp-" + uuid.NewString(),
		ThreadID:       w.thread.ThreadID,
		MessageContent: content,
		Owner:          owner,
		CreatedAt:      w.now(),
		HasMedia:       media != nil,
	}
	w.sending = true
	w.messages = append(w.messages, temp)
	w.mu.Unlock()
	w.notify()

	msg, err := w.backend.CreateMessage(ctx, rest.CreateMessageRequest{
		ThreadID:       temp.ThreadID,
		MessageContent: content,
		Owner:          owner,
		Media:          media,
	})

	w.mu.Lock()
	w.sending = false
	w.messages = without(w.messages, temp.MessageID)
	if err == nil && msg != nil && !contains(w.messages, msg.MessageID) {
		w.messages = append(w.messages, *msg)
	}
	w.mu.Unlock()
	w.notify()

	if err != nil {
		w.logger.Error("failed to send message", map[string]any{"thread_id": temp.ThreadID, "error": err.Error()})
		return err
	}
	return nil
}

// View returns a snapshot of the widget.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// OnChange registers fn to receive a snapshot after every change.
func (w *Widget) OnChange(fn func(View)) (unsubscribe func()) {
	w.obsMu.Lock()
	w.obsNext++
	id := w.obsNext
	w.observers[id] = fn
	w.obsMu.Unlock()

	return func() {
		w.obsMu.Lock()
		delete(w.observers, id)
		w.obsMu.Unlock()
	}
}

// Wait blocks until background history refreshes triggered by realtime
// events have finished.
func (w *Widget) Wait() { w.background.Wait() }

func (w *Widget) handleEvent(ev realtime.RealtimeEvent) {
	if ev.Data.OrderID != w.orderID {
		return
	}

	w.mu.Lock()
	if w.thread == nil || ev.Data.ThreadID != w.thread.ThreadID {
		w.mu.Unlock()
		return
	}
	switch ev.ResourceType {
	case realtime.ResourceMessagesNew:
		w.mu.Unlock()
		w.background.Add(1)
		go w.refresh()
	case realtime.ResourceThreadsClosed:
		w.closed = true
		w.mu.Unlock()
		w.notify()
	default:
		w.mu.Unlock()
	}
}

func (w *Widget) refresh() {
	defer w.background.Done()
	_ = w.loadMessages(context.Background())

	w.mu.Lock()
	if !w.open {
		w.unread++
	}
	w.mu.Unlock()
	w.notify()
}

func (w *Widget) loadMessages(ctx context.Context) error {
	w.mu.Lock()
	if w.thread == nil {
		w.mu.Unlock()
		return ErrNoThread
	}
	threadID := w.thread.ThreadID
	w.mu.Unlock()

	resp, err := w.backend.GetMessages(ctx, threadID, 0, HistoryPageSize, w.admin)
	if err != nil {
		w.logger.Error("failed to load messages", map[string]any{"thread_id": threadID, "error": err.Error()})
		return err
	}

	w.mu.Lock()
	if w.thread != nil && w.thread.ThreadID == threadID {
		w.messages = append([]rest.Message(nil), resp.Messages...)
		w.loadedFor = threadID
	}
	w.mu.Unlock()
	w.notify()
	return nil
}

func (w *Widget) viewLocked() View {
	v := View{
		OrderID:  w.orderID,
		State:    w.state,
		Messages: append([]rest.Message(nil), w.messages...),
		Open:     w.open,
		Unread:   w.unread,
		Closed:   w.closed,
		Sending:  w.sending,
		Admin:    w.admin,
	}
	if w.thread != nil {
		t := *w.thread
		v.Thread = &t
	}
	return v
}

func (w *Widget) notify() {
	v := w.View()

	w.obsMu.Lock()
	fns := make([]func(View), 0, len(w.observers))
	for id := 1; id <= w.obsNext; id++ {
		if fn, ok := w.observers[id]; ok {
			fns = append(fns, fn)
		}
	}
	w.obsMu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func without(msgs []rest.Message, id string) []rest.Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.MessageID != id {
			out = append(out, m)
		}
	}
	return out
}

func contains(msgs []rest.Message, id string) bool {
	for _, m := range msgs {
		if m.MessageID == id {
			return true
		}
	}
	return false
}
