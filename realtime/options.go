package realtime

import "time"

// Option customizes an SSEClient or WSClient at construction.
type Option func(*options)

type options struct {
	logger       Logger
	scheduler    Scheduler
	now          func() time.Time
	sseTransport Transport
	wsTransport  DuplexTransport
	toaster      Toaster
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    noopLogger{},
		scheduler: systemScheduler{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger overrides the logger. nil is ignored.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithScheduler overrides the timer source used for reconnects.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithClock overrides the clock used to stamp notifications.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSSETransport replaces the HTTP event-stream transport.
func WithSSETransport(t Transport) Option {
	return func(o *options) { o.sseTransport = t }
}

// WithWSTransport replaces the WebSocket transport.
func WithWSTransport(t DuplexTransport) Option {
	return func(o *options) { o.wsTransport = t }
}

// WithToaster sets where broadcast notifications are shown.
func WithToaster(t Toaster) Option {
	return func(o *options) { o.toaster = t }
}
