// Package channel is the real-time connection used by the chat widget: named
// events carrying string payloads, with one handler list per event.
package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Event names understood by the chat widget.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
	EventMessage    = "message"
	EventNewMessage = "new-message"
)

// ErrClosed is returned when emitting on a closed channel.
var ErrClosed = errors.New("channel closed")

// Envelope is the JSON text frame exchanged with the server.
type Envelope struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

// Handler receives the payload of one event.
type Handler func(payload string)

// Channel is a bidirectional event connection.
type Channel interface {
	// On registers h for event. Handlers run in registration order.
	On(event string, h Handler)
	// Send is the generic send primitive; it emits a "message" event.
	Send(ctx context.Context, msg string) error
	// Emit sends payload under the given event name.
	Emit(ctx context.Context, event, payload string) error
	Close() error
}

type options struct {
	logger   *slog.Logger
	dispatch func(func())
	limiter  *rate.Limiter
}

// Option configures a channel.
type Option func(o *options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDispatcher wraps every handler invocation, e.g. to run it on a page's
// UI thread.
func WithDispatcher(fn func(func())) Option {
	return func(o *options) { o.dispatch = fn }
}

// WithRateLimit caps outbound emits to requests per window. Emits over the
// limit wait for a token or for their context to end.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(o *options) {
		if requests <= 0 || window <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		dispatch: func(fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type handlers struct {
	mu       sync.RWMutex
	m        map[string][]Handler
	dispatch func(func())
}

func (h *handlers) On(event string, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.m == nil {
		h.m = make(map[string][]Handler)
	}
	h.m[event] = append(h.m[event], fn)
}

// fire reports whether any handler was registered for event.
func (h *handlers) fire(event, payload string) bool {
	h.mu.RLock()
	fns := append([]Handler(nil), h.m[event]...)
	h.mu.RUnlock()

	if len(fns) == 0 {
		return false
	}

	h.dispatch(func() {
		for _, fn := range fns {
			fn(payload)
		}
	})
	return true
}

var (
	_ Channel = (*WS)(nil)
	_ Channel = (*Memory)(nil)
)
