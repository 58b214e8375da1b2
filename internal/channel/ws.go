package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const writeTimeout = 10 * time.Second

// WS is a Channel over a websocket connection. The URL path is the namespace.
type WS struct {
	handlers

	conn    *websocket.Conn
	id      uuid.UUID
	logger  *slog.Logger
	limiter *rate.Limiter
	closed  atomic.Bool
}

// SocketURL maps an http(s) endpoint to its ws(s) equivalent.
func SocketURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid channel url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported channel url scheme %q", u.Scheme)
	}
	return u, nil
}

// Dial opens the connection. Each connection carries a fresh session id in
// the sid query parameter.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*WS, error) {
	u, err := SocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	q := u.Query()
	q.Set("sid", id.String())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial channel [%s]: %w", u.Redacted(), err)
	}

	o := newOptions(opts)
	c := &WS{
		handlers: handlers{dispatch: o.dispatch},
		conn:     conn,
		id:       id,
		logger:   o.logger.With("sid", id.String(), "namespace", u.Path),
		limiter:  o.limiter,
	}
	return c, nil
}

// ID returns the session id sent to the server.
func (c *WS) ID() uuid.UUID { return c.id }

// Run fires the connect event, then reads frames and dispatches each to the
// handlers of its event until the connection ends. It returns nil on a normal
// close or when ctx is done.
func (c *WS) Run(ctx context.Context) error {
	c.fire(EventConnect, "")
	defer c.fire(EventDisconnect, "")

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure ||
				status == websocket.StatusGoingAway ||
				ctx.Err() != nil ||
				c.closed.Load() {
				return nil
			}
			return fmt.Errorf("failed to read from channel: %w", err)
		}

		// Only text frames carry envelopes.
		if msgType != websocket.MessageText {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(p, &env); err != nil {
			c.logger.WarnContext(ctx, "dropping malformed frame",
				"error", err,
				"frame", string(p))
			continue
		}

		if !c.fire(env.Event, env.Data) {
			c.logger.DebugContext(ctx, "no handler for event", "event", env.Event)
		}
	}
}

// Send emits msg as a "message" event.
func (c *WS) Send(ctx context.Context, msg string) error {
	return c.Emit(ctx, EventMessage, msg)
}

// Emit writes one envelope.
func (c *WS) Emit(ctx context.Context, event, payload string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limited emit [%s]: %w", event, err)
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	w, err := c.conn.Writer(writeCtx, websocket.MessageText)
	if err != nil {
		return fmt.Errorf("failed to return a writer: %w", err)
	}

	if err := json.NewEncoder(w).Encode(Envelope{Event: event, Data: payload}); err != nil {
		w.Close()
		return fmt.Errorf("could not encode envelope [%s]: %w", event, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to flush envelope [%s]: %w", event, err)
	}
	return nil
}

// Close ends the connection with a normal closure.
func (c *WS) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}
