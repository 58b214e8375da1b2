package testutil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/johndosdos/pagewidgets/internal/channel"
)

// Relay is a chat endpoint on /chat that re-emits every "message" envelope
// as "new-message" to all connected clients, the sender included.
type Relay struct {
	*httptest.Server

	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	received []channel.Envelope
	sids     []string
}

// NewRelay starts the relay. It is closed when the test ends.
func NewRelay(t testing.TB) *Relay {
	t.Helper()

	rl := &Relay{clients: make(map[*websocket.Conn]struct{})}

	r := chi.NewRouter()
	r.Get("/chat", rl.serveWs)

	rl.Server = httptest.NewServer(r)
	t.Cleanup(rl.Close)
	return rl
}

// ChatURL is the namespaced endpoint in http form.
func (rl *Relay) ChatURL() string { return rl.URL + "/chat" }

// Received returns every envelope read from clients.
func (rl *Relay) Received() []channel.Envelope {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	out := make([]channel.Envelope, len(rl.received))
	copy(out, rl.received)
	return out
}

// SessionIDs returns the sid of every accepted connection.
func (rl *Relay) SessionIDs() []string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return append([]string(nil), rl.sids...)
}

// Broadcast pushes an envelope to all clients.
func (rl *Relay) Broadcast(ctx context.Context, env channel.Envelope) {
	p, err := json.Marshal(env)
	if err != nil {
		slog.ErrorContext(ctx, "could not encode envelope", "error", err)
		return
	}

	rl.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(rl.clients))
	for c := range rl.clients {
		conns = append(conns, c)
	}
	rl.mu.Unlock()

	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := c.Write(writeCtx, websocket.MessageText, p); err != nil {
			slog.WarnContext(ctx, "skipping client - write failed", "error", err)
		}
		cancel()
	}
}

// DropAll cuts every client connection without a close handshake.
func (rl *Relay) DropAll() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for c := range rl.clients {
		c.CloseNow()
	}
}

func (rl *Relay) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	rl.mu.Lock()
	rl.clients[conn] = struct{}{}
	rl.sids = append(rl.sids, r.URL.Query().Get("sid"))
	rl.mu.Unlock()

	defer func() {
		rl.mu.Lock()
		delete(rl.clients, conn)
		rl.mu.Unlock()
		conn.CloseNow()
	}()

	// Block on reads; the request context ends when the handler returns.
	ctx := r.Context()
	for {
		msgType, p, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var env channel.Envelope
		if err := json.Unmarshal(p, &env); err != nil {
			slog.WarnContext(ctx, "failed to process payload from client", "error", err)
			continue
		}

		rl.mu.Lock()
		rl.received = append(rl.received, env)
		rl.mu.Unlock()

		if env.Event == channel.EventMessage {
			rl.Broadcast(ctx, channel.Envelope{Event: channel.EventNewMessage, Data: env.Data})
		}
	}
}
