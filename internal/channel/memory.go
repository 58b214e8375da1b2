package channel

import (
	"context"
	"sync"
)

// Memory is an in-process Channel. It records what was emitted and lets the
// caller trigger inbound events.
type Memory struct {
	handlers

	mu     sync.Mutex
	sent   []Envelope
	err    error
	closed bool
}

// NewMemory returns an open in-process channel. Only WithDispatcher applies.
func NewMemory(opts ...Option) *Memory {
	o := newOptions(opts)
	return &Memory{handlers: handlers{dispatch: o.dispatch}}
}

// Connect fires the connect event.
func (m *Memory) Connect() { m.fire(EventConnect, "") }

// Trigger delivers an inbound event.
func (m *Memory) Trigger(event, payload string) { m.fire(event, payload) }

// FailWith makes every following emit return err. Nil clears it.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Sent returns the emitted envelopes in order.
func (m *Memory) Sent() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Envelope, len(m.sent))
	copy(out, m.sent)
	return out
}

// Send emits msg as a "message" event.
func (m *Memory) Send(ctx context.Context, msg string) error {
	return m.Emit(ctx, EventMessage, msg)
}

// Emit records the envelope.
func (m *Memory) Emit(ctx context.Context, event, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, Envelope{Event: event, Data: payload})
	return nil
}

// Close marks the channel closed and fires the disconnect event once.
func (m *Memory) Close() error {
	m.mu.Lock()
	already := m.closed
	m.closed = true
	m.mu.Unlock()

	if !already {
		m.fire(EventDisconnect, "")
	}
	return nil
}
