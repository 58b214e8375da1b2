// Package chat is the chat widget: it greets the channel on connect, appends
// every "new-message" payload to the message list and emits the input value
// when the send button is clicked.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/johndosdos/pagewidgets/internal/channel"
	"github.com/johndosdos/pagewidgets/internal/dom"
	"github.com/johndosdos/pagewidgets/internal/model"
	"github.com/johndosdos/pagewidgets/internal/render"
)

// Config names the endpoint and page elements the widget binds to.
type Config struct {
	URL              string
	MessagesSelector string
	InputSelector    string
	SendButtonID     string
	Greeting         string
	Mode             render.Mode
}

// DefaultConfig returns the local development endpoint and element ids.
func DefaultConfig() Config {
	return Config{
		URL:              "http://127.0.0.1:3001/chat",
		MessagesSelector: "#messages",
		InputSelector:    "#message",
		SendButtonID:     "sendbutton",
		Greeting:         "User has connected!",
		Mode:             render.ModeEscape,
	}
}

// Scaffold mounts the message list, the text input and the send button on doc.
func Scaffold(doc *dom.Document, cfg Config) {
	doc.Mount("ul", dom.WithID(trimHash(cfg.MessagesSelector)))
	doc.Mount("input", dom.WithID(trimHash(cfg.InputSelector)))
	doc.Mount("button", dom.WithID(cfg.SendButtonID))
}

func trimHash(sel string) string {
	if len(sel) > 0 && sel[0] == '#' {
		return sel[1:]
	}
	return sel
}

// Widget wires one channel to one page.
type Widget struct {
	cfg    Config
	doc    *dom.Document
	ch     channel.Channel
	logger *slog.Logger

	// Outbound messages leave in click order, each waiting for the previous.
	mu      sync.Mutex
	last    chan struct{}
	pending sync.WaitGroup
}

// Option configures a Widget.
type Option func(w *Widget)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// New returns a widget for doc that talks over ch.
func New(cfg Config, doc *dom.Document, ch channel.Channel, opts ...Option) *Widget {
	w := &Widget{
		cfg:    cfg,
		doc:    doc,
		ch:     ch,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Bind registers the channel handlers and the send button listener. A click
// clears the input at once; the emit happens in the background.
func (w *Widget) Bind(ctx context.Context) error {
	list, err := w.doc.MustQuery(w.cfg.MessagesSelector)
	if err != nil {
		return fmt.Errorf("message list: %w", err)
	}
	input, err := w.doc.MustQuery(w.cfg.InputSelector)
	if err != nil {
		return fmt.Errorf("message input: %w", err)
	}
	btn := w.doc.GetElementByID(w.cfg.SendButtonID)
	if btn == nil {
		return fmt.Errorf("send button #%s: %w", w.cfg.SendButtonID, dom.ErrElementNotFound)
	}

	w.ch.On(channel.EventConnect, func(string) {
		w.enqueue(ctx, "failed to send greeting", func() error {
			return w.ch.Send(ctx, w.cfg.Greeting)
		})
	})

	w.ch.On(channel.EventNewMessage, func(payload string) {
		w.appendMessage(ctx, list, model.ChatMessage(payload))
	})

	w.ch.On(channel.EventDisconnect, func(string) {
		w.logger.InfoContext(ctx, "chat channel disconnected")
	})

	btn.AddEventListener("click", func(*dom.Event) {
		msg := input.Value()
		input.SetValue("")
		w.enqueue(ctx, "failed to emit message", func() error {
			return w.ch.Emit(ctx, channel.EventMessage, msg)
		})
	})

	return nil
}

// enqueue runs send off the UI thread after every earlier send has finished.
func (w *Widget) enqueue(ctx context.Context, failure string, send func() error) {
	w.mu.Lock()
	prev := w.last
	done := make(chan struct{})
	w.last = done
	w.mu.Unlock()

	w.pending.Add(1)
	go func() {
		defer w.pending.Done()
		defer close(done)

		if prev != nil {
			<-prev
		}
		if err := send(); err != nil {
			w.logger.ErrorContext(ctx, failure, "error", err)
		}
	}()
}

// Wait blocks until every queued outbound message has been handed to the
// channel or has failed.
func (w *Widget) Wait() { w.pending.Wait() }

func (w *Widget) appendMessage(ctx context.Context, list *dom.Element, msg model.ChatMessage) {
	markup, err := render.String(ctx, render.MessageText(msg, w.cfg.Mode))
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to render message", "error", err)
		return
	}

	li := w.doc.Create("li")
	li.SetInnerHTML(markup)
	list.AppendChild(li)
}

// Open dials cfg.URL with handlers dispatched on the page's UI thread and
// binds a widget to the connection. The caller runs the returned channel.
func Open(ctx context.Context, cfg Config, doc *dom.Document, opts []Option, chOpts ...channel.Option) (*Widget, *channel.WS, error) {
	chOpts = append([]channel.Option{channel.WithDispatcher(doc.Run)}, chOpts...)

	ws, err := channel.Dial(ctx, cfg.URL, chOpts...)
	if err != nil {
		return nil, nil, err
	}

	w := New(cfg, doc, ws, opts...)
	if err := w.Bind(ctx); err != nil {
		ws.Close()
		return nil, nil, err
	}
	return w, ws, nil
}
