// Package userlist renders the users returned by the users endpoint and posts
// new user records from a three-field form.
package userlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/johndosdos/pagewidgets/internal/dom"
	"github.com/johndosdos/pagewidgets/internal/model"
	"github.com/johndosdos/pagewidgets/internal/render"
)

// Config names the endpoints and page elements the widget binds to.
type Config struct {
	UsersURL          string
	UserURL           string
	ContainerSelector string
	IDField           string
	UsernameField     string
	MessageField      string
	ButtonID          string
	Mode              render.Mode
	Timeout           time.Duration
}

// DefaultConfig returns the local development endpoints and element ids.
func DefaultConfig() Config {
	return Config{
		UsersURL:          "http://localhost:5000/users",
		UserURL:           "http://localhost:5000/user",
		ContainerSelector: ".app__users",
		IDField:           "id",
		UsernameField:     "username",
		MessageField:      "message",
		ButtonID:          "btn",
		Mode:              render.ModeEscape,
		Timeout:           15 * time.Second,
	}
}

// Scaffold mounts the container, the three inputs and the submit button on doc.
func Scaffold(doc *dom.Document, cfg Config) {
	doc.Mount("div", selectorOption(cfg.ContainerSelector))

	form := doc.Mount("form")
	for _, id := range []string{cfg.IDField, cfg.UsernameField, cfg.MessageField} {
		form.AppendChild(doc.Create("input", dom.WithID(id)))
	}
	form.AppendChild(doc.Create("button", dom.WithID(cfg.ButtonID)))
}

func selectorOption(sel string) dom.Option {
	if len(sel) > 1 && sel[0] == '#' {
		return dom.WithID(sel[1:])
	}
	return dom.WithClass(strings.TrimPrefix(sel, "."))
}

// Widget is the user list and submit form of one page.
type Widget struct {
	cfg    Config
	doc    *dom.Document
	client *http.Client
	logger *slog.Logger

	inflight sync.WaitGroup
}

// Option configures a Widget.
type Option func(w *Widget)

// WithHTTPClient replaces the default client. The default client keeps a
// cookie jar so credentials go out with every request.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Widget) { w.client = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// New returns a widget bound to doc.
func New(cfg Config, doc *dom.Document, opts ...Option) (*Widget, error) {
	w := &Widget{
		cfg:    cfg,
		doc:    doc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		w.client = &http.Client{Jar: jar, Timeout: cfg.Timeout}
	}

	return w, nil
}

// Start binds the submit button and loads the users once, like a page load.
func (w *Widget) Start(ctx context.Context) error {
	if err := w.Bind(ctx); err != nil {
		return err
	}
	return w.LoadUsers(ctx)
}

// Bind attaches the click handler to the submit button. The handler reads the
// form on click and posts it in the background; every click starts its own
// request and clicks are not deduplicated. Use Wait to block until the
// requests finish.
func (w *Widget) Bind(ctx context.Context) error {
	btn := w.doc.GetElementByID(w.cfg.ButtonID)
	if btn == nil {
		return fmt.Errorf("submit button #%s: %w", w.cfg.ButtonID, dom.ErrElementNotFound)
	}

	btn.AddEventListener("click", func(ev *dom.Event) {
		ev.PreventDefault()

		user, err := w.readForm()
		if err != nil {
			w.logSubmitError(ctx, err)
			return
		}

		w.inflight.Add(1)
		go func() {
			defer w.inflight.Done()
			_, _ = w.postUser(ctx, user)
		}()
	})
	return nil
}

// Wait blocks until every click-initiated request has completed.
func (w *Widget) Wait() { w.inflight.Wait() }

// LoadUsers fetches the users and replaces the container content with one
// fragment per user. A null or empty list leaves the container empty. On any
// failure the container is left untouched and the error is returned.
func (w *Widget) LoadUsers(ctx context.Context) error {
	err := w.loadUsers(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to load users",
			"error", err,
			"url", w.cfg.UsersURL)
	}
	return err
}

func (w *Widget) loadUsers(ctx context.Context) error {
	container, err := w.doc.MustQuery(w.cfg.ContainerSelector)
	if err != nil {
		return fmt.Errorf("users container: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.UsersURL, nil)
	if err != nil {
		return fmt.Errorf("could not build users request: %w", err)
	}

	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send GET request to [%s]: %w", w.cfg.UsersURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("unexpected status from [%s]: %s", w.cfg.UsersURL, res.Status)
	}

	var users []model.UserRecord
	if err := json.NewDecoder(res.Body).Decode(&users); err != nil {
		return fmt.Errorf("could not decode users: %w", err)
	}

	markup, err := render.UserFragments(ctx, users, w.cfg.Mode)
	if err != nil {
		return err
	}

	container.SetInnerHTML(markup)
	w.logger.DebugContext(ctx, "users rendered", "count", len(users))
	return nil
}

// SubmitUser reads the form fields as-is and posts them as a JSON user record.
// The response is logged and its status returned. Transport failures are
// logged once and returned; non-2xx answers are not treated as failures.
func (w *Widget) SubmitUser(ctx context.Context) (int, error) {
	user, err := w.readForm()
	if err != nil {
		w.logSubmitError(ctx, err)
		return 0, err
	}
	return w.postUser(ctx, user)
}

// postUser posts a record captured from the form.
func (w *Widget) postUser(ctx context.Context, user model.UserRecord) (int, error) {
	status, err := w.post(ctx, user)
	if err != nil {
		w.logSubmitError(ctx, err)
		return 0, err
	}
	return status, nil
}

func (w *Widget) logSubmitError(ctx context.Context, err error) {
	w.logger.ErrorContext(ctx, "failed to submit user",
		"error", err,
		"url", w.cfg.UserURL)
}

func (w *Widget) post(ctx context.Context, user model.UserRecord) (int, error) {
	body, err := json.Marshal(user)
	if err != nil {
		return 0, fmt.Errorf("could not encode user to JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.UserURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("could not build user request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	res, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send POST request to [%s]: %w", w.cfg.UserURL, err)
	}
	defer res.Body.Close()

	// The body is informational only; a failed read does not fail the submit.
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))

	w.logger.InfoContext(ctx, "user submitted",
		"status", res.StatusCode,
		"body", string(raw))
	return res.StatusCode, nil
}

func (w *Widget) readForm() (model.UserRecord, error) {
	fields := map[string]string{}
	for _, id := range []string{w.cfg.IDField, w.cfg.UsernameField, w.cfg.MessageField} {
		el := w.doc.GetElementByID(id)
		if el == nil {
			return model.UserRecord{}, fmt.Errorf("form field #%s: %w", id, dom.ErrElementNotFound)
		}
		fields[id] = el.Value()
	}

	return model.UserRecord{
		ID:       model.UserID(fields[w.cfg.IDField]),
		Username: fields[w.cfg.UsernameField],
		Message:  fields[w.cfg.MessageField],
	}, nil
}
