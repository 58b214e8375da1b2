package userlist

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/pagewidgets/internal/dom"
	"github.com/johndosdos/pagewidgets/internal/render"
	"github.com/johndosdos/pagewidgets/internal/testutil"
)

type page struct {
	doc    *dom.Document
	widget *Widget
	logs   *bytes.Buffer
}

func (p page) errorLogs() int {
	return strings.Count(p.logs.String(), `"level":"ERROR"`)
}

func (p page) container() *dom.Element {
	return p.doc.QuerySelector(".app__users")
}

func newPage(t *testing.T, api *testutil.UsersAPI, mutate ...func(*Config)) page {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	if api != nil {
		cfg.UsersURL = api.UsersURL()
		cfg.UserURL = api.UserURL()
	}
	for _, m := range mutate {
		m(&cfg)
	}

	doc := dom.NewDocument()
	Scaffold(doc, cfg)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	w, err := New(cfg, doc, WithLogger(logger))
	require.NoError(t, err)

	return page{doc: doc, widget: w, logs: logs}
}

func TestLoadUsers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"single user", `[{"username":"a","message":"hi"}]`, []string{"@a: hi"}},
		{"numeric ids", `[{"id":1,"username":"user1","message":"m1"},{"id":2,"username":"user2","message":"m2"}]`, []string{"@user1: m1", "@user2: m2"}},
		{"null", `null`, nil},
		{"empty array", `[]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := testutil.NewUsersAPI(t, tt.body)
			p := newPage(t, api)
			p.container().SetInnerHTML("<p>stale</p>")

			require.NoError(t, p.widget.LoadUsers(context.Background()))

			markup := p.container().InnerHTML()
			got := dom.TextByClass(markup, "app__user")
			assert.Equal(t, tt.want, got)
			if tt.want == nil {
				assert.Empty(t, markup)
			}
			assert.Zero(t, p.errorLogs())
		})
	}
}

func TestLoadUsersEscapesMarkup(t *testing.T) {
	api := testutil.NewUsersAPI(t, `[{"username":"<b>eve</b>","message":"<script>alert(1)</script>"}]`)

	t.Run("escaped by default", func(t *testing.T) {
		p := newPage(t, api)
		require.NoError(t, p.widget.LoadUsers(context.Background()))

		markup := p.container().InnerHTML()
		assert.NotContains(t, markup, "<script>")
		assert.NotContains(t, markup, "<b>")
		assert.Equal(t, []string{"@<b>eve</b>: <script>alert(1)</script>"}, dom.TextByClass(markup, "app__user"))
	})

	t.Run("raw opt-in", func(t *testing.T) {
		p := newPage(t, api, func(c *Config) { c.Mode = render.ModeRaw })
		require.NoError(t, p.widget.LoadUsers(context.Background()))
		assert.Contains(t, p.container().InnerHTML(), "<script>alert(1)</script>")
	})

	t.Run("sanitized", func(t *testing.T) {
		p := newPage(t, api, func(c *Config) { c.Mode = render.ModeSanitize })
		require.NoError(t, p.widget.LoadUsers(context.Background()))

		markup := p.container().InnerHTML()
		assert.Contains(t, markup, "<b>eve</b>")
		assert.NotContains(t, markup, "script")
	})
}

func TestLoadUsersFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `[]`},
		{"malformed body", http.StatusOK, `[{"username":`},
		{"not an array", http.StatusOK, `{"username":"a"}`},
		{"empty body", http.StatusOK, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := testutil.NewUsersAPI(t, "")
			api.SetUsers(tt.status, tt.body)
			p := newPage(t, api)
			p.container().SetInnerHTML("<p>stale</p>")

			err := p.widget.LoadUsers(context.Background())
			require.Error(t, err)
			assert.Equal(t, "<p>stale</p>", p.container().InnerHTML())
			assert.Equal(t, 1, p.errorLogs())
		})
	}

	t.Run("missing container", func(t *testing.T) {
		api := testutil.NewUsersAPI(t, `[]`)
		p := newPage(t, api)
		p.widget.cfg.ContainerSelector = "#nowhere"

		err := p.widget.LoadUsers(context.Background())
		assert.ErrorIs(t, err, dom.ErrElementNotFound)
	})
}

func fill(doc *dom.Document, id, username, message string) {
	doc.GetElementByID("id").SetValue(id)
	doc.GetElementByID("username").SetValue(username)
	doc.GetElementByID("message").SetValue(message)
}

func TestSubmitUser(t *testing.T) {
	api := testutil.NewUsersAPI(t, `[]`)
	p := newPage(t, api)
	require.NoError(t, p.widget.Start(context.Background()))

	fill(p.doc, "1", "bob", "yo")
	ev := p.doc.GetElementByID("btn").Click()
	p.widget.Wait()

	assert.True(t, ev.DefaultPrevented())

	posts := api.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, `{"username":"bob","id":"1","message":"yo"}`, string(posts[0].Body))
	assert.Equal(t, "application/json", posts[0].Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", posts[0].Header.Get("Cache-Control"))

	// The session cookie set by GET /users goes back out with the POST.
	require.Len(t, posts[0].Cookies, 1)
	assert.Equal(t, testutil.SessionCookie, posts[0].Cookies[0].Name)

	assert.Contains(t, p.logs.String(), `"status":201`)
	assert.Zero(t, p.errorLogs())
}

func TestSubmitUserSendsFieldsAsIs(t *testing.T) {
	api := testutil.NewUsersAPI(t, `[]`)
	p := newPage(t, api)
	require.NoError(t, p.widget.Bind(context.Background()))

	status, err := p.widget.SubmitUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)

	posts := api.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, `{"username":"","id":"","message":""}`, string(posts[0].Body))
}

func TestSubmitUserRapidClicks(t *testing.T) {
	api := testutil.NewUsersAPI(t, `[]`)
	p := newPage(t, api)
	require.NoError(t, p.widget.Bind(context.Background()))

	fill(p.doc, "7", "amy", "again")
	btn := p.doc.GetElementByID("btn")
	btn.Click()
	btn.Click()
	p.widget.Wait()

	assert.Len(t, api.Posts(), 2)
}

func TestSubmitUserPostsValuesAtClick(t *testing.T) {
	api := testutil.NewUsersAPI(t, `[]`)
	p := newPage(t, api)
	require.NoError(t, p.widget.Bind(context.Background()))

	btn := p.doc.GetElementByID("btn")
	fill(p.doc, "1", "bob", "yo")
	btn.Click()
	fill(p.doc, "2", "amy", "hey")
	btn.Click()
	fill(p.doc, "", "", "")
	p.widget.Wait()

	bodies := make([]string, 0, 2)
	for _, post := range api.Posts() {
		bodies = append(bodies, string(post.Body))
	}
	assert.ElementsMatch(t, []string{
		`{"username":"bob","id":"1","message":"yo"}`,
		`{"username":"amy","id":"2","message":"hey"}`,
	}, bodies)
}

func TestSubmitUserTransportFailure(t *testing.T) {
	p := newPage(t, nil, func(c *Config) {
		c.UserURL = "http://127.0.0.1:1/user"
	})
	require.NoError(t, p.widget.Bind(context.Background()))

	fill(p.doc, "1", "bob", "yo")
	assert.NotPanics(t, func() {
		p.doc.GetElementByID("btn").Click()
		p.widget.Wait()
	})

	assert.Equal(t, 1, p.errorLogs())
	assert.Contains(t, p.logs.String(), "failed to submit user")
}

func TestBindMissingButton(t *testing.T) {
	doc := dom.NewDocument()
	w, err := New(DefaultConfig(), doc)
	require.NoError(t, err)

	assert.ErrorIs(t, w.Bind(context.Background()), dom.ErrElementNotFound)
	assert.ErrorIs(t, w.Start(context.Background()), dom.ErrElementNotFound)
}
