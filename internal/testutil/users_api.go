// Package testutil provides in-process stand-ins for the endpoints the
// widgets talk to.
package testutil

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// SessionCookie is set by the users API on every GET /users.
const SessionCookie = "session"

// Post is one request received on POST /user.
type Post struct {
	Body    []byte
	Header  http.Header
	Cookies []*http.Cookie
}

// UsersAPI serves GET /users and POST /user.
type UsersAPI struct {
	*httptest.Server

	mu          sync.Mutex
	usersBody   string
	usersStatus int
	posts       []Post
}

// NewUsersAPI starts a server whose GET /users answers with usersBody.
// The server is closed when the test ends.
func NewUsersAPI(t testing.TB, usersBody string) *UsersAPI {
	t.Helper()

	api := &UsersAPI{usersBody: usersBody, usersStatus: http.StatusOK}

	r := chi.NewRouter()
	r.Get("/users", api.serveUsers)
	r.Post("/user", api.serveUser)

	api.Server = httptest.NewServer(r)
	t.Cleanup(api.Close)
	return api
}

// UsersURL is the GET endpoint.
func (api *UsersAPI) UsersURL() string { return api.URL + "/users" }

// UserURL is the POST endpoint.
func (api *UsersAPI) UserURL() string { return api.URL + "/user" }

// SetUsers replaces the GET /users response.
func (api *UsersAPI) SetUsers(status int, body string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.usersStatus = status
	api.usersBody = body
}

// Posts returns the POST /user requests received so far.
func (api *UsersAPI) Posts() []Post {
	api.mu.Lock()
	defer api.mu.Unlock()

	out := make([]Post, len(api.posts))
	copy(out, api.posts)
	return out
}

func (api *UsersAPI) serveUsers(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	status, body := api.usersStatus, api.usersBody
	api.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "s3ss10n", Path: "/"})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.WarnContext(r.Context(), "failed to write users response", "error", err)
	}
}

func (api *UsersAPI) serveUser(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	api.mu.Lock()
	api.posts = append(api.posts, Post{
		Body:    body,
		Header:  r.Header.Clone(),
		Cookies: r.Cookies(),
	})
	api.mu.Unlock()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, "Created")
}
