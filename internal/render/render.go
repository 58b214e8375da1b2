// Package render builds the markup fragments the widgets insert into the page.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"github.com/johndosdos/pagewidgets/internal/model"
)

// Mode selects how remote or user supplied strings end up in markup.
type Mode int

const (
	// ModeEscape renders strings as text. This is the default.
	ModeEscape Mode = iota
	// ModeSanitize lets through the markup allowed by bluemonday's UGC policy.
	ModeSanitize
	// ModeRaw inserts strings verbatim. Only use with trusted content.
	ModeRaw
)

func (m Mode) String() string {
	switch m {
	case ModeEscape:
		return "escape"
	case ModeSanitize:
		return "sanitize"
	case ModeRaw:
		return "raw"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "escape", "sanitize" or "raw" to a Mode. Empty means escape.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "escape":
		return ModeEscape, nil
	case "sanitize":
		return ModeSanitize, nil
	case "raw":
		return ModeRaw, nil
	}
	return ModeEscape, fmt.Errorf("unknown render mode %q", s)
}

// Decode implements envconfig.Decoder.
func (m *Mode) Decode(value string) error {
	mode, err := ParseMode(value)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

type sanitizer interface {
	Sanitize(s string) string
}

var ugc sanitizer = bluemonday.UGCPolicy()

func content(s string, mode Mode) g.Node {
	switch mode {
	case ModeRaw:
		return g.Raw(s)
	case ModeSanitize:
		return g.Raw(ugc.Sanitize(s))
	default:
		return g.Text(s)
	}
}

// component bridges a gomponents node into a templ.Component.
func component(node g.Node) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return node.Render(w)
	})
}

// UserFragment renders one user as
// <div class="app__user"><p><strong>@name: </strong>message</p></div>.
func UserFragment(u model.UserRecord, mode Mode) templ.Component {
	return component(h.Div(h.Class("app__user"),
		h.P(
			h.Strong(g.Text("@"), content(u.Username, mode), g.Text(": ")),
			content(u.Message, mode),
		),
	))
}

// MessageText renders the inner markup of one chat list item.
func MessageText(msg model.ChatMessage, mode Mode) templ.Component {
	switch mode {
	case ModeRaw:
		return templ.Raw(msg)
	case ModeSanitize:
		return templ.Raw(ugc.Sanitize(string(msg)))
	default:
		return templ.Raw(templ.EscapeString(msg))
	}
}

// String renders c to a string.
func String(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("failed to render component: %w", err)
	}
	return buf.String(), nil
}

// UserFragments renders every user and joins the fragments. A nil or empty
// slice yields the empty string.
func UserFragments(ctx context.Context, users []model.UserRecord, mode Mode) (string, error) {
	fragments := lo.Map(users, func(u model.UserRecord, _ int) templ.Component {
		return UserFragment(u, mode)
	})

	return String(ctx, templ.Join(fragments...))
}
