package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/pagewidgets/internal/dom"
	"github.com/johndosdos/pagewidgets/internal/model"
)

func TestUserFragment(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		user model.UserRecord
		mode Mode
		want string
	}{
		{
			name: "plain",
			user: model.UserRecord{Username: "a", Message: "hi"},
			mode: ModeEscape,
			want: `<div class="app__user"><p><strong>@a: </strong>hi</p></div>`,
		},
		{
			name: "escaped script",
			user: model.UserRecord{Username: "<b>x</b>", Message: "<script>alert(1)</script>"},
			mode: ModeEscape,
			want: `<div class="app__user"><p><strong>@&lt;b&gt;x&lt;/b&gt;: </strong>&lt;script&gt;alert(1)&lt;/script&gt;</p></div>`,
		},
		{
			name: "raw opt-in",
			user: model.UserRecord{Username: "<b>x</b>", Message: "<i>hi</i>"},
			mode: ModeRaw,
			want: `<div class="app__user"><p><strong>@<b>x</b>: </strong><i>hi</i></p></div>`,
		},
		{
			name: "sanitized",
			user: model.UserRecord{Username: "a", Message: `<i>hi</i><script>alert(1)</script>`},
			mode: ModeSanitize,
			want: `<div class="app__user"><p><strong>@a: </strong><i>hi</i></p></div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := String(ctx, UserFragment(tt.user, tt.mode))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserFragments(t *testing.T) {
	ctx := context.Background()

	got, err := UserFragments(ctx, nil, ModeEscape)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = UserFragments(ctx, []model.UserRecord{
		{Username: "a", Message: "hi"},
		{Username: "b", Message: "yo"},
	}, ModeEscape)
	require.NoError(t, err)
	assert.Equal(t, []string{"@a: hi", "@b: yo"}, dom.TextByClass(got, "app__user"))
}

func TestMessageText(t *testing.T) {
	ctx := context.Background()

	got, err := String(ctx, MessageText("<img src=x onerror=alert(1)>", ModeEscape))
	require.NoError(t, err)
	assert.Equal(t, "&lt;img src=x onerror=alert(1)&gt;", got)

	// Chat items and user fragments escape the same way.
	got, err = String(ctx, MessageText(`"a" & 'b'`, ModeEscape))
	require.NoError(t, err)
	frag, err := String(ctx, UserFragment(model.UserRecord{Message: `"a" & 'b'`}, ModeEscape))
	require.NoError(t, err)
	assert.Equal(t, "&#34;a&#34; &amp; &#39;b&#39;", got)
	assert.Contains(t, frag, got)

	got, err = String(ctx, MessageText("<b>bold</b>", ModeRaw))
	require.NoError(t, err)
	assert.Equal(t, "<b>bold</b>", got)

	got, err = String(ctx, MessageText(`<b onclick="x()">bold</b>`, ModeSanitize))
	require.NoError(t, err)
	assert.Equal(t, "<b>bold</b>", got)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeEscape, false},
		{"escape", ModeEscape, false},
		{"Sanitize", ModeSanitize, false},
		{" raw ", ModeRaw, false},
		{"html", ModeEscape, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
