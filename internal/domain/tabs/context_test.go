package tabs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminabrowser/lumina/host/internal/surface"
)

const samplePage = `<!doctype html>
<html>
<head>
<title>Sample</title>
<meta name="description" content="A sample page">
<meta property="og:title" content="Sample OG">
<script>var hidden = 1;</script>
</head>
<body>
<h1>Heading</h1>
<p>Visible   paragraph text.</p>
<style>.x{color:red}</style>
</body>
</html>`

func TestGetContextUnknownTab(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, err := r.GetContext(context.Background(), "missing")
	assert.Error(t, err)
}

func TestGetContextInternalTab(t *testing.T) {
	r, engine, _ := newTestRegistry(t)
	ctx := context.Background()

	tab, _ := r.Create(ctx, "", "lumina://home")
	tc, err := r.GetContext(ctx, tab.ID)
	require.NoError(t, err)

	assert.Equal(t, tab.ID, tc.ID)
	assert.Equal(t, "lumina://home", tc.URL)
	assert.Empty(t, tc.HTML)
	assert.Empty(t, tc.Screenshot)
	assert.Empty(t, engine.Surfaces())
}

func TestGetContextExternalTab(t *testing.T) {
	r, engine, _ := newTestRegistry(t)
	ctx := context.Background()

	tab, _ := r.Create(ctx, "", "example.com")
	s := engine.Last()
	s.PageTitle = "Sample"
	s.HTML = samplePage
	s.LocalStorage["theme"] = "dark"
	s.SessionStorage["draft"] = "hello"
	s.CookieList = []surface.Cookie{
		{Name: "sid", Value: "abc", Domain: ".example.com", Path: "/", Secure: true},
	}
	s.Screenshot = []byte("\x89PNG\r\n\x1a\nfakepixels")

	tc, err := r.GetContext(ctx, tab.ID)
	require.NoError(t, err)

	assert.Equal(t, "Sample", tc.Title)
	assert.Contains(t, tc.HTML, "<h1>Heading</h1>")
	assert.Contains(t, tc.Text, "Heading")
	assert.Contains(t, tc.Text, "Visible paragraph text.")
	assert.NotContains(t, tc.Text, "hidden")
	assert.NotContains(t, tc.Text, "color:red")

	assert.Equal(t, "A sample page", tc.Meta["description"])
	assert.Equal(t, "Sample OG", tc.Meta["og:title"])

	assert.Equal(t, "dark", tc.LocalStorage["theme"])
	assert.Equal(t, "hello", tc.SessionStorage["draft"])

	require.Len(t, tc.Cookies, 1)
	assert.Equal(t, "sid", tc.Cookies[0].Name)
	assert.Equal(t, "example.com", tc.Cookies[0].Site)

	assert.True(t, strings.HasPrefix(tc.Screenshot, "data:image/png;base64,"))
}

func TestGetContextDegradesPerField(t *testing.T) {
	r, engine, _ := newTestRegistry(t)
	ctx := context.Background()

	tab, _ := r.Create(ctx, "", "example.com")
	s := engine.Last()
	s.HTML = samplePage
	s.CookiesErr = assert.AnError
	s.ScreenshotErr = assert.AnError

	tc, err := r.GetContext(ctx, tab.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, tc.HTML)
	assert.Empty(t, tc.Cookies)
	assert.Empty(t, tc.Screenshot)
}

func TestGetContextDocumentFailureStillSucceeds(t *testing.T) {
	r, engine, _ := newTestRegistry(t)
	ctx := context.Background()

	tab, _ := r.Create(ctx, "", "example.com")
	s := engine.Last()
	s.DocumentErr = assert.AnError
	s.Screenshot = []byte("\x89PNG\r\n\x1a\npixels")

	tc, err := r.GetContext(ctx, tab.ID)
	require.NoError(t, err)

	assert.Empty(t, tc.HTML)
	assert.NotEmpty(t, tc.Screenshot)
	assert.Equal(t, "https://example.com", tc.URL)
}
