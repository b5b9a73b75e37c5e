package webview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build_Defaults(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1.0, cfg.zoom)
	assert.Empty(t, cfg.url)
	assert.Empty(t, cfg.html)
	assert.False(t, cfg.incognito)
	assert.False(t, cfg.devtools)
}

func TestBuilder_URLAndHTMLAreExclusive(t *testing.T) {
	cfg, err := NewBuilder().
		URL("https://example.com").
		HTML("<html></html>").
		Build()
	require.NoError(t, err)
	assert.Empty(t, cfg.url, "HTML set last should clear the URL")
	assert.Equal(t, "<html></html>", cfg.html)

	cfg, err = NewBuilder().
		HTML("<html></html>").
		URL("https://example.com").
		Build()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cfg.url)
	assert.Empty(t, cfg.html, "URL set last should clear the HTML")
}

func TestBuilder_Build_DuplicateScheme(t *testing.T) {
	noop := SchemeHandlerFunc(func(_ *Request, respond func(*Response)) {
		respond(&Response{Status: 200, Header: NewHeader()})
	})

	_, err := NewBuilder().
		Scheme("app", noop).
		Scheme("assets", noop).
		Scheme("app", noop).
		Build()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDuplicateScheme)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "app", cfgErr.Scheme)
}

func TestBuilder_Build_SchemeNameValidation(t *testing.T) {
	noop := SchemeHandlerFunc(func(_ *Request, respond func(*Response)) { respond(nil) })

	valid := []string{"app", "x-resource", "a1", "wails.local", "my+scheme", "APP"}
	for _, name := range valid {
		_, err := NewBuilder().Scheme(name, noop).Build()
		assert.NoError(t, err, "scheme %q should be accepted", name)
	}

	invalid := []string{"", "1app", "-app", "my scheme", "app:", "schéma", "app/x"}
	for _, name := range invalid {
		_, err := NewBuilder().Scheme(name, noop).Build()
		require.Error(t, err, "scheme %q should be rejected", name)
		assert.ErrorIs(t, err, ErrInvalidScheme, "scheme %q", name)
	}
}

func TestBuilder_Build_ReservedSchemes(t *testing.T) {
	noop := SchemeHandlerFunc(func(_ *Request, respond func(*Response)) { respond(nil) })

	for _, name := range []string{"http", "https", "file", "about", "blob", "data"} {
		_, err := NewBuilder().Scheme(name, noop).Build()
		require.Error(t, err, "scheme %q is reserved", name)
		assert.ErrorIs(t, err, ErrInvalidScheme)
	}
}

func TestBuilder_Build_ZoomOutOfRange(t *testing.T) {
	_, err := NewBuilder().ZoomDefault(0).Build()
	require.Error(t, err)

	_, err = NewBuilder().ZoomDefault(-1.5).Build()
	require.Error(t, err)

	cfg, err := NewBuilder().ZoomDefault(2.5).Build()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.zoom)
}

func TestBuilder_Build_CopiesSlices(t *testing.T) {
	b := NewBuilder().InitScript("one")
	cfg, err := b.Build()
	require.NoError(t, err)

	b.InitScript("two")
	assert.Len(t, cfg.initScripts, 1, "config built earlier must not see later builder changes")
}

func TestBuilder_InitScriptOrder(t *testing.T) {
	cfg, err := NewBuilder().
		InitScript("first").
		InitScript("second").
		InitScript("third").
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, cfg.initScripts)
}
