package webview

import (
	"fmt"

	"github.com/rs/zerolog"
)

// schemeEntry pairs a custom scheme name with its handler, preserving the
// order schemes were added in.
type schemeEntry struct {
	name    string
	handler SchemeHandler
}

// Config is an immutable description of desired webview behavior. Build one
// with a Builder; after Build it is safe to hand to New and must not be
// mutated (the builder keeps no reference to it).
type Config struct {
	url  string
	html string

	initScripts []string
	schemes     []schemeEntry

	onIPC      IPCHandler
	onNavigate NavigationHandler
	onFileDrop FileDropHandler
	onTitle    TitleHandler

	dataDir         string
	incognito       bool
	devtools        bool
	transparent     bool
	allowFullscreen bool
	userAgent       string
	zoom            float64

	logger zerolog.Logger
}

// Builder accumulates optional settings and validates them in Build. It has
// no side effects before Build; Build is the only fallible step.
type Builder struct {
	cfg Config
}

// NewBuilder returns a Builder with engine defaults: no initial content,
// zoom 1.0, persistent data store, devtools off.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{zoom: 1.0, logger: zerolog.Nop()}}
}

// URL sets the initial navigation target. Mutually exclusive with HTML; the
// last one set wins.
func (b *Builder) URL(u string) *Builder {
	b.cfg.url = u
	b.cfg.html = ""
	return b
}

// HTML sets inline markup as the initial content.
func (b *Builder) HTML(markup string) *Builder {
	b.cfg.html = markup
	b.cfg.url = ""
	return b
}

// InitScript appends a script injected into every new top-level document
// (and iframes where the backend exposes that hook) before page scripts
// run. Scripts run in the order they were added.
func (b *Builder) InitScript(src string) *Builder {
	b.cfg.initScripts = append(b.cfg.initScripts, src)
	return b
}

// Scheme registers a custom scheme handler. Names must be unique within one
// configuration; validation happens in Build.
func (b *Builder) Scheme(name string, h SchemeHandler) *Builder {
	b.cfg.schemes = append(b.cfg.schemes, schemeEntry{name: name, handler: h})
	return b
}

// SchemeFunc registers a function as a custom scheme handler.
func (b *Builder) SchemeFunc(name string, fn func(req *Request, respond func(*Response))) *Builder {
	return b.Scheme(name, SchemeHandlerFunc(fn))
}

// OnIPCMessage sets the page-to-host message handler.
func (b *Builder) OnIPCMessage(fn IPCHandler) *Builder {
	b.cfg.onIPC = fn
	return b
}

// OnNavigate sets the navigation policy handler. Returning false denies the
// load.
func (b *Builder) OnNavigate(fn NavigationHandler) *Builder {
	b.cfg.onNavigate = fn
	return b
}

// OnFileDrop sets the drag-and-drop handler.
func (b *Builder) OnFileDrop(fn FileDropHandler) *Builder {
	b.cfg.onFileDrop = fn
	return b
}

// OnTitleChanged sets the document-title observer. Title reporting is
// capability-gated per backend.
func (b *Builder) OnTitleChanged(fn TitleHandler) *Builder {
	b.cfg.onTitle = fn
	return b
}

// DataDir sets the on-disk data-store path for cookies and cache. Layout
// inside the directory is owned by the native engine. Ignored when
// Incognito is set.
func (b *Builder) DataDir(path string) *Builder {
	b.cfg.dataDir = path
	return b
}

// Incognito requests an ephemeral data store.
func (b *Builder) Incognito(on bool) *Builder {
	b.cfg.incognito = on
	return b
}

// DevTools enables the engine inspector where available.
func (b *Builder) DevTools(on bool) *Builder {
	b.cfg.devtools = on
	return b
}

// Transparent requests a transparent view background where available.
func (b *Builder) Transparent(on bool) *Builder {
	b.cfg.transparent = on
	return b
}

// AllowFullscreen permits SetFullscreen on backends that support it.
func (b *Builder) AllowFullscreen(on bool) *Builder {
	b.cfg.allowFullscreen = on
	return b
}

// UserAgent overrides the engine user agent string.
func (b *Builder) UserAgent(ua string) *Builder {
	b.cfg.userAgent = ua
	return b
}

// ZoomDefault sets the initial zoom factor.
func (b *Builder) ZoomDefault(factor float64) *Builder {
	b.cfg.zoom = factor
	return b
}

// Logger attaches a zerolog logger; component loggers are derived from it.
func (b *Builder) Logger(log zerolog.Logger) *Builder {
	b.cfg.logger = log
	return b
}

// Build validates the accumulated settings and yields the immutable
// Configuration. Duplicate scheme names fail with ErrDuplicateScheme,
// syntactically invalid or reserved names with ErrInvalidScheme; both are
// wrapped in a *ConfigError. No native call happens before Build succeeds.
func (b *Builder) Build() (*Config, error) {
	seen := make(map[string]struct{}, len(b.cfg.schemes))
	for _, e := range b.cfg.schemes {
		if err := validateSchemeName(e.name); err != nil {
			return nil, &ConfigError{Scheme: e.name, Err: err}
		}
		if _, dup := seen[e.name]; dup {
			return nil, &ConfigError{Scheme: e.name, Err: ErrDuplicateScheme}
		}
		seen[e.name] = struct{}{}
	}
	if b.cfg.zoom <= 0 {
		return nil, &ConfigError{Err: fmt.Errorf("zoom factor %v out of range", b.cfg.zoom)}
	}

	cfg := b.cfg
	cfg.initScripts = append([]string(nil), b.cfg.initScripts...)
	cfg.schemes = append([]schemeEntry(nil), b.cfg.schemes...)
	return &cfg, nil
}

// reservedSchemes are names the native engines claim for themselves; the
// engines reject or misroute them, so Build refuses them up front.
var reservedSchemes = map[string]struct{}{
	"http": {}, "https": {}, "file": {}, "ftp": {},
	"data": {}, "blob": {}, "about": {}, "javascript": {},
	"ws": {}, "wss": {},
}

// validateSchemeName enforces the syntax shared by all four engines:
// ASCII, a letter first, then letters, digits, '+', '-' or '.', no colon.
func validateSchemeName(name string) error {
	if name == "" {
		return ErrInvalidScheme
	}
	if _, reserved := reservedSchemes[name]; reserved {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidScheme, name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return fmt.Errorf("%w: %q", ErrInvalidScheme, name)
		}
	}
	return nil
}
