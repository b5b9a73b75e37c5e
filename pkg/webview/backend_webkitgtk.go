//go:build webkit_cgo && (linux || freebsd || netbsd || openbsd) && !android

package webview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsc "github.com/diamondburned/gotk4-webkitgtk/pkg/jsc"
	webkit "github.com/diamondburned/gotk4-webkitgtk/pkg/webkit/v6"
	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/rs/zerolog"
)

const gtkMessageHandler = "weft"

// gtkSend is the in-page expression reaching the WebKit message channel.
const gtkSend = "(m) => window.webkit.messageHandlers." + gtkMessageHandler + ".postMessage(m)"

// gtkContainer is what a caller-owned GTK window handle must implement for
// the view to be attached.
type gtkContainer interface {
	SetChild(child gtk.Widgetter)
}

// webkitGTKBackend drives a WebKitGTK 6 WebView. All native mutation stays
// on the GTK main thread; cross-thread completions are marshaled with
// glib.IdleAdd.
type webkitGTKBackend struct {
	h   *Handle
	log zerolog.Logger

	view    *webkit.WebView
	ucm     *webkit.UserContentManager
	session *webkit.NetworkSession

	window     *gtk.Window
	ownsWindow bool
}

func newWebKitGTKBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	b := &webkitGTKBackend{
		h:   h,
		log: cfg.logger.With().Str("component", "webkitgtk").Logger(),
	}
	h.disp.post = func(fn func()) {
		glib.IdleAdd(func() bool {
			fn()
			return false
		})
	}

	if err := b.initSession(cfg); err != nil {
		return nil, err
	}

	view := webkit.NewWebView()
	if view == nil {
		return nil, fmt.Errorf("failed to create WebKit WebView")
	}
	b.view = view

	if err := b.attach(win); err != nil {
		b.rollback()
		return nil, err
	}

	b.applySettings(cfg)
	if err := b.registerSchemes(); err != nil {
		b.rollback()
		return nil, err
	}
	b.installContentScripts()
	b.connectSignals()
	b.installDropTarget()

	view.SetZoomLevel(cfg.zoom)
	return b, nil
}

// initSession configures the network session. The first session created
// becomes the default for the network process, so this must run before the
// WebView exists.
func (b *webkitGTKBackend) initSession(cfg *Config) error {
	switch {
	case cfg.incognito:
		b.session = webkit.NewNetworkSessionEphemeral()
	case cfg.dataDir != "":
		dataDir := cfg.dataDir
		cacheDir := filepath.Join(cfg.dataDir, "cache")
		for _, dir := range []string{dataDir, cacheDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("data directory: %w", err)
			}
		}
		session := webkit.NewNetworkSession(dataDir, cacheDir)
		if session == nil {
			return fmt.Errorf("failed to create persistent network session")
		}
		// Without explicit persistent cookie storage WebKit keeps cookies
		// in memory only.
		cm := session.CookieManager()
		if cm != nil {
			cm.SetPersistentStorage(filepath.Join(dataDir, "cookies.db"), webkit.CookiePersistentStorageSqlite)
		}
		b.session = session
	}
	return nil
}

func (b *webkitGTKBackend) attach(win WindowHandle) error {
	switch win.Kind {
	case WindowGTK:
		container, ok := win.Native.(gtkContainer)
		if !ok {
			return fmt.Errorf("%w: WindowGTK requires a gtk container in Native", ErrInvalidWindowHandle)
		}
		container.SetChild(b.view)
	case WindowNone:
		window := gtk.NewWindow()
		window.SetChild(b.view)
		b.window = window
		b.ownsWindow = true
	default:
		return fmt.Errorf("%w: webkitgtk backend cannot attach to %s", ErrInvalidWindowHandle, win.Kind)
	}
	return nil
}

func (b *webkitGTKBackend) applySettings(cfg *Config) {
	settings := b.view.Settings()
	if settings == nil {
		return
	}
	settings.SetEnableJavascript(true)
	settings.SetEnableDeveloperExtras(cfg.devtools)
	settings.SetJavascriptCanAccessClipboard(false)
	if cfg.userAgent != "" {
		settings.SetUserAgent(cfg.userAgent)
	}
	if cfg.transparent {
		b.view.SetBackgroundColor(gdk.NewRGBA(0, 0, 0, 0))
	}
}

// registerSchemes installs every router scheme on the WebContext and marks
// it secure and local so pages loaded from it behave like first-party
// origins.
func (b *webkitGTKBackend) registerSchemes() error {
	ctx := b.view.Context()
	if ctx == nil {
		return fmt.Errorf("webcontext is nil")
	}
	secmgr := ctx.SecurityManager()
	for _, scheme := range b.h.router.schemes() {
		scheme := scheme
		ctx.RegisterURIScheme(scheme, func(req *webkit.URISchemeRequest) {
			b.serveSchemeRequest(scheme, req)
		})
		if secmgr != nil {
			secmgr.RegisterURISchemeAsSecure(scheme)
			secmgr.RegisterURISchemeAsLocal(scheme)
		}
		b.log.Debug().Str("scheme", scheme).Msg("registered URI scheme")
	}
	return nil
}

// serveSchemeRequest runs on the GTK main thread; the router posts the
// completion back here before the native request object is finished.
func (b *webkitGTKBackend) serveSchemeRequest(scheme string, req *webkit.URISchemeRequest) {
	r := &Request{
		Method: req.HTTPMethod(),
		URL:    req.URI(),
		Header: NewHeader(),
	}
	if headers := req.HTTPHeaders(); headers != nil {
		headers.Foreach(func(name, value string) { r.Header.Add(name, value) })
	}
	if body := req.HTTPBody(); body != nil {
		r.Body = drainInputStream(body)
	}
	b.h.dispatchScheme(scheme, r, func(resp *Response) {
		b.finishSchemeRequest(req, resp)
	})
}

// drainInputStream reads a request body stream to EOF. Scheme request
// bodies are already buffered by the network process, so the reads do not
// block the main thread on the page.
func drainInputStream(stream gio.InputStreamer) []byte {
	base := gio.BaseInputStream(stream)
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := base.Read(context.Background(), buf)
		if n <= 0 || err != nil {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func (b *webkitGTKBackend) finishSchemeRequest(req *webkit.URISchemeRequest, resp *Response) {
	payload, err := resp.payload()
	if err != nil {
		b.log.Warn().Err(err).Msg("response stream failed")
		payload = nil
	}
	stream := gio.NewMemoryInputStreamFromBytes(glib.NewBytes(payload))
	wkResp := webkit.NewURISchemeResponse(stream, int64(len(payload)))
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		wkResp.SetContentType(ct)
	}
	wkResp.SetStatus(uint(resp.Status), "")
	headers := wkResp.HTTPHeaders()
	if headers != nil {
		resp.Header.Each(func(k, v string) { headers.Append(k, v) })
	}
	req.FinishWithResponse(wkResp)
}

// installContentScripts injects the IPC binding plus user scripts into
// every new document, all frames, before page scripts run.
func (b *webkitGTKBackend) installContentScripts() {
	ucm := b.view.UserContentManager()
	if ucm == nil {
		b.log.Warn().Msg("user content manager is nil, startup scripts skipped")
		return
	}
	b.ucm = ucm

	for _, src := range b.h.initScripts(gtkSend) {
		ucm.AddScript(webkit.NewUserScript(
			src,
			webkit.UserContentInjectAllFrames,
			webkit.UserScriptInjectAtDocumentStart,
			nil,
			nil,
		))
	}

	ucm.Connect("script-message-received::"+gtkMessageHandler, func(value *jsc.Value) {
		if value == nil {
			return
		}
		b.h.deliverIPC(Frame{URL: b.view.URI(), Main: true}, value.ToStr())
	})
	if !ucm.RegisterScriptMessageHandler(gtkMessageHandler, "") {
		b.log.Warn().Str("handler", gtkMessageHandler).Msg("failed to register script message handler")
	}
}

func (b *webkitGTKBackend) connectSignals() {
	b.view.Connect("notify::title", func() {
		if title := b.view.Title(); title != "" {
			b.h.emitTitle(title)
		}
	})

	b.view.ConnectDecidePolicy(func(decision webkit.PolicyDecisioner, decisionType webkit.PolicyDecisionType) bool {
		if decisionType != webkit.PolicyDecisionTypeNavigationAction {
			return false
		}
		nav, ok := decision.(*webkit.NavigationPolicyDecision)
		if !ok {
			return false
		}
		action := nav.NavigationAction()
		uri := action.Request().URI()
		if !b.h.decideNavigation(uri) {
			nav.Ignore()
			return true
		}
		return false
	})
}

// installDropTarget wires GTK4 drag-and-drop for file lists. GTK reports
// logical coordinates already, so positions pass through unscaled.
func (b *webkitGTKBackend) installDropTarget() {
	target := gtk.NewDropTarget(glib.TypeFromName("GdkFileList"), gdk.ActionCopy)

	target.ConnectMotion(func(x, y float64) gdk.DragAction {
		b.h.emitFileDrop(FileDropEvent{Phase: DropHover, X: x, Y: y})
		return gdk.ActionCopy
	})
	target.ConnectDrop(func(value *coreglib.Value, x, y float64) bool {
		list, ok := value.GoValue().(*gdk.FileList)
		if !ok {
			return false
		}
		var paths []string
		for _, file := range list.Files() {
			if p := file.Path(); p != "" {
				paths = append(paths, p)
			}
		}
		return b.h.emitFileDrop(FileDropEvent{Phase: DropPerformed, Paths: paths, X: x, Y: y})
	})

	b.view.AddController(target)
}

func (b *webkitGTKBackend) name() string { return "webkitgtk" }

func (b *webkitGTKBackend) capabilities() Capability {
	caps := CapScriptResult | CapZoom | CapVisibility | CapFileDrop |
		CapTitleChanged | CapClearBrowsingData | CapIncognito |
		CapDevTools | CapTransparency
	if b.ownsWindow {
		caps |= CapFullscreen
	}
	return caps
}

func (b *webkitGTKBackend) navigate(url string) error {
	b.view.LoadURI(url)
	return nil
}

func (b *webkitGTKBackend) loadHTML(markup string) error {
	b.view.LoadHTML(markup, "")
	return nil
}

func (b *webkitGTKBackend) evaluateScript(src string, evalID uint64, wantResult bool) error {
	if !wantResult {
		b.view.EvaluateJavascript(context.Background(), src, -1, "", "", nil)
		return nil
	}
	b.view.EvaluateJavascript(context.Background(), src, -1, "", "", func(res gio.AsyncResulter) {
		value, err := b.view.EvaluateJavascriptFinish(res)
		var result string
		if err == nil && value != nil {
			result = value.ToStr()
		}
		b.h.completeEval(evalID, result, err)
	})
	return nil
}

func (b *webkitGTKBackend) reload() error {
	b.view.Reload()
	return nil
}

func (b *webkitGTKBackend) setZoom(factor float64) error {
	b.view.SetZoomLevel(factor)
	return nil
}

func (b *webkitGTKBackend) setVisible(on bool) error {
	if b.ownsWindow {
		b.window.SetVisible(on)
		return nil
	}
	b.view.SetVisible(on)
	return nil
}

func (b *webkitGTKBackend) setFullscreen(on bool) error {
	if !b.ownsWindow {
		return ErrUnsupported
	}
	if on {
		b.window.Fullscreen()
	} else {
		b.window.Unfullscreen()
	}
	return nil
}

func (b *webkitGTKBackend) clearBrowsingData() error {
	session := b.session
	if session == nil {
		session = b.view.NetworkSession()
	}
	if session == nil {
		return &BackendError{Backend: b.name(), Detail: "no network session"}
	}
	manager := session.WebsiteDataManager()
	if manager == nil {
		return &BackendError{Backend: b.name(), Detail: "no website data manager"}
	}
	manager.Clear(context.Background(), webkit.WebsiteDataAll, 0, func(res gio.AsyncResulter) {
		if err := manager.ClearFinish(res); err != nil {
			b.log.Warn().Err(err).Msg("clearing browsing data failed")
		}
	})
	return nil
}

// rollback tears down partially-constructed native state after an init
// failure.
func (b *webkitGTKBackend) rollback() {
	if b.window != nil {
		b.window.Destroy()
		b.window = nil
	}
	b.view = nil
}

func (b *webkitGTKBackend) destroy() {
	if b.ucm != nil {
		b.ucm.UnregisterScriptMessageHandler(gtkMessageHandler, "")
	}
	if b.ownsWindow && b.window != nil {
		b.window.Destroy()
		b.window = nil
	} else if b.view != nil {
		b.view.Unparent()
	}
	b.view = nil
}
