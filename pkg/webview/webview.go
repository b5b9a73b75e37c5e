// Package webview embeds a platform-native web-rendering surface inside an
// application window behind one backend-erased API. The native engine is
// selected by compile target: WebKitGTK on Linux and the BSDs, WebView2 on
// Windows, WKWebView on Apple platforms, the system WebView on Android, and
// a pure-Go headless engine everywhere else (and wherever no native engine
// is compiled in).
package webview

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Handle is the live webview bound to a caller-owned window. It wraps
// exactly one native engine instance plus the routing tables bound at
// construction time. A Handle is not safe for concurrent use from multiple
// threads; operations must originate from, or be marshaled to, its owning
// thread.
type Handle struct {
	cfg  *Config
	log  zerolog.Logger
	live *liveness
	disp *dispatcher

	router *schemeRouter
	bridge *ipcBridge

	backend backend
	caps    Capability

	state       atomic.Int32
	destroyOnce sync.Once
}

// New validates the configuration, selects the backend adapter for the
// compile target, and constructs the native webview attached to win. On
// failure no partially-initialized native resources remain.
func New(win WindowHandle, cfg *Config) (*Handle, error) {
	if cfg == nil {
		return nil, &ConfigError{Err: ErrNilConfiguration}
	}

	h := &Handle{
		cfg:  cfg,
		log:  cfg.logger.With().Str("component", "webview").Logger(),
		live: newLiveness(),
	}
	h.state.Store(int32(stateConstructing))
	h.disp = &dispatcher{live: h.live}
	h.router = newSchemeRouter(h.disp, h.live, cfg.logger)
	h.bridge = newIPCBridge(h.disp, h.live, cfg.onIPC, cfg.logger)

	for _, e := range cfg.schemes {
		if err := h.router.register(e.name, e.handler); err != nil {
			// Unreachable for configs produced by Build, which rejects
			// duplicates, but guards hand-rolled Config values.
			h.abortConstruction()
			return nil, &ConfigError{Scheme: e.name, Err: err}
		}
	}

	b, err := platformBackendFactory(h, win, cfg)
	if err != nil {
		h.abortConstruction()
		return nil, &BackendInitError{Backend: backendName, Err: err}
	}
	h.backend = b
	h.caps = b.capabilities()
	h.state.Store(int32(stateReady))

	h.log.Debug().
		Str("backend", b.name()).
		Str("capabilities", h.caps.String()).
		Int("schemes", len(cfg.schemes)).
		Msg("webview constructed")

	if cfg.url != "" {
		if err := b.navigate(cfg.url); err != nil {
			h.log.Warn().Err(err).Str("url", cfg.url).Msg("initial navigation failed")
		}
	} else if cfg.html != "" {
		if err := b.loadHTML(cfg.html); err != nil {
			h.log.Warn().Err(err).Msg("initial content load failed")
		}
	}

	return h, nil
}

// abortConstruction rolls back registrations performed before a
// construction failure.
func (h *Handle) abortConstruction() {
	h.live.revoke()
	h.router.cancelAll()
	h.bridge.cancelEvals()
	h.state.Store(int32(stateDestroyed))
}

// Backend names the active backend adapter.
func (h *Handle) Backend() string {
	if h.backend == nil {
		return "none"
	}
	return h.backend.name()
}

// Capabilities reports the active backend's declared capability set.
func (h *Handle) Capabilities() Capability { return h.caps }

// checkReady gates runtime operations on the Ready state.
func (h *Handle) checkReady() error {
	switch state(h.state.Load()) {
	case stateReady:
		return nil
	case stateDestroyed:
		return ErrHandleDestroyed
	default:
		return ErrInvalidState
	}
}

func (h *Handle) checkCap(c Capability) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	if !h.caps.Has(c) {
		return ErrUnsupported
	}
	return nil
}

// Navigate loads url in the view.
func (h *Handle) Navigate(url string) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.backend.navigate(url)
}

// LoadHTML loads inline markup as the current document.
func (h *Handle) LoadHTML(markup string) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.backend.loadHTML(markup)
}

// EvaluateScript runs src in the page. When fn is non-nil and the backend
// supports result delivery (CapScriptResult), fn is invoked exactly once on
// the owning thread with the stringified result; on backends without a
// result channel the evaluation is fire-and-forget and fn is never invoked.
// fn never runs synchronously from within this call.
func (h *Handle) EvaluateScript(src string, fn EvalResult) error {
	if err := h.checkReady(); err != nil {
		return err
	}
	if fn != nil && h.caps.Has(CapScriptResult) {
		id := h.bridge.registerEval(fn)
		return h.backend.evaluateScript(src, id, true)
	}
	return h.backend.evaluateScript(src, 0, false)
}

// Reload reloads the current page.
func (h *Handle) Reload() error {
	if err := h.checkReady(); err != nil {
		return err
	}
	return h.backend.reload()
}

// SetZoom sets the page zoom factor.
func (h *Handle) SetZoom(factor float64) error {
	if err := h.checkCap(CapZoom); err != nil {
		return err
	}
	return h.backend.setZoom(factor)
}

// SetVisible shows or hides the view.
func (h *Handle) SetVisible(on bool) error {
	if err := h.checkCap(CapVisibility); err != nil {
		return err
	}
	return h.backend.setVisible(on)
}

// SetFullscreen toggles engine-managed fullscreen. Requires
// AllowFullscreen in the configuration and backend support.
func (h *Handle) SetFullscreen(on bool) error {
	if err := h.checkCap(CapFullscreen); err != nil {
		return err
	}
	if !h.cfg.allowFullscreen {
		return ErrUnsupported
	}
	return h.backend.setFullscreen(on)
}

// ClearBrowsingData wipes the engine's data store for this view.
func (h *Handle) ClearBrowsingData() error {
	if err := h.checkCap(CapClearBrowsingData); err != nil {
		return err
	}
	return h.backend.clearBrowsingData()
}

// Destroy releases the native engine instance and unregisters every native
// callback. In-flight scheme handlers are allowed to finish but their
// completions are suppressed; no application callback is invoked after
// Destroy returns. Destroy is idempotent: the second call is a no-op.
func (h *Handle) Destroy() {
	h.destroyOnce.Do(func() {
		// Revoke before touching native objects so any still-in-flight
		// native callback observes "destroyed" and bails out.
		h.live.revoke()
		h.router.cancelAll()
		h.bridge.cancelEvals()
		if h.backend != nil {
			h.backend.destroy()
		}
		h.state.Store(int32(stateDestroyed))
		h.log.Debug().Msg("webview destroyed")
	})
}

// Adapter-facing entry points. These are the unified callback signatures
// every backend translates its native events into.

// dispatchScheme routes one intercepted request; finish completes the
// native request object on the owning thread.
func (h *Handle) dispatchScheme(scheme string, req *Request, finish func(*Response)) {
	h.router.dispatch(scheme, req, finish)
}

// deliverIPC feeds one page-originated message to the host handler.
func (h *Handle) deliverIPC(frame Frame, body string) {
	h.bridge.deliver(frame, body)
}

// completeEval reports a script evaluation result from the native layer.
func (h *Handle) completeEval(id uint64, result string, err error) {
	h.bridge.completeEval(id, result, err)
}

// decideNavigation consults the navigation policy handler; true allows.
func (h *Handle) decideNavigation(url string) bool {
	if h.cfg.onNavigate == nil || !h.live.ok() {
		return true
	}
	return h.cfg.onNavigate(url)
}

// emitTitle reports a document title change.
func (h *Handle) emitTitle(title string) {
	if h.cfg.onTitle == nil {
		return
	}
	h.disp.Post(func() { h.cfg.onTitle(title) })
}

// emitFileDrop reports a drag-and-drop event; the return value tells the
// native layer whether the host consumed it. Unlike the other events this
// is synchronous: the toolkits need the answer inside the native callback.
func (h *Handle) emitFileDrop(ev FileDropEvent) bool {
	if h.cfg.onFileDrop == nil || !h.live.ok() {
		return false
	}
	return h.cfg.onFileDrop(ev)
}

// initScripts returns the per-document startup scripts for a backend whose
// message channel is reached by the send expression.
func (h *Handle) initScripts(send string) []string {
	return buildInitScripts(send, h.cfg.initScripts)
}
