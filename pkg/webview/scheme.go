package webview

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// SchemeHandler produces a Response for a request intercepted on a custom
// scheme. respond must be called exactly once; it may be called before
// HandleScheme returns (synchronous completion) or later from any goroutine
// (asynchronous completion). The router marshals the completion back onto
// the owning thread before the native request object is touched.
type SchemeHandler interface {
	HandleScheme(req *Request, respond func(*Response))
}

// SchemeHandlerFunc adapts a function to a SchemeHandler.
type SchemeHandlerFunc func(req *Request, respond func(*Response))

func (f SchemeHandlerFunc) HandleScheme(req *Request, respond func(*Response)) {
	f(req, respond)
}

// schemeRouter owns the scheme → handler table of one handle and tracks
// in-flight requests so that completions arriving after destruction are
// suppressed instead of reaching freed native state.
type schemeRouter struct {
	disp *dispatcher
	live *liveness
	log  zerolog.Logger

	mu       sync.Mutex
	order    []string
	handlers map[string]SchemeHandler
	pending  map[uint64]func(*Response)
	nextID   uint64
}

func newSchemeRouter(disp *dispatcher, live *liveness, log zerolog.Logger) *schemeRouter {
	return &schemeRouter{
		disp:     disp,
		live:     live,
		log:      log.With().Str("component", "scheme-router").Logger(),
		handlers: make(map[string]SchemeHandler),
		pending:  make(map[uint64]func(*Response)),
	}
}

// register installs a handler for one scheme name. Installing a second
// handler for the same name on the same handle is rejected.
func (r *schemeRouter) register(name string, h SchemeHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[name]; dup {
		return ErrSchemeRegistered
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	r.log.Debug().Str("scheme", name).Msg("registered scheme handler")
	return nil
}

// schemes returns the registered scheme names in registration order.
func (r *schemeRouter) schemes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *schemeRouter) lookup(name string) (SchemeHandler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[name]
	return h, ok
}

// dispatch routes one intercepted request. finish receives the response on
// the owning thread, exactly once, and only while the handle is alive; the
// adapter uses it to complete the native request object. The application
// handler is invoked exactly once per request. Handler panics surface as a
// 500 response rather than aborting the page load.
func (r *schemeRouter) dispatch(scheme string, req *Request, finish func(*Response)) {
	handler, ok := r.lookup(scheme)
	if !ok {
		r.complete(r.track(finish), errorResponse(http.StatusNotFound, "no handler for scheme "+scheme))
		return
	}

	id := r.track(finish)

	var once sync.Once
	respond := func(resp *Response) {
		once.Do(func() {
			if resp == nil {
				resp = errorResponse(http.StatusInternalServerError, "handler returned no response")
			}
			r.disp.Post(func() { r.deliver(id, resp) })
		})
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error().Interface("panic", rec).Str("url", req.URL).Msg("scheme handler panicked")
				respond(errorResponse(http.StatusInternalServerError, "scheme handler failed"))
			}
		}()
		handler.HandleScheme(req, respond)
	}()
}

// track records an in-flight request and returns its id. complete is only
// reachable while the id is still tracked; cancelAll forgets every id.
func (r *schemeRouter) track(finish func(*Response)) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.pending[id] = finish
	return id
}

// complete finishes a tracked request immediately on the calling goroutine,
// via the owning-thread dispatcher.
func (r *schemeRouter) complete(id uint64, resp *Response) {
	r.disp.Post(func() { r.deliver(id, resp) })
}

// deliver runs on the owning thread.
func (r *schemeRouter) deliver(id uint64, resp *Response) {
	r.mu.Lock()
	finish, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok || !r.live.ok() {
		return
	}
	finish(resp)
}

// inflight reports the number of requests whose completion is still pending.
func (r *schemeRouter) inflight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// cancelAll drops every pending completion. Called on destruction; handlers
// still running are allowed to finish, but their respond calls become
// no-ops. Late completions are suppressed silently rather than reported as
// cancellation events.
func (r *schemeRouter) cancelAll() {
	r.mu.Lock()
	n := len(r.pending)
	r.pending = make(map[uint64]func(*Response))
	r.mu.Unlock()
	if n > 0 {
		r.log.Debug().Int("dropped", n).Msg("cancelled in-flight scheme requests")
	}
}
