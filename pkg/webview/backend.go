package webview

// lifecycle states of one handle. Constructing is entered once, inside New,
// and must reach Ready or fail without leaking native objects. Destroyed is
// terminal.
type state int32

const (
	stateUninitialized state = iota
	stateConstructing
	stateReady
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateConstructing:
		return "constructing"
	case stateReady:
		return "ready"
	case stateDestroyed:
		return "destroyed"
	}
	return "invalid"
}

// backend is the per-platform adapter contract. Implementations translate
// the unified configuration and runtime operations into one native engine's
// object graph and callback registrations.
//
// All methods are called with the handle in Ready state (destroy excepted)
// and must touch native objects only on the owning thread; adapters marshal
// through the handle's dispatcher where the native toolkit requires it.
type backend interface {
	name() string
	capabilities() Capability

	navigate(url string) error
	loadHTML(markup string) error

	// evaluateScript runs src in the page. When wantResult is set the
	// adapter must arrange exactly one completeEval(evalID, ...) on the
	// bridge; otherwise the evaluation is fire-and-forget.
	evaluateScript(src string, evalID uint64, wantResult bool) error

	reload() error
	setZoom(factor float64) error
	setVisible(on bool) error
	setFullscreen(on bool) error
	clearBrowsingData() error

	// destroy releases every native resource and unregisters every native
	// callback. The handle's liveness is already revoked when it runs, so
	// late native callbacks are no-ops.
	destroy()
}

// platformBackendFactory constructs the adapter for the active compile
// target. Declared as a variable so the test suite can substitute a fake.
// Each select_*.go file assigns the real constructor for its target.
var platformBackendFactory = newPlatformBackend
