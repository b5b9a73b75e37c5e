package webview

// Frame identifies the page context a script message originated from, when
// the native engine exposes one.
type Frame struct {
	URL  string
	Main bool
}

// Message is a payload sent from in-page script over the IPC bridge.
// Delivery is at-most-once per script-side send, FIFO per page.
type Message struct {
	Frame Frame
	Body  string
}

// DropPhase tells which stage of a drag-and-drop interaction an event
// belongs to.
type DropPhase int

const (
	DropHover DropPhase = iota
	DropPerformed
	DropCancelled
)

func (p DropPhase) String() string {
	switch p {
	case DropHover:
		return "hover"
	case DropPerformed:
		return "drop"
	case DropCancelled:
		return "cancelled"
	}
	return "unknown"
}

// FileDropEvent carries the file paths and window-relative position of a
// drag-and-drop notification. Positions are logical coordinates; the caller
// applies any DPI scale factor.
type FileDropEvent struct {
	Phase DropPhase
	Paths []string
	X     float64
	Y     float64
}

// Callback signatures bound at configuration time.
type (
	// IPCHandler receives page-to-host messages in per-page send order.
	IPCHandler func(Message)

	// NavigationHandler decides whether a navigation may proceed.
	NavigationHandler func(url string) bool

	// FileDropHandler reports whether the event was consumed by the host.
	FileDropHandler func(FileDropEvent) bool

	// TitleHandler observes document title changes.
	TitleHandler func(title string)

	// EvalResult receives the outcome of one EvaluateScript call. It is
	// invoked at most once, on the owning thread.
	EvalResult func(result string, err error)
)
