package webview

// WindowKind tags the platform type of an externally owned window
// reference. The selected backend validates the kind against what its
// native engine can attach to.
type WindowKind int

const (
	// WindowNone asks the backend to run detached (headless engine) or to
	// create its own top-level window where the toolkit allows it.
	WindowNone WindowKind = iota
	// WindowGTK is a gtk.Widgetter container carried in Native.
	WindowGTK
	// WindowWin32 is an HWND carried in Ptr.
	WindowWin32
	// WindowNSView is an NSView pointer carried in Ptr.
	WindowNSView
	// WindowAndroid is a host bridge (see AndroidBridge) carried in Native.
	WindowAndroid
)

func (k WindowKind) String() string {
	switch k {
	case WindowNone:
		return "none"
	case WindowGTK:
		return "gtk"
	case WindowWin32:
		return "win32"
	case WindowNSView:
		return "nsview"
	case WindowAndroid:
		return "android"
	}
	return "unknown"
}

// WindowHandle is an opaque, externally owned platform window reference.
// The library never takes ownership: destroying a Handle leaves the window
// alive.
type WindowHandle struct {
	Kind WindowKind

	// Ptr carries pointer-sized native references (HWND, NSView*).
	Ptr uintptr

	// Native carries toolkit object references that are not plain pointers.
	Native any
}

// NoWindow returns the detached window handle.
func NoWindow() WindowHandle { return WindowHandle{Kind: WindowNone} }

// Win32Window wraps an HWND.
func Win32Window(hwnd uintptr) WindowHandle {
	return WindowHandle{Kind: WindowWin32, Ptr: hwnd}
}

// NSViewWindow wraps an NSView pointer.
func NSViewWindow(view uintptr) WindowHandle {
	return WindowHandle{Kind: WindowNSView, Ptr: view}
}
