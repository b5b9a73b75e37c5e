package webview

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateScheme is reported by Builder.Build when the same custom
	// scheme name was added more than once.
	ErrDuplicateScheme = errors.New("webview: duplicate custom scheme")

	// ErrInvalidScheme is reported by Builder.Build when a scheme name is
	// empty, non-ASCII, syntactically invalid or reserved by the engine.
	ErrInvalidScheme = errors.New("webview: invalid custom scheme name")

	// ErrSchemeRegistered is returned when a handler for the same scheme is
	// installed twice on one handle.
	ErrSchemeRegistered = errors.New("webview: scheme already registered")

	// ErrInvalidState is returned by runtime operations invoked before the
	// handle reached Ready.
	ErrInvalidState = errors.New("webview: operation not valid in current state")

	// ErrHandleDestroyed is returned by any operation invoked after Destroy.
	ErrHandleDestroyed = errors.New("webview: handle destroyed")

	// ErrUnsupported is returned when the active backend does not implement
	// the requested operation.
	ErrUnsupported = errors.New("webview: operation not supported by active backend")

	// ErrInvalidWindowHandle is returned at construction when the window
	// handle kind does not match what the selected backend expects.
	ErrInvalidWindowHandle = errors.New("webview: invalid window handle")

	// ErrNilConfiguration is returned by New when no configuration is given.
	ErrNilConfiguration = errors.New("webview: nil configuration")
)

// ConfigError wraps a configuration validation failure detected by
// Builder.Build. It always happens before any native call.
type ConfigError struct {
	Scheme string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("webview: configuration error for scheme %q: %v", e.Scheme, e.Err)
	}
	return fmt.Sprintf("webview: configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BackendInitError wraps a native construction failure. The handle it was
// reported for holds no native resources.
type BackendInitError struct {
	Backend string
	Err     error
}

func (e *BackendInitError) Error() string {
	return fmt.Sprintf("webview: %s backend initialization failed: %v", e.Backend, e.Err)
}

func (e *BackendInitError) Unwrap() error { return e.Err }

// BackendError carries a native engine fault that has no unified
// translation. The handle stays usable after one is reported.
type BackendError struct {
	Backend string
	Detail  string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("webview: %s backend error: %s", e.Backend, e.Detail)
}
