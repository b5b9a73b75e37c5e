//go:build webkit_cgo && (linux || freebsd || netbsd || openbsd) && !android

package webview

const backendName = "webkitgtk"

func newPlatformBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	return newWebKitGTKBackend(h, win, cfg)
}
