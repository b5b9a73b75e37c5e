//go:build !windows && !darwin && !ios && !android && (!webkit_cgo || (!linux && !freebsd && !netbsd && !openbsd))

package webview

const backendName = "headless"

func newPlatformBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	return newHeadlessBackend(h, win, cfg)
}
