//go:build windows

package webview

const backendName = "webview2"

func newPlatformBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	return newWebView2Backend(h, win, cfg)
}
