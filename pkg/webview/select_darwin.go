//go:build darwin || ios

package webview

const backendName = "wkwebview"

func newPlatformBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	return newWKWebViewBackend(h, win, cfg)
}
