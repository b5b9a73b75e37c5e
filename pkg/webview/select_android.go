//go:build android

package webview

const backendName = "android"

func newPlatformBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	return newAndroidBackend(h, win, cfg)
}
