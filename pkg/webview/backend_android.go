//go:build android

package webview

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AndroidBridge connects a Handle to an android.webkit.WebView owned by the
// host application. Go cannot reach the Android view hierarchy directly, so
// the host supplies the downcalls (run on UI thread, load, evaluate) and
// wires the matching WebViewClient, WebChromeClient and JavascriptInterface
// overrides to the callback fields, which New fills in before returning.
//
// The JavascriptInterface must be registered under the name "weftAndroid"
// with a single postMessage(String) method forwarding to OnMessage.
type AndroidBridge struct {
	// Downcalls, provided by the host. RunOnUIThread, LoadURL, LoadHTML
	// and EvaluateJS are required; the rest are optional and gate the
	// corresponding capability when nil.
	RunOnUIThread func(fn func())
	LoadURL       func(url string)
	LoadHTML      func(markup string)
	EvaluateJS    func(src string, result func(value string))
	Reload        func()
	SetVisible    func(on bool)
	SetDevTools   func(on bool)
	ClearData     func()
	DestroyView   func()

	// SetInitScripts receives the scripts to run at document start, the
	// IPC bootstrap first. The host injects them from onPageStarted.
	SetInitScripts func(scripts []string)

	// Upcalls, filled in by New. The host calls them from the WebView
	// callbacks named in each comment.
	//
	// OnMessage: JavascriptInterface postMessage. Any thread.
	// ShouldOverrideURLLoading: WebViewClient. True means block.
	// InterceptRequest: WebViewClient shouldInterceptRequest, passing
	// WebResourceRequest.getRequestHeaders(). Android exposes no request
	// body, so scheme handlers see Request.Body as nil on this backend.
	// Returns handled=false for URLs outside the registered schemes.
	// Blocks, so it must never be called from the UI thread (Android
	// already guarantees this).
	// OnTitleChanged: WebChromeClient onReceivedTitle.
	OnMessage                func(body string)
	ShouldOverrideURLLoading func(url string) bool
	InterceptRequest         func(method, url string, headers map[string]string) (status int, respHeaders map[string]string, body []byte, handled bool)
	OnTitleChanged           func(title string)
}

// AndroidWindow wraps a host bridge for Config construction.
func AndroidWindow(bridge *AndroidBridge) WindowHandle {
	return WindowHandle{Kind: WindowAndroid, Native: bridge}
}

const androidSend = "(m) => window.weftAndroid.postMessage(typeof m === 'string' ? m : JSON.stringify(m))"

type androidBackend struct {
	h      *Handle
	log    zerolog.Logger
	bridge *AndroidBridge
	done   chan struct{}
}

func newAndroidBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	bridge, _ := win.Native.(*AndroidBridge)
	if win.Kind != WindowAndroid || bridge == nil {
		return nil, fmt.Errorf("%w: android backend requires an AndroidBridge", ErrInvalidWindowHandle)
	}
	if bridge.RunOnUIThread == nil || bridge.LoadURL == nil ||
		bridge.LoadHTML == nil || bridge.EvaluateJS == nil {
		return nil, fmt.Errorf("%w: AndroidBridge is missing required downcalls", ErrInvalidWindowHandle)
	}

	b := &androidBackend{
		h:      h,
		log:    cfg.logger.With().Str("component", "android").Logger(),
		bridge: bridge,
		done:   make(chan struct{}),
	}
	h.disp.post = bridge.RunOnUIThread

	bridge.OnMessage = func(body string) {
		h.deliverIPC(Frame{Main: true}, body)
	}
	bridge.ShouldOverrideURLLoading = func(url string) bool {
		return !h.decideNavigation(url)
	}
	bridge.InterceptRequest = b.interceptRequest
	bridge.OnTitleChanged = func(title string) {
		h.emitTitle(title)
	}

	if bridge.SetInitScripts != nil {
		bridge.SetInitScripts(h.initScripts(androidSend))
	}
	if bridge.SetDevTools != nil {
		bridge.SetDevTools(cfg.devtools)
	}
	return b, nil
}

// interceptRequest bridges the synchronous WebViewClient contract onto the
// asynchronous scheme router: it parks the calling IO thread on a channel
// until the handler responds. Destroy unblocks any parked call.
func (b *androidBackend) interceptRequest(method, target string, headers map[string]string) (int, map[string]string, []byte, bool) {
	scheme := schemeOf(target)
	if _, ok := b.h.router.lookup(scheme); !ok {
		return 0, nil, nil, false
	}

	result := make(chan *Response, 1)
	req := &Request{Method: method, URL: target, Header: NewHeader()}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	b.h.dispatchScheme(scheme, req, func(resp *Response) {
		result <- resp
	})

	select {
	case resp := <-result:
		payload, err := resp.payload()
		if err != nil {
			b.log.Warn().Err(err).Msg("response stream failed")
			payload = nil
		}
		respHeaders := make(map[string]string, resp.Header.Len())
		resp.Header.Each(func(k, v string) { respHeaders[k] = v })
		return resp.Status, respHeaders, payload, true
	case <-b.done:
		return 0, nil, nil, false
	}
}

func schemeOf(target string) string {
	for i := 0; i < len(target); i++ {
		if target[i] == ':' {
			return target[:i]
		}
	}
	return ""
}

func (b *androidBackend) name() string { return "android" }

func (b *androidBackend) capabilities() Capability {
	caps := CapScriptResult | CapTitleChanged
	if b.bridge.SetVisible != nil {
		caps |= CapVisibility
	}
	if b.bridge.ClearData != nil {
		caps |= CapClearBrowsingData
	}
	if b.bridge.SetDevTools != nil {
		caps |= CapDevTools
	}
	return caps
}

func (b *androidBackend) navigate(url string) error {
	b.bridge.LoadURL(url)
	return nil
}

func (b *androidBackend) loadHTML(markup string) error {
	b.bridge.LoadHTML(markup)
	return nil
}

func (b *androidBackend) evaluateScript(src string, evalID uint64, wantResult bool) error {
	if !wantResult {
		b.bridge.EvaluateJS(src, nil)
		return nil
	}
	b.bridge.EvaluateJS(src, func(value string) {
		b.h.completeEval(evalID, value, nil)
	})
	return nil
}

func (b *androidBackend) reload() error {
	if b.bridge.Reload == nil {
		return ErrUnsupported
	}
	b.bridge.Reload()
	return nil
}

func (b *androidBackend) setZoom(float64) error { return ErrUnsupported }

func (b *androidBackend) setVisible(on bool) error {
	if b.bridge.SetVisible == nil {
		return ErrUnsupported
	}
	b.bridge.SetVisible(on)
	return nil
}

func (b *androidBackend) setFullscreen(bool) error { return ErrUnsupported }

func (b *androidBackend) clearBrowsingData() error {
	if b.bridge.ClearData == nil {
		return ErrUnsupported
	}
	b.bridge.ClearData()
	return nil
}

func (b *androidBackend) destroy() {
	close(b.done)
	b.bridge.OnMessage = nil
	b.bridge.ShouldOverrideURLLoading = nil
	b.bridge.InterceptRequest = nil
	b.bridge.OnTitleChanged = nil
	if b.bridge.DestroyView != nil {
		b.bridge.DestroyView()
	}
}
