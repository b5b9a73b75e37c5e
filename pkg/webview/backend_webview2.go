//go:build windows

package webview

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"
)

// webView2Backend drives the WebView2 (Chromium) engine through its COM
// surface, loaded from WebView2Loader.dll. Environment and controller
// creation are asynchronous in the native API; construction pumps the
// message loop until both complete so New stays synchronous. The owning
// thread is the Win32 UI thread of the caller's HWND; cross-thread work is
// marshaled through a hidden message-only window.
type webView2Backend struct {
	h   *Handle
	log zerolog.Logger

	hwnd        uintptr
	environment *comObject
	controller  *comObject
	webview     *comObject
	settings    *comObject

	dispatchHwnd uintptr
	dispatchMu   sync.Mutex
	dispatchQ    []func()

	// Handlers must stay referenced for the life of the view; WebView2
	// only holds COM refs, which do not keep Go objects alive.
	handlers []*comHandler

	initDone bool
	initErr  error
}

var (
	modWebView2Loader = windows.NewLazyDLL("WebView2Loader.dll")
	procCreateEnv     = modWebView2Loader.NewProc("CreateCoreWebView2EnvironmentWithOptions")

	modUser32            = windows.NewLazySystemDLL("user32.dll")
	procRegisterClassExW = modUser32.NewProc("RegisterClassExW")
	procCreateWindowExW  = modUser32.NewProc("CreateWindowExW")
	procDefWindowProcW   = modUser32.NewProc("DefWindowProcW")
	procDestroyWindow    = modUser32.NewProc("DestroyWindow")
	procPostMessageW     = modUser32.NewProc("PostMessageW")
	procPeekMessageW     = modUser32.NewProc("PeekMessageW")
	procTranslateMessage = modUser32.NewProc("TranslateMessage")
	procDispatchMessageW = modUser32.NewProc("DispatchMessageW")
	procGetClientRect    = modUser32.NewProc("GetClientRect")
	procIsWindow         = modUser32.NewProc("IsWindow")

	modShlwapi            = windows.NewLazySystemDLL("shlwapi.dll")
	procSHCreateMemStream = modShlwapi.NewProc("SHCreateMemStream")
)

const (
	wmApp          = 0x8000
	wmWeftDispatch = wmApp + 0x17

	hwndMessage = ^uintptr(2) // HWND_MESSAGE

	webResourceContextAll = 0
)

type win32Rect struct{ left, top, right, bottom int32 }

type win32Msg struct {
	hwnd    uintptr
	message uint32
	wparam  uintptr
	lparam  uintptr
	time    uint32
	ptX     int32
	ptY     int32
}

type win32WndClassEx struct {
	size       uint32
	style      uint32
	wndProc    uintptr
	clsExtra   int32
	wndExtra   int32
	instance   uintptr
	icon       uintptr
	cursor     uintptr
	background uintptr
	menuName   *uint16
	className  *uint16
	iconSm     uintptr
}

// comObject is a raw COM interface pointer; method calls index its vtable.
type comObject struct {
	addr uintptr
}

func (o *comObject) vtbl(slot uintptr) uintptr {
	vt := *(*uintptr)(unsafe.Pointer(o.addr))
	return *(*uintptr)(unsafe.Pointer(vt + slot*unsafe.Sizeof(uintptr(0))))
}

func (o *comObject) call(slot uintptr, args ...uintptr) uintptr {
	full := append([]uintptr{o.addr}, args...)
	ret, _, _ := syscall.SyscallN(o.vtbl(slot), full...)
	return ret
}

func (o *comObject) release() {
	if o != nil && o.addr != 0 {
		o.call(2) // IUnknown::Release
		o.addr = 0
	}
}

// comHandler is a minimal COM object implemented in Go: an IUnknown plus
// one Invoke method dispatching to a closure. WebView2 completed/event
// handler interfaces all share this shape.
type comHandler struct {
	vtblPtr *comHandlerVtbl
	invoke  func(args []uintptr) uintptr
}

type comHandlerVtbl struct {
	queryInterface uintptr
	addRef         uintptr
	release        uintptr
	invoke         uintptr
}

var handlerVtbl = comHandlerVtbl{
	queryInterface: windows.NewCallback(func(this, riid, out uintptr) uintptr {
		*(*uintptr)(unsafe.Pointer(out)) = this
		return 0
	}),
	addRef:  windows.NewCallback(func(this uintptr) uintptr { return 1 }),
	release: windows.NewCallback(func(this uintptr) uintptr { return 1 }),
	invoke: windows.NewCallback(func(this, a1, a2 uintptr) uintptr {
		h := (*comHandler)(unsafe.Pointer(this))
		return h.invoke([]uintptr{a1, a2})
	}),
}

func newComHandler(invoke func(args []uintptr) uintptr) *comHandler {
	return &comHandler{vtblPtr: &handlerVtbl, invoke: invoke}
}

func (h *comHandler) raw() uintptr { return uintptr(unsafe.Pointer(h)) }

func utf16Ptr(s string) *uint16 {
	p, _ := windows.UTF16PtrFromString(s)
	return p
}

func utf16ToString(p uintptr) string {
	if p == 0 {
		return ""
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p)))
}

// coTaskMemFree releases strings returned by WebView2 getters.
func coTaskMemFree(p uintptr) {
	if p != 0 {
		windows.CoTaskMemFree(unsafe.Pointer(p))
	}
}

// ICoreWebView2 vtable slots (interface version 1).
const (
	wv2GetSettings                         = 3
	wv2Navigate                            = 5
	wv2NavigateToString                    = 6
	wv2AddNavigationStarting               = 7
	wv2AddScriptToExecuteOnDocumentCreated = 27
	wv2ExecuteScript                       = 29
	wv2Reload                              = 31
	wv2AddWebMessageReceived               = 34
	wv2CallDevToolsProtocolMethod          = 36
	wv2AddDocumentTitleChanged             = 46
	wv2GetDocumentTitle                    = 48
	wv2OpenDevToolsWindow                  = 51
	wv2AddWebResourceRequested             = 55
	wv2AddWebResourceRequestedFilter       = 57
)

// ICoreWebView2Controller vtable slots.
const (
	ctrlPutIsVisible    = 4
	ctrlPutBounds       = 6
	ctrlPutZoomFactor   = 8
	ctrlClose           = 24
	ctrlGetCoreWebView2 = 25
)

// ICoreWebView2Settings vtable slots.
const (
	settingsPutIsScriptEnabled     = 4
	settingsPutIsWebMessageEnabled = 6
	settingsPutAreDevToolsEnabled  = 12
)

// ICoreWebView2Environment vtable slots.
const (
	envCreateController       = 3
	envCreateResourceResponse = 4
)

// Event args vtable slots.
const (
	msgArgsTryGetAsString = 5 // ICoreWebView2WebMessageReceivedEventArgs

	navArgsGetUri    = 3 // ICoreWebView2NavigationStartingEventArgs
	navArgsPutCancel = 8 // slot 7 is get_Cancel

	resArgsGetRequest  = 3 // ICoreWebView2WebResourceRequestedEventArgs
	resArgsPutResponse = 5
	resArgsGetDeferral = 6

	reqGetUri     = 3 // ICoreWebView2WebResourceRequest
	reqGetMethod  = 5
	reqGetContent = 7
	reqGetHeaders = 9

	httpHeadersGetIterator = 8 // ICoreWebView2HttpRequestHeaders

	headersIterGetCurrent = 3 // ICoreWebView2HttpHeadersCollectionIterator
	headersIterHasCurrent = 4
	headersIterMoveNext   = 5

	streamRead = 3 // ISequentialStream

	deferralComplete = 3
)

func newWebView2Backend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	if win.Kind != WindowWin32 || win.Ptr == 0 {
		return nil, fmt.Errorf("%w: webview2 backend requires a Win32 HWND", ErrInvalidWindowHandle)
	}
	if r, _, _ := procIsWindow.Call(win.Ptr); r == 0 {
		return nil, fmt.Errorf("%w: HWND %#x is not a window", ErrInvalidWindowHandle, win.Ptr)
	}

	b := &webView2Backend{
		h:    h,
		log:  cfg.logger.With().Str("component", "webview2").Logger(),
		hwnd: win.Ptr,
	}

	if err := windows.CoInitializeEx(0, windows.COINIT_APARTMENTTHREADED); err != nil {
		// S_FALSE means the apartment is already initialized; anything
		// else is fatal.
		b.log.Debug().Err(err).Msg("CoInitializeEx")
	}

	if err := b.createDispatchWindow(); err != nil {
		return nil, err
	}
	h.disp.post = b.postToUIThread

	if err := b.createEnvironment(cfg); err != nil {
		b.rollback()
		return nil, err
	}
	if err := b.awaitInit(); err != nil {
		b.rollback()
		return nil, err
	}

	b.applySettings(cfg)
	b.installContentScripts()
	b.registerSchemes()
	b.connectEvents()
	b.resizeToParent()
	b.setZoom(cfg.zoom)
	return b, nil
}

// createDispatchWindow builds the hidden message-only window backing
// postToUIThread. The caller's message pump delivers wmWeftDispatch to its
// WndProc on the UI thread.
func (b *webView2Backend) createDispatchWindow() error {
	proc := windows.NewCallback(func(hwnd uintptr, msg uint32, wparam, lparam uintptr) uintptr {
		if msg == wmWeftDispatch {
			b.drainDispatchQueue()
			return 0
		}
		r, _, _ := procDefWindowProcW.Call(hwnd, uintptr(msg), wparam, lparam)
		return r
	})

	cls := win32WndClassEx{
		size:      uint32(unsafe.Sizeof(win32WndClassEx{})),
		wndProc:   proc,
		className: utf16Ptr("weft_webview2_dispatch"),
	}
	procRegisterClassExW.Call(uintptr(unsafe.Pointer(&cls)))

	hwnd, _, _ := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(cls.className)),
		0, 0, 0, 0, 0, 0,
		hwndMessage,
		0, 0, 0,
	)
	if hwnd == 0 {
		return fmt.Errorf("failed to create dispatch window")
	}
	b.dispatchHwnd = hwnd
	return nil
}

func (b *webView2Backend) postToUIThread(fn func()) {
	b.dispatchMu.Lock()
	b.dispatchQ = append(b.dispatchQ, fn)
	b.dispatchMu.Unlock()
	procPostMessageW.Call(b.dispatchHwnd, wmWeftDispatch, 0, 0)
}

func (b *webView2Backend) drainDispatchQueue() {
	b.dispatchMu.Lock()
	jobs := b.dispatchQ
	b.dispatchQ = nil
	b.dispatchMu.Unlock()
	for _, fn := range jobs {
		fn()
	}
}

func (b *webView2Backend) createEnvironment(cfg *Config) error {
	dataDir := cfg.dataDir
	if dataDir == "" || cfg.incognito {
		// WebView2 always persists a profile directory; an ephemeral run
		// gets a throwaway one under the temp dir.
		dataDir = filepath.Join(os.TempDir(), "weft-webview2")
	}

	envCompleted := newComHandler(func(args []uintptr) uintptr {
		if hr := args[0]; hr != 0 {
			b.initErr = fmt.Errorf("environment creation failed: HRESULT %#x", hr)
			b.initDone = true
			return 0
		}
		b.environment = &comObject{addr: args[1]}
		b.environment.call(1) // AddRef
		b.createController()
		return 0
	})
	b.handlers = append(b.handlers, envCompleted)

	hr, _, _ := procCreateEnv.Call(
		0,
		uintptr(unsafe.Pointer(utf16Ptr(dataDir))),
		0,
		envCompleted.raw(),
	)
	if hr != 0 {
		return fmt.Errorf("WebView2 runtime unavailable: HRESULT %#x", hr)
	}
	return nil
}

func (b *webView2Backend) createController() {
	ctrlCompleted := newComHandler(func(args []uintptr) uintptr {
		defer func() { b.initDone = true }()
		if hr := args[0]; hr != 0 {
			b.initErr = fmt.Errorf("controller creation failed: HRESULT %#x", hr)
			return 0
		}
		b.controller = &comObject{addr: args[1]}
		b.controller.call(1) // AddRef

		var raw uintptr
		b.controller.call(ctrlGetCoreWebView2, uintptr(unsafe.Pointer(&raw)))
		if raw == 0 {
			b.initErr = fmt.Errorf("controller returned no webview")
			return 0
		}
		b.webview = &comObject{addr: raw}
		return 0
	})
	b.handlers = append(b.handlers, ctrlCompleted)
	b.environment.call(envCreateController, b.hwnd, ctrlCompleted.raw())
}

// awaitInit pumps the message loop until the async creation chain lands.
func (b *webView2Backend) awaitInit() error {
	var msg win32Msg
	for !b.initDone {
		r, _, _ := procPeekMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0, 1 /* PM_REMOVE */)
		if r == 0 {
			continue
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
	return b.initErr
}

func (b *webView2Backend) applySettings(cfg *Config) {
	var raw uintptr
	b.webview.call(wv2GetSettings, uintptr(unsafe.Pointer(&raw)))
	if raw == 0 {
		return
	}
	b.settings = &comObject{addr: raw}
	b.settings.call(settingsPutIsScriptEnabled, 1)
	b.settings.call(settingsPutIsWebMessageEnabled, 1)
	devtools := uintptr(0)
	if cfg.devtools {
		devtools = 1
	}
	b.settings.call(settingsPutAreDevToolsEnabled, devtools)
}

const wv2Send = "(m) => window.chrome.webview.postMessage(m)"

func (b *webView2Backend) installContentScripts() {
	for _, src := range b.h.initScripts(wv2Send) {
		done := newComHandler(func(args []uintptr) uintptr { return 0 })
		b.handlers = append(b.handlers, done)
		b.webview.call(wv2AddScriptToExecuteOnDocumentCreated,
			uintptr(unsafe.Pointer(utf16Ptr(src))), done.raw())
	}
}

// registerSchemes subscribes to WebResourceRequested for every custom
// scheme. The event arrives on the UI thread; asynchronous handler
// completion is bridged with a native deferral.
func (b *webView2Backend) registerSchemes() {
	schemes := b.h.router.schemes()
	if len(schemes) == 0 {
		return
	}
	for _, scheme := range schemes {
		filter := scheme + "*://*"
		b.webview.call(wv2AddWebResourceRequestedFilter,
			uintptr(unsafe.Pointer(utf16Ptr(filter))), webResourceContextAll)
	}

	var token uintptr
	requested := newComHandler(func(args []uintptr) uintptr {
		b.serveResourceRequest(&comObject{addr: args[1]})
		return 0
	})
	b.handlers = append(b.handlers, requested)
	b.webview.call(wv2AddWebResourceRequested, requested.raw(), uintptr(unsafe.Pointer(&token)))
}

func (b *webView2Backend) serveResourceRequest(eventArgs *comObject) {
	var rawReq uintptr
	eventArgs.call(resArgsGetRequest, uintptr(unsafe.Pointer(&rawReq)))
	if rawReq == 0 {
		return
	}
	request := &comObject{addr: rawReq}
	// get_Request hands out an owned reference.
	defer request.release()

	var uriPtr, methodPtr uintptr
	request.call(reqGetUri, uintptr(unsafe.Pointer(&uriPtr)))
	request.call(reqGetMethod, uintptr(unsafe.Pointer(&methodPtr)))
	uri := utf16ToString(uriPtr)
	method := utf16ToString(methodPtr)
	coTaskMemFree(uriPtr)
	coTaskMemFree(methodPtr)

	scheme := uri
	if i := strings.Index(uri, ":"); i >= 0 {
		scheme = uri[:i]
	}
	if _, ok := b.h.router.lookup(scheme); !ok {
		return
	}

	req := &Request{Method: method, URL: uri, Header: NewHeader()}
	b.readRequestHeaders(request, &req.Header)
	req.Body = b.readRequestContent(request)

	var rawDeferral uintptr
	eventArgs.call(resArgsGetDeferral, uintptr(unsafe.Pointer(&rawDeferral)))
	deferral := &comObject{addr: rawDeferral}
	eventArgs.call(1) // AddRef until the deferral completes

	b.h.dispatchScheme(scheme, req, func(resp *Response) {
		b.finishResourceRequest(eventArgs, deferral, resp)
	})
}

// readRequestHeaders copies the native header collection in order.
func (b *webView2Backend) readRequestHeaders(request *comObject, hdr *Header) {
	var rawHeaders uintptr
	request.call(reqGetHeaders, uintptr(unsafe.Pointer(&rawHeaders)))
	if rawHeaders == 0 {
		return
	}
	headers := &comObject{addr: rawHeaders}
	defer headers.release()

	var rawIter uintptr
	headers.call(httpHeadersGetIterator, uintptr(unsafe.Pointer(&rawIter)))
	if rawIter == 0 {
		return
	}
	iter := &comObject{addr: rawIter}
	defer iter.release()

	for {
		var has int32
		iter.call(headersIterHasCurrent, uintptr(unsafe.Pointer(&has)))
		if has == 0 {
			return
		}
		var namePtr, valuePtr uintptr
		iter.call(headersIterGetCurrent,
			uintptr(unsafe.Pointer(&namePtr)), uintptr(unsafe.Pointer(&valuePtr)))
		hdr.Add(utf16ToString(namePtr), utf16ToString(valuePtr))
		coTaskMemFree(namePtr)
		coTaskMemFree(valuePtr)

		var next int32
		iter.call(headersIterMoveNext, uintptr(unsafe.Pointer(&next)))
		if next == 0 {
			return
		}
	}
}

// readRequestContent drains the request body stream, nil when there is none.
// Read reports S_FALSE at end of stream.
func (b *webView2Backend) readRequestContent(request *comObject) []byte {
	var rawStream uintptr
	request.call(reqGetContent, uintptr(unsafe.Pointer(&rawStream)))
	if rawStream == 0 {
		return nil
	}
	stream := &comObject{addr: rawStream}
	defer stream.release()

	var body []byte
	buf := make([]byte, 4096)
	for {
		var read uint32
		hr := stream.call(streamRead,
			uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)), uintptr(unsafe.Pointer(&read)))
		if read > 0 {
			body = append(body, buf[:read]...)
		}
		if hr != 0 || read == 0 {
			return body
		}
	}
}

func (b *webView2Backend) finishResourceRequest(eventArgs, deferral *comObject, resp *Response) {
	payload, err := resp.payload()
	if err != nil {
		b.log.Warn().Err(err).Msg("response stream failed")
		payload = nil
	}

	var stream uintptr
	if len(payload) > 0 {
		stream, _, _ = procSHCreateMemStream.Call(
			uintptr(unsafe.Pointer(&payload[0])), uintptr(len(payload)))
	} else {
		stream, _, _ = procSHCreateMemStream.Call(0, 0)
	}

	var headerLines []string
	resp.Header.Each(func(k, v string) { headerLines = append(headerLines, k+": "+v) })
	headerBlob := strings.Join(headerLines, "\r\n")

	var rawResp uintptr
	b.environment.call(envCreateResourceResponse,
		stream,
		uintptr(resp.Status),
		uintptr(unsafe.Pointer(utf16Ptr(statusPhrase(resp.Status)))),
		uintptr(unsafe.Pointer(utf16Ptr(headerBlob))),
		uintptr(unsafe.Pointer(&rawResp)),
	)
	if rawResp != 0 {
		eventArgs.call(resArgsPutResponse, rawResp)
		(&comObject{addr: rawResp}).release()
	}
	deferral.call(deferralComplete)
	deferral.release()
	eventArgs.call(2) // Release the ref taken in serveResourceRequest
}

func statusPhrase(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "OK"
	case status == 404:
		return "Not Found"
	case status >= 400 && status < 500:
		return "Bad Request"
	default:
		return "Error"
	}
}

func (b *webView2Backend) connectEvents() {
	var token uintptr

	message := newComHandler(func(args []uintptr) uintptr {
		eventArgs := &comObject{addr: args[1]}
		var msgPtr uintptr
		if hr := eventArgs.call(msgArgsTryGetAsString, uintptr(unsafe.Pointer(&msgPtr))); hr != 0 {
			return 0
		}
		body := utf16ToString(msgPtr)
		coTaskMemFree(msgPtr)
		b.h.deliverIPC(Frame{Main: true}, body)
		return 0
	})
	b.handlers = append(b.handlers, message)
	b.webview.call(wv2AddWebMessageReceived, message.raw(), uintptr(unsafe.Pointer(&token)))

	navigation := newComHandler(func(args []uintptr) uintptr {
		eventArgs := &comObject{addr: args[1]}
		var uriPtr uintptr
		eventArgs.call(navArgsGetUri, uintptr(unsafe.Pointer(&uriPtr)))
		uri := utf16ToString(uriPtr)
		coTaskMemFree(uriPtr)
		if !b.h.decideNavigation(uri) {
			eventArgs.call(navArgsPutCancel, 1)
		}
		return 0
	})
	b.handlers = append(b.handlers, navigation)
	b.webview.call(wv2AddNavigationStarting, navigation.raw(), uintptr(unsafe.Pointer(&token)))

	title := newComHandler(func(args []uintptr) uintptr {
		var titlePtr uintptr
		b.webview.call(wv2GetDocumentTitle, uintptr(unsafe.Pointer(&titlePtr)))
		t := utf16ToString(titlePtr)
		coTaskMemFree(titlePtr)
		if t != "" {
			b.h.emitTitle(t)
		}
		return 0
	})
	b.handlers = append(b.handlers, title)
	b.webview.call(wv2AddDocumentTitleChanged, title.raw(), uintptr(unsafe.Pointer(&token)))
}

func (b *webView2Backend) resizeToParent() {
	var rect win32Rect
	procGetClientRect.Call(b.hwnd, uintptr(unsafe.Pointer(&rect)))
	b.controller.call(ctrlPutBounds,
		uintptr(unsafe.Pointer(&rect)))
	b.controller.call(ctrlPutIsVisible, 1)
}

func (b *webView2Backend) name() string { return "webview2" }

func (b *webView2Backend) capabilities() Capability {
	// No engine fullscreen (the caller owns the window), no transparency
	// on the v1 controller interface, no drop reporting without
	// subclassing the caller's window procedure.
	return CapScriptResult | CapZoom | CapVisibility | CapTitleChanged |
		CapClearBrowsingData | CapDevTools
}

func (b *webView2Backend) navigate(url string) error {
	if hr := b.webview.call(wv2Navigate, uintptr(unsafe.Pointer(utf16Ptr(url)))); hr != 0 {
		return &BackendError{Backend: b.name(), Detail: fmt.Sprintf("Navigate failed: HRESULT %#x", hr)}
	}
	return nil
}

func (b *webView2Backend) loadHTML(markup string) error {
	if hr := b.webview.call(wv2NavigateToString, uintptr(unsafe.Pointer(utf16Ptr(markup)))); hr != 0 {
		return &BackendError{Backend: b.name(), Detail: fmt.Sprintf("NavigateToString failed: HRESULT %#x", hr)}
	}
	return nil
}

func (b *webView2Backend) evaluateScript(src string, evalID uint64, wantResult bool) error {
	var completed *comHandler
	if wantResult {
		completed = newComHandler(func(args []uintptr) uintptr {
			// args: HRESULT, resultObjectAsJson (LPCWSTR)
			var result string
			var err error
			if args[0] != 0 {
				err = &BackendError{Backend: b.name(), Detail: fmt.Sprintf("ExecuteScript failed: HRESULT %#x", args[0])}
			} else {
				result = utf16ToString(args[1])
			}
			b.h.completeEval(evalID, result, err)
			return 0
		})
		b.handlers = append(b.handlers, completed)
	}
	var cb uintptr
	if completed != nil {
		cb = completed.raw()
	}
	if hr := b.webview.call(wv2ExecuteScript, uintptr(unsafe.Pointer(utf16Ptr(src))), cb); hr != 0 {
		return &BackendError{Backend: b.name(), Detail: fmt.Sprintf("ExecuteScript failed: HRESULT %#x", hr)}
	}
	return nil
}

func (b *webView2Backend) reload() error {
	b.webview.call(wv2Reload)
	return nil
}

func (b *webView2Backend) setZoom(factor float64) error {
	b.controller.call(ctrlPutZoomFactor, uintptr(math.Float64bits(factor)))
	return nil
}

func (b *webView2Backend) setVisible(on bool) error {
	v := uintptr(0)
	if on {
		v = 1
	}
	b.controller.call(ctrlPutIsVisible, v)
	return nil
}

func (b *webView2Backend) setFullscreen(bool) error { return ErrUnsupported }

func (b *webView2Backend) clearBrowsingData() error {
	for _, method := range []string{"Network.clearBrowserCookies", "Network.clearBrowserCache"} {
		done := newComHandler(func(args []uintptr) uintptr { return 0 })
		b.handlers = append(b.handlers, done)
		b.webview.call(wv2CallDevToolsProtocolMethod,
			uintptr(unsafe.Pointer(utf16Ptr(method))),
			uintptr(unsafe.Pointer(utf16Ptr("{}"))),
			done.raw())
	}
	return nil
}

func (b *webView2Backend) rollback() {
	b.destroy()
}

func (b *webView2Backend) destroy() {
	if b.controller != nil {
		b.controller.call(ctrlClose)
		b.controller.release()
		b.controller = nil
	}
	if b.settings != nil {
		b.settings.release()
		b.settings = nil
	}
	b.webview = nil
	if b.environment != nil {
		b.environment.release()
		b.environment = nil
	}
	if b.dispatchHwnd != 0 {
		procDestroyWindow.Call(b.dispatchHwnd)
		b.dispatchHwnd = 0
	}
	b.handlers = nil
}
