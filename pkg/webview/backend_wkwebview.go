//go:build darwin || ios

package webview

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/ebitengine/purego/objc"
	"github.com/rs/zerolog"
)

// wkWebViewBackend drives WKWebView through the Objective-C runtime via
// purego, without cgo. The owning thread is the Cocoa main thread; New must
// be called from it, and cross-thread work goes through
// performSelectorOnMainThread on the coordinator object.
//
// Script evaluation is fire-and-forget here: completion handlers are
// Objective-C blocks capturing per-call state, which this binding does not
// construct. CapScriptResult stays off, so the handle never requests a
// result and eval continuations are never invoked on this backend.
type wkWebViewBackend struct {
	h   *Handle
	log zerolog.Logger

	view        objc.ID // WKWebView
	config      objc.ID // WKWebViewConfiguration
	contentCtrl objc.ID // WKUserContentController
	dataStore   objc.ID // WKWebsiteDataStore
	coordinator objc.ID // WeftCoordinator instance

	dispatchMu sync.Mutex
	dispatchQ  []func()

	taskMu  sync.Mutex
	stopped map[objc.ID]bool

	zoomable bool
}

type cgRect struct {
	x, y, w, h float64
}

var (
	wkOnce     sync.Once
	wkInitErr  error
	wkClass    objc.Class
	emptyBlock uintptr

	msgSendRect    func(objc.ID, objc.SEL, cgRect, objc.ID) objc.ID
	msgSendGetRect func(objc.ID, objc.SEL) cgRect
	msgSendSetRect func(objc.ID, objc.SEL, cgRect)
	msgSendFloat   func(objc.ID, objc.SEL, float64)

	selAlloc   = objc.RegisterName("alloc")
	selInit    = objc.RegisterName("init")
	selRetain  = objc.RegisterName("retain")
	selRelease = objc.RegisterName("release")

	coordinatorMu      sync.Mutex
	coordinatorBackend = map[objc.ID]*wkWebViewBackend{}
)

func backendFor(coordinator objc.ID) *wkWebViewBackend {
	coordinatorMu.Lock()
	defer coordinatorMu.Unlock()
	return coordinatorBackend[coordinator]
}

func wkInit() error {
	wkOnce.Do(func() {
		for _, lib := range []string{
			"/System/Library/Frameworks/WebKit.framework/WebKit",
			"/System/Library/Frameworks/Foundation.framework/Foundation",
		} {
			if _, err := purego.Dlopen(lib, purego.RTLD_LAZY|purego.RTLD_GLOBAL); err != nil {
				wkInitErr = fmt.Errorf("dlopen %s: %w", lib, err)
				return
			}
		}

		objcLib, err := purego.Dlopen("/usr/lib/libobjc.A.dylib", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			wkInitErr = err
			return
		}
		msgSend, err := purego.Dlsym(objcLib, "objc_msgSend")
		if err != nil {
			wkInitErr = err
			return
		}
		purego.RegisterFunc(&msgSendRect, msgSend)
		purego.RegisterFunc(&msgSendGetRect, msgSend)
		purego.RegisterFunc(&msgSendSetRect, msgSend)
		purego.RegisterFunc(&msgSendFloat, msgSend)

		emptyBlock, wkInitErr = newGlobalBlock()
		if wkInitErr != nil {
			return
		}

		wkClass, wkInitErr = registerCoordinatorClass()
	})
	return wkInitErr
}

// Objective-C block literal for completion handlers that ignore their
// arguments. Global blocks are immortal, so one instance serves every call.
type blockDescriptor struct {
	reserved uintptr
	size     uintptr
}

type blockLiteral struct {
	isa        uintptr
	flags      int32
	reserved   int32
	invoke     uintptr
	descriptor *blockDescriptor
}

var (
	globalBlockLiteral blockLiteral
	globalBlockDesc    = blockDescriptor{size: uintptr(unsafe.Sizeof(blockLiteral{}))}
)

func newGlobalBlock() (uintptr, error) {
	libSystem, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	isa, err := purego.Dlsym(libSystem, "_NSConcreteGlobalBlock")
	if err != nil {
		return 0, err
	}
	globalBlockLiteral = blockLiteral{
		isa:        isa,
		flags:      1 << 28, // BLOCK_IS_GLOBAL
		invoke:     purego.NewCallback(func(_ uintptr) uintptr { return 0 }),
		descriptor: &globalBlockDesc,
	}
	return uintptr(unsafe.Pointer(&globalBlockLiteral)), nil
}

// invokeBlock calls an Objective-C block received as a callback argument.
// The invoke pointer sits after the isa, flags and reserved words.
func invokeBlock(block uintptr, args ...uintptr) {
	invoke := *(*uintptr)(unsafe.Pointer(block + unsafe.Offsetof(blockLiteral{}.invoke)))
	purego.SyscallN(invoke, append([]uintptr{block}, args...)...)
}

func nsString(s string) objc.ID {
	cls := objc.ID(objc.GetClass("NSString"))
	return cls.Send(objc.RegisterName("stringWithUTF8String:"), s)
}

func goString(ns objc.ID) string {
	if ns == 0 {
		return ""
	}
	p := objc.Send[*byte](ns, objc.RegisterName("UTF8String"))
	if p == nil {
		return ""
	}
	var out []byte
	for ptr := uintptr(unsafe.Pointer(p)); ; ptr++ {
		b := *(*byte)(unsafe.Pointer(ptr))
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return string(out)
}

// registerCoordinatorClass builds the single delegate class used per view:
// it is the WKScriptMessageHandler, WKURLSchemeHandler and
// WKNavigationDelegate, the KVO observer for the document title, and the
// target of the main-thread dispatch trampoline.
func registerCoordinatorClass() (objc.Class, error) {
	return objc.RegisterClass("WeftCoordinator", objc.GetClass("NSObject"),
		[]*objc.Protocol{
			objc.GetProtocol("WKScriptMessageHandler"),
			objc.GetProtocol("WKURLSchemeHandler"),
			objc.GetProtocol("WKNavigationDelegate"),
		},
		nil,
		[]objc.MethodDef{
			{
				Cmd: objc.RegisterName("weftDrain"),
				Fn: func(self objc.ID, _ objc.SEL) {
					if b := backendFor(self); b != nil {
						b.drainDispatchQueue()
					}
				},
			},
			{
				Cmd: objc.RegisterName("userContentController:didReceiveScriptMessage:"),
				Fn: func(self objc.ID, _ objc.SEL, _, message objc.ID) {
					b := backendFor(self)
					if b == nil {
						return
					}
					body := message.Send(objc.RegisterName("body"))
					text := goString(body.Send(objc.RegisterName("description")))
					frameInfo := message.Send(objc.RegisterName("frameInfo"))
					main := objc.Send[bool](frameInfo, objc.RegisterName("isMainFrame"))
					b.h.deliverIPC(Frame{Main: main}, text)
				},
			},
			{
				Cmd: objc.RegisterName("webView:startURLSchemeTask:"),
				Fn: func(self objc.ID, _ objc.SEL, _, task objc.ID) {
					if b := backendFor(self); b != nil {
						b.startSchemeTask(task)
					}
				},
			},
			{
				Cmd: objc.RegisterName("webView:stopURLSchemeTask:"),
				Fn: func(self objc.ID, _ objc.SEL, _, task objc.ID) {
					if b := backendFor(self); b != nil {
						b.taskMu.Lock()
						b.stopped[task] = true
						b.taskMu.Unlock()
					}
				},
			},
			{
				Cmd: objc.RegisterName("webView:decidePolicyForNavigationAction:decisionHandler:"),
				Fn: func(self objc.ID, _ objc.SEL, _, action objc.ID, handler uintptr) {
					b := backendFor(self)
					allow := uintptr(1) // WKNavigationActionPolicyAllow
					if b != nil {
						request := action.Send(objc.RegisterName("request"))
						target := goString(request.
							Send(objc.RegisterName("URL")).
							Send(objc.RegisterName("absoluteString")))
						if !b.h.decideNavigation(target) {
							allow = 0 // WKNavigationActionPolicyCancel
						}
					}
					invokeBlock(handler, allow)
				},
			},
			{
				Cmd: objc.RegisterName("observeValueForKeyPath:ofObject:change:context:"),
				Fn: func(self objc.ID, _ objc.SEL, keyPath, object, _, _ objc.ID) {
					b := backendFor(self)
					if b == nil || goString(keyPath) != "title" {
						return
					}
					title := goString(object.Send(objc.RegisterName("title")))
					if title != "" {
						b.h.emitTitle(title)
					}
				},
			},
		})
}

const wkSend = "(m) => window.webkit.messageHandlers.weft.postMessage(m)"

func newWKWebViewBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	if win.Kind != WindowNSView || win.Ptr == 0 {
		return nil, fmt.Errorf("%w: wkwebview backend requires an NSView", ErrInvalidWindowHandle)
	}
	if err := wkInit(); err != nil {
		return nil, err
	}

	b := &wkWebViewBackend{
		h:       h,
		log:     cfg.logger.With().Str("component", "wkwebview").Logger(),
		stopped: map[objc.ID]bool{},
	}

	b.coordinator = objc.ID(wkClass).Send(selAlloc).Send(selInit)
	coordinatorMu.Lock()
	coordinatorBackend[b.coordinator] = b
	coordinatorMu.Unlock()
	h.disp.post = b.postToMainThread

	b.config = objc.ID(objc.GetClass("WKWebViewConfiguration")).Send(selAlloc).Send(selInit)
	b.contentCtrl = b.config.Send(objc.RegisterName("userContentController"))

	if cfg.incognito {
		b.dataStore = objc.ID(objc.GetClass("WKWebsiteDataStore")).
			Send(objc.RegisterName("nonPersistentDataStore")).Send(selRetain)
		b.config.Send(objc.RegisterName("setWebsiteDataStore:"), b.dataStore)
	} else {
		b.dataStore = objc.ID(objc.GetClass("WKWebsiteDataStore")).
			Send(objc.RegisterName("defaultDataStore")).Send(selRetain)
	}

	b.contentCtrl.Send(objc.RegisterName("addScriptMessageHandler:name:"),
		b.coordinator, nsString("weft"))
	for _, src := range h.initScripts(wkSend) {
		// WKUserScriptInjectionTimeAtDocumentStart, all frames.
		script := objc.ID(objc.GetClass("WKUserScript")).Send(selAlloc).
			Send(objc.RegisterName("initWithSource:injectionTime:forMainFrameOnly:"),
				nsString(src), 0, false)
		b.contentCtrl.Send(objc.RegisterName("addUserScript:"), script)
		script.Send(selRelease)
	}

	for _, scheme := range h.router.schemes() {
		b.config.Send(objc.RegisterName("setURLSchemeHandler:forURLScheme:"),
			b.coordinator, nsString(scheme))
	}

	parent := objc.ID(win.Ptr)
	bounds := msgSendGetRect(parent, objc.RegisterName("bounds"))
	b.view = msgSendRect(objc.ID(objc.GetClass("WKWebView")).Send(selAlloc),
		objc.RegisterName("initWithFrame:configuration:"), bounds, b.config)
	if b.view == 0 {
		b.rollback()
		return nil, fmt.Errorf("WKWebView initialization failed")
	}
	// Track the parent view on resize: NSViewWidthSizable|NSViewHeightSizable.
	b.view.Send(objc.RegisterName("setAutoresizingMask:"), 2|16)
	b.view.Send(objc.RegisterName("setNavigationDelegate:"), b.coordinator)
	parent.Send(objc.RegisterName("addSubview:"), b.view)

	if cfg.devtools {
		b.view.Send(objc.RegisterName("setInspectable:"), true)
	}
	if cfg.userAgent != "" {
		b.view.Send(objc.RegisterName("setCustomUserAgent:"), nsString(cfg.userAgent))
	}
	if cfg.transparent {
		b.view.Send(objc.RegisterName("setValue:forKey:"),
			objc.ID(objc.GetClass("NSNumber")).Send(objc.RegisterName("numberWithBool:"), false),
			nsString("drawsBackground"))
	}
	// setPageZoom: needs macOS 11; older hosts just lose CapZoom.
	b.zoomable = objc.Send[bool](b.view, objc.RegisterName("respondsToSelector:"),
		objc.RegisterName("setPageZoom:"))

	// NSKeyValueObservingOptionNew.
	b.view.Send(objc.RegisterName("addObserver:forKeyPath:options:context:"),
		b.coordinator, nsString("title"), 1, 0)

	if cfg.zoom != 1.0 {
		b.setZoom(cfg.zoom)
	}
	return b, nil
}

func (b *wkWebViewBackend) postToMainThread(fn func()) {
	b.dispatchMu.Lock()
	b.dispatchQ = append(b.dispatchQ, fn)
	b.dispatchMu.Unlock()
	b.coordinator.Send(objc.RegisterName("performSelectorOnMainThread:withObject:waitUntilDone:"),
		objc.RegisterName("weftDrain"), objc.ID(0), false)
}

func (b *wkWebViewBackend) drainDispatchQueue() {
	b.dispatchMu.Lock()
	jobs := b.dispatchQ
	b.dispatchQ = nil
	b.dispatchMu.Unlock()
	for _, fn := range jobs {
		fn()
	}
}

func (b *wkWebViewBackend) startSchemeTask(task objc.ID) {
	request := task.Send(objc.RegisterName("request"))
	nsURL := request.Send(objc.RegisterName("URL"))
	target := goString(nsURL.Send(objc.RegisterName("absoluteString")))
	method := goString(request.Send(objc.RegisterName("HTTPMethod")))

	scheme := ""
	if u, err := url.Parse(target); err == nil {
		scheme = u.Scheme
	} else if i := strings.Index(target, ":"); i >= 0 {
		scheme = target[:i]
	}

	req := &Request{Method: method, URL: target, Header: NewHeader()}
	if fields := request.Send(objc.RegisterName("allHTTPHeaderFields")); fields != 0 {
		enum := fields.Send(objc.RegisterName("keyEnumerator"))
		for {
			key := enum.Send(objc.RegisterName("nextObject"))
			if key == 0 {
				break
			}
			value := fields.Send(objc.RegisterName("objectForKey:"), key)
			req.Header.Add(goString(key), goString(value))
		}
	}
	if body := request.Send(objc.RegisterName("HTTPBody")); body != 0 {
		req.Body = nsDataBytes(body)
	}

	task.Send(selRetain)
	b.h.dispatchScheme(scheme, req, func(resp *Response) {
		b.finishSchemeTask(task, nsURL, resp)
	})
}

// nsDataBytes copies an NSData payload into Go-owned memory.
func nsDataBytes(data objc.ID) []byte {
	n := objc.Send[uintptr](data, objc.RegisterName("length"))
	if n == 0 {
		return nil
	}
	p := objc.Send[unsafe.Pointer](data, objc.RegisterName("bytes"))
	if p == nil {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(p), n)...)
}

func (b *wkWebViewBackend) finishSchemeTask(task, nsURL objc.ID, resp *Response) {
	defer task.Send(selRelease)

	b.taskMu.Lock()
	halted := b.stopped[task]
	delete(b.stopped, task)
	b.taskMu.Unlock()
	if halted {
		return
	}

	payload, err := resp.payload()
	if err != nil {
		b.log.Warn().Err(err).Msg("response stream failed")
		payload = nil
	}

	headers := objc.ID(objc.GetClass("NSMutableDictionary")).Send(selAlloc).Send(selInit)
	resp.Header.Each(func(k, v string) {
		headers.Send(objc.RegisterName("setObject:forKey:"), nsString(v), nsString(k))
	})

	response := objc.ID(objc.GetClass("NSHTTPURLResponse")).Send(selAlloc).
		Send(objc.RegisterName("initWithURL:statusCode:HTTPVersion:headerFields:"),
			nsURL, resp.Status, nsString("HTTP/1.1"), headers)
	task.Send(objc.RegisterName("didReceiveResponse:"), response)

	if len(payload) > 0 {
		data := objc.ID(objc.GetClass("NSData")).
			Send(objc.RegisterName("dataWithBytes:length:"),
				unsafe.Pointer(&payload[0]), len(payload))
		task.Send(objc.RegisterName("didReceiveData:"), data)
	}
	task.Send(objc.RegisterName("didFinish"))

	response.Send(selRelease)
	headers.Send(selRelease)
}

func (b *wkWebViewBackend) name() string { return "wkwebview" }

func (b *wkWebViewBackend) capabilities() Capability {
	caps := CapVisibility | CapTitleChanged | CapClearBrowsingData |
		CapIncognito | CapDevTools | CapTransparency
	if b.zoomable {
		caps |= CapZoom
	}
	return caps
}

func (b *wkWebViewBackend) navigate(target string) error {
	nsURL := objc.ID(objc.GetClass("NSURL")).
		Send(objc.RegisterName("URLWithString:"), nsString(target))
	if nsURL == 0 {
		return &BackendError{Backend: b.name(), Detail: "unparseable URL: " + target}
	}
	request := objc.ID(objc.GetClass("NSURLRequest")).
		Send(objc.RegisterName("requestWithURL:"), nsURL)
	b.view.Send(objc.RegisterName("loadRequest:"), request)
	return nil
}

func (b *wkWebViewBackend) loadHTML(markup string) error {
	b.view.Send(objc.RegisterName("loadHTMLString:baseURL:"), nsString(markup), objc.ID(0))
	return nil
}

func (b *wkWebViewBackend) evaluateScript(src string, _ uint64, _ bool) error {
	b.view.Send(objc.RegisterName("evaluateJavaScript:completionHandler:"),
		nsString(src), emptyBlock)
	return nil
}

func (b *wkWebViewBackend) reload() error {
	b.view.Send(objc.RegisterName("reload"))
	return nil
}

func (b *wkWebViewBackend) setZoom(factor float64) error {
	if !b.zoomable {
		return ErrUnsupported
	}
	msgSendFloat(b.view, objc.RegisterName("setPageZoom:"), factor)
	return nil
}

func (b *wkWebViewBackend) setVisible(on bool) error {
	b.view.Send(objc.RegisterName("setHidden:"), !on)
	return nil
}

func (b *wkWebViewBackend) setFullscreen(bool) error { return ErrUnsupported }

func (b *wkWebViewBackend) clearBrowsingData() error {
	allTypes := objc.ID(objc.GetClass("WKWebsiteDataStore")).
		Send(objc.RegisterName("allWebsiteDataTypes"))
	epoch := objc.ID(objc.GetClass("NSDate")).
		Send(objc.RegisterName("dateWithTimeIntervalSince1970:"), 0)
	b.dataStore.Send(objc.RegisterName("removeDataOfTypes:modifiedSince:completionHandler:"),
		allTypes, epoch, emptyBlock)
	return nil
}

func (b *wkWebViewBackend) rollback() {
	b.destroy()
}

func (b *wkWebViewBackend) destroy() {
	if b.view != 0 {
		b.view.Send(objc.RegisterName("removeObserver:forKeyPath:"),
			b.coordinator, nsString("title"))
		b.view.Send(objc.RegisterName("setNavigationDelegate:"), objc.ID(0))
		b.view.Send(objc.RegisterName("removeFromSuperview"))
		b.view.Send(selRelease)
		b.view = 0
	}
	if b.contentCtrl != 0 {
		b.contentCtrl.Send(objc.RegisterName("removeScriptMessageHandlerForName:"), nsString("weft"))
		b.contentCtrl.Send(objc.RegisterName("removeAllUserScripts"))
		b.contentCtrl = 0
	}
	if b.config != 0 {
		b.config.Send(selRelease)
		b.config = 0
	}
	if b.dataStore != 0 {
		b.dataStore.Send(selRelease)
		b.dataStore = 0
	}
	if b.coordinator != 0 {
		coordinatorMu.Lock()
		delete(coordinatorBackend, b.coordinator)
		coordinatorMu.Unlock()
		b.coordinator.Send(selRelease)
		b.coordinator = 0
	}
}
