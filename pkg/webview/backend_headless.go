package webview

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/grafana/sobek"
	"github.com/rs/zerolog"
)

// headlessBackend is a pure-Go engine with no rendering surface. It backs
// the library on targets without a compiled-in native engine and carries
// the full contract: custom schemes resolve through the router, startup
// scripts run in a sobek VM whose window.weft binding feeds the IPC bridge,
// and script evaluation returns real results. Its owning thread is a serial
// queue it brings itself.
type headlessBackend struct {
	h     *Handle
	log   zerolog.Logger
	queue *serialQueue

	// Owning-thread state: only touched from queue jobs.
	vm      *sobek.Runtime
	doc     headlessDocument
	storage map[string]string
	zoom    float64
	visible bool
	full    bool
}

type headlessDocument struct {
	url   string
	mime  string
	body  []byte
	title string
}

func newHeadlessBackend(h *Handle, win WindowHandle, cfg *Config) (backend, error) {
	if win.Kind != WindowNone {
		return nil, fmt.Errorf("%w: headless engine runs detached, got %s", ErrInvalidWindowHandle, win.Kind)
	}
	b := &headlessBackend{
		h:       h,
		log:     cfg.logger.With().Str("component", "headless").Logger(),
		queue:   newSerialQueue(),
		storage: make(map[string]string),
		zoom:    cfg.zoom,
		visible: true,
	}
	h.disp.post = b.queue.post
	return b, nil
}

func (b *headlessBackend) name() string { return "headless" }

func (b *headlessBackend) capabilities() Capability {
	return CapScriptResult | CapZoom | CapVisibility | CapFullscreen |
		CapFileDrop | CapTitleChanged | CapClearBrowsingData | CapIncognito
}

func (b *headlessBackend) navigate(target string) error {
	b.queue.post(func() { b.load(target) })
	return nil
}

// load runs on the owning thread.
func (b *headlessBackend) load(target string) {
	if !b.h.live.ok() || !b.h.decideNavigation(target) {
		return
	}

	u, err := url.Parse(target)
	if err != nil {
		b.log.Warn().Err(err).Str("url", target).Msg("unparseable navigation target")
		return
	}

	// Standard schemes have no transport in the headless engine; the
	// navigation is recorded with an empty document. Everything else is a
	// custom scheme and goes through the router, which answers 404 for
	// names nobody registered.
	if _, standard := reservedSchemes[u.Scheme]; standard || u.Scheme == "" {
		b.setDocument(target, nil, "")
		return
	}

	req := &Request{Method: http.MethodGet, URL: target, Header: NewHeader()}
	b.h.dispatchScheme(u.Scheme, req, func(resp *Response) {
		b.finishLoad(target, resp)
	})
}

// finishLoad runs on the owning thread (router completions are marshaled).
func (b *headlessBackend) finishLoad(target string, resp *Response) {
	payload, err := resp.payload()
	if err != nil {
		b.log.Warn().Err(err).Str("url", target).Msg("response stream failed")
		payload = nil
	}
	if resp.Status < 200 || resp.Status > 299 {
		b.setDocument(target, payload, resp.Header.Get("Content-Type"))
		b.log.Debug().Int("status", resp.Status).Str("url", target).Msg("scheme load completed with error status")
		return
	}
	b.setDocument(target, payload, resp.Header.Get("Content-Type"))
}

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	bodyRe  = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
	tagRe   = regexp.MustCompile(`(?s)<[^>]*>`)
)

// setDocument installs a fresh document and script world, then runs the
// startup scripts in order. Runs on the owning thread.
func (b *headlessBackend) setDocument(docURL string, body []byte, mime string) {
	b.doc = headlessDocument{url: docURL, mime: mime, body: body}
	if m := titleRe.FindSubmatch(body); m != nil {
		b.doc.title = strings.TrimSpace(string(m[1]))
	}

	vm := sobek.New()
	_ = vm.GlobalObject().Set("window", vm.GlobalObject())

	doc := vm.NewObject()
	_ = doc.Set("URL", docURL)
	_ = doc.Set("title", b.doc.title)
	docBody := vm.NewObject()
	_ = docBody.Set("textContent", b.bodyText())
	_ = doc.Set("body", docBody)
	_ = vm.GlobalObject().Set("document", doc)

	frame := Frame{URL: docURL, Main: true}
	_ = vm.GlobalObject().Set("__weft_send", func(msg string) {
		b.h.deliverIPC(frame, msg)
	})

	b.vm = vm
	for _, src := range b.h.initScripts("__weft_send") {
		if _, err := vm.RunString(src); err != nil {
			b.log.Warn().Err(err).Msg("startup script failed")
		}
	}

	if b.doc.title != "" {
		b.h.emitTitle(b.doc.title)
	}
}

func (b *headlessBackend) bodyText() string {
	m := bodyRe.FindSubmatch(b.doc.body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(tagRe.ReplaceAllString(string(m[1]), ""))
}

func (b *headlessBackend) loadHTML(markup string) error {
	b.queue.post(func() { b.setDocument("about:blank", []byte(markup), "text/html") })
	return nil
}

func (b *headlessBackend) evaluateScript(src string, evalID uint64, wantResult bool) error {
	b.queue.post(func() {
		if b.vm == nil {
			b.setDocument("about:blank", nil, "")
		}
		v, err := b.vm.RunString(src)
		if !wantResult {
			if err != nil {
				b.log.Debug().Err(err).Msg("script evaluation failed")
			}
			return
		}
		var result string
		if err == nil && v != nil && !sobek.IsUndefined(v) && !sobek.IsNull(v) {
			result = v.String()
		}
		b.h.completeEval(evalID, result, err)
	})
	return nil
}

func (b *headlessBackend) reload() error {
	b.queue.post(func() {
		if b.doc.url != "" && b.doc.url != "about:blank" {
			b.load(b.doc.url)
		}
	})
	return nil
}

func (b *headlessBackend) setZoom(factor float64) error {
	b.queue.post(func() { b.zoom = factor })
	return nil
}

func (b *headlessBackend) setVisible(on bool) error {
	b.queue.post(func() { b.visible = on })
	return nil
}

func (b *headlessBackend) setFullscreen(on bool) error {
	b.queue.post(func() { b.full = on })
	return nil
}

func (b *headlessBackend) clearBrowsingData() error {
	b.queue.post(func() { b.storage = make(map[string]string) })
	return nil
}

func (b *headlessBackend) destroy() {
	// Liveness is already revoked; queued jobs drain as no-ops.
	b.queue.stop()
	b.vm = nil
}

// Headless introspection. These helpers act only on handles backed by the
// headless engine and report ok=false otherwise; embedders use them to
// observe loaded content where no rendering surface exists.

func headlessOf(h *Handle) (*headlessBackend, bool) {
	b, ok := h.backend.(*headlessBackend)
	return b, ok
}

// HeadlessFlush blocks until every operation issued before the call has
// been processed by the headless engine's owning thread.
func HeadlessFlush(h *Handle) bool {
	b, ok := headlessOf(h)
	if !ok {
		return false
	}
	b.queue.flush()
	return true
}

// HeadlessFetch resolves req through the registered scheme handlers without
// navigating the document, so non-GET requests with bodies and headers can
// be exercised where no page is driving the network stack. Unregistered
// schemes get the router's not-found response.
func HeadlessFetch(h *Handle, req *Request) (*Response, bool) {
	b, ok := headlessOf(h)
	if !ok {
		return nil, false
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, false
	}
	out := make(chan *Response, 1)
	b.h.dispatchScheme(u.Scheme, req, func(resp *Response) { out <- resp })
	select {
	case resp := <-out:
		return resp, true
	case <-b.queue.done:
		return nil, false
	}
}

// HeadlessDocument returns the URL and raw bytes of the loaded document.
func HeadlessDocument(h *Handle) (docURL string, body []byte, ok bool) {
	b, hok := headlessOf(h)
	if !hok {
		return "", nil, false
	}
	done := make(chan struct{})
	b.queue.post(func() {
		docURL = b.doc.url
		body = append([]byte(nil), b.doc.body...)
		close(done)
	})
	select {
	case <-done:
		return docURL, body, true
	case <-b.queue.done:
		return "", nil, false
	}
}

// HeadlessBodyText returns the text content of the loaded document body.
func HeadlessBodyText(h *Handle) (text string, ok bool) {
	b, hok := headlessOf(h)
	if !hok {
		return "", false
	}
	done := make(chan struct{})
	b.queue.post(func() {
		text = b.bodyText()
		close(done)
	})
	select {
	case <-done:
		return text, true
	case <-b.queue.done:
		return "", false
	}
}

// HeadlessDropFiles synthesizes a drag-and-drop sequence (hover, then drop)
// at the given logical position and reports whether the host consumed the
// drop.
func HeadlessDropFiles(h *Handle, paths []string, x, y float64) bool {
	b, ok := headlessOf(h)
	if !ok {
		return false
	}
	handled := make(chan bool, 1)
	b.queue.post(func() {
		b.h.emitFileDrop(FileDropEvent{Phase: DropHover, Paths: paths, X: x, Y: y})
		handled <- b.h.emitFileDrop(FileDropEvent{Phase: DropPerformed, Paths: paths, X: x, Y: y})
	})
	select {
	case v := <-handled:
		return v
	case <-b.queue.done:
		return false
	}
}
