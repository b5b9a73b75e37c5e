package webview

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settle drains the owning-thread queue repeatedly. A single flush is not
// enough when one job enqueues another (scheme completion, title emission).
func settle(h *Handle) {
	for i := 0; i < 6; i++ {
		HeadlessFlush(h)
	}
}

func pageHandler(markup string) SchemeHandler {
	return SchemeHandlerFunc(func(_ *Request, respond func(*Response)) {
		resp := &Response{Status: 200, Header: NewHeader(), Body: []byte(markup)}
		resp.Header.Set("Content-Type", "text/html")
		respond(resp)
	})
}

func TestNew_NilConfiguration(t *testing.T) {
	h, err := New(NoWindow(), nil)
	require.Nil(t, h)
	require.ErrorIs(t, err, ErrNilConfiguration)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestNew_WrongWindowKind(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)

	h, err := New(Win32Window(0xdeadbeef), cfg)
	require.Nil(t, h)
	require.ErrorIs(t, err, ErrInvalidWindowHandle)

	var initErr *BackendInitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, backendName, initErr.Backend)
}

func TestNew_BackendFailureLeavesNoResources(t *testing.T) {
	boom := errors.New("engine exploded")
	orig := platformBackendFactory
	platformBackendFactory = func(*Handle, WindowHandle, *Config) (backend, error) {
		return nil, boom
	}
	defer func() { platformBackendFactory = orig }()

	cfg, err := NewBuilder().Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.Nil(t, h)
	require.ErrorIs(t, err, boom)

	var initErr *BackendInitError
	require.ErrorAs(t, err, &initErr)
}

func TestNew_RejectsHandRolledDuplicateSchemes(t *testing.T) {
	// Build refuses duplicates, but a Config assembled by hand bypasses it;
	// registration must still catch the collision.
	cfg := &Config{
		zoom: 1.0,
		schemes: []schemeEntry{
			{name: "app", handler: pageHandler("a")},
			{name: "app", handler: pageHandler("b")},
		},
	}
	h, err := New(NoWindow(), cfg)
	require.Nil(t, h)
	require.ErrorIs(t, err, ErrSchemeRegistered)
}

func TestHandle_SchemeLoadEndToEnd(t *testing.T) {
	var titleMu sync.Mutex
	var titles []string

	cfg, err := NewBuilder().
		Scheme("app", pageHandler("<html><head><title>Weft</title></head><body>ok</body></html>")).
		OnTitleChanged(func(title string) {
			titleMu.Lock()
			titles = append(titles, title)
			titleMu.Unlock()
		}).
		URL("app://localhost/index.html").
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	assert.Equal(t, "headless", h.Backend())
	settle(h)

	docURL, body, ok := HeadlessDocument(h)
	require.True(t, ok)
	assert.Equal(t, "app://localhost/index.html", docURL)
	assert.Contains(t, string(body), "ok")

	text, ok := HeadlessBodyText(h)
	require.True(t, ok)
	assert.Equal(t, "ok", text)

	titleMu.Lock()
	defer titleMu.Unlock()
	assert.Equal(t, []string{"Weft"}, titles)
}

func TestHandle_UnknownSchemeLoadsErrorDocument(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	// No handler for "ghost"; the router answers 404 and the headless
	// engine records the error payload as the document.
	require.NoError(t, h.Navigate("ghost://nowhere"))
	settle(h)

	docURL, body, ok := HeadlessDocument(h)
	require.True(t, ok)
	assert.Equal(t, "ghost://nowhere", docURL)
	assert.Contains(t, string(body), "404")
}

func TestHandle_NavigationPolicyDeniesLoad(t *testing.T) {
	cfg, err := NewBuilder().
		Scheme("app", pageHandler("<html><body>home</body></html>")).
		OnNavigate(func(url string) bool { return url != "app://blocked" }).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.Navigate("app://allowed"))
	settle(h)
	docURL, _, _ := HeadlessDocument(h)
	assert.Equal(t, "app://allowed", docURL)

	require.NoError(t, h.Navigate("app://blocked"))
	settle(h)
	docURL, _, _ = HeadlessDocument(h)
	assert.Equal(t, "app://allowed", docURL, "denied navigation must not replace the document")
}

func TestHandle_IPCRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var got []Message

	cfg, err := NewBuilder().
		InitScript(`window.weft.postMessage('hello from page')`).
		InitScript(`window.weft.postMessage({kind: 'structured'})`).
		OnIPCMessage(func(m Message) {
			mu.Lock()
			got = append(got, m)
			mu.Unlock()
		}).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.LoadHTML("<html><body>page</body></html>"))
	settle(h)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "hello from page", got[0].Body)
	assert.JSONEq(t, `{"kind":"structured"}`, got[1].Body)
	assert.True(t, got[0].Frame.Main)
}

func TestHandle_IPCOrderUnderBurst(t *testing.T) {
	var mu sync.Mutex
	var got []string

	cfg, err := NewBuilder().
		OnIPCMessage(func(m Message) {
			mu.Lock()
			got = append(got, m.Body)
			mu.Unlock()
		}).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.LoadHTML("<html><body></body></html>"))
	settle(h)

	const n = 1000
	require.NoError(t, h.EvaluateScript(
		fmt.Sprintf(`for (let i = 0; i < %d; i++) window.weft.postMessage('m' + String(i).padStart(4, '0'))`, n),
		nil))
	settle(h)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, n)
	for i, body := range got {
		require.Equal(t, fmt.Sprintf("m%04d", i), body)
	}
}

func TestHandle_EvaluateScriptResult(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	require.True(t, h.Capabilities().Has(CapScriptResult))

	result := make(chan string, 1)
	require.NoError(t, h.EvaluateScript("6 * 7", func(v string, err error) {
		assert.NoError(t, err)
		result <- v
	}))
	settle(h)
	assert.Equal(t, "42", <-result)

	// Undefined results come back as the empty string.
	require.NoError(t, h.EvaluateScript("void 0", func(v string, err error) {
		assert.NoError(t, err)
		result <- v
	}))
	settle(h)
	assert.Equal(t, "", <-result)
}

func TestHandle_EvaluateScriptError(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	got := make(chan error, 1)
	require.NoError(t, h.EvaluateScript("definitelyNotDefined()", func(_ string, err error) {
		got <- err
	}))
	settle(h)
	assert.Error(t, <-got)
}

func TestHandle_EvaluateScriptFireAndForget(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.EvaluateScript("globalThis.marker = 'set'", nil))
	settle(h)

	result := make(chan string, 1)
	require.NoError(t, h.EvaluateScript("globalThis.marker", func(v string, err error) {
		require.NoError(t, err)
		result <- v
	}))
	settle(h)
	assert.Equal(t, "set", <-result)
}

func TestHandle_ReloadRequestsDocumentAgain(t *testing.T) {
	var mu sync.Mutex
	serves := 0

	cfg, err := NewBuilder().
		SchemeFunc("app", func(_ *Request, respond func(*Response)) {
			mu.Lock()
			serves++
			mu.Unlock()
			resp := &Response{Status: 200, Header: NewHeader(), Body: []byte("<html><body>v</body></html>")}
			resp.Header.Set("Content-Type", "text/html")
			respond(resp)
		}).
		URL("app://page").
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()
	settle(h)

	require.NoError(t, h.Reload())
	settle(h)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, serves)
}

func TestHandle_FullscreenGating(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	// Backend supports it, but the configuration did not allow it.
	require.ErrorIs(t, h.SetFullscreen(true), ErrUnsupported)

	cfg2, err := NewBuilder().AllowFullscreen(true).Build()
	require.NoError(t, err)
	h2, err := New(NoWindow(), cfg2)
	require.NoError(t, err)
	defer h2.Destroy()

	assert.NoError(t, h2.SetFullscreen(true))
	assert.NoError(t, h2.SetFullscreen(false))
}

func TestHandle_FileDrop(t *testing.T) {
	var mu sync.Mutex
	var phases []DropPhase

	cfg, err := NewBuilder().
		OnFileDrop(func(ev FileDropEvent) bool {
			mu.Lock()
			phases = append(phases, ev.Phase)
			mu.Unlock()
			return ev.Phase == DropPerformed
		}).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	consumed := HeadlessDropFiles(h, []string{"/tmp/a.txt", "/tmp/b.txt"}, 10, 20)
	assert.True(t, consumed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []DropPhase{DropHover, DropPerformed}, phases)
}

func TestHandle_DestroyedOperationsFail(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)

	h.Destroy()

	assert.ErrorIs(t, h.Navigate("app://x"), ErrHandleDestroyed)
	assert.ErrorIs(t, h.LoadHTML("<html></html>"), ErrHandleDestroyed)
	assert.ErrorIs(t, h.EvaluateScript("1", nil), ErrHandleDestroyed)
	assert.ErrorIs(t, h.Reload(), ErrHandleDestroyed)
	assert.ErrorIs(t, h.SetZoom(1.5), ErrHandleDestroyed)
	assert.ErrorIs(t, h.SetVisible(false), ErrHandleDestroyed)
	assert.ErrorIs(t, h.SetFullscreen(true), ErrHandleDestroyed)
	assert.ErrorIs(t, h.ClearBrowsingData(), ErrHandleDestroyed)
}

func TestHandle_DestroyIsIdempotent(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)

	h.Destroy()
	h.Destroy()
	h.Destroy()
}

func TestHandle_DestroyWithInFlightRequests(t *testing.T) {
	var mu sync.Mutex
	var responders []func(*Response)

	cfg, err := NewBuilder().
		SchemeFunc("app", func(_ *Request, respond func(*Response)) {
			mu.Lock()
			responders = append(responders, respond)
			mu.Unlock()
		}).
		OnTitleChanged(func(string) { t.Error("title callback after destroy") }).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Navigate(fmt.Sprintf("app://pending/%d", i)))
	}
	settle(h)

	mu.Lock()
	require.Len(t, responders, 3)
	pending := make([]func(*Response), len(responders))
	copy(pending, responders)
	mu.Unlock()

	h.Destroy()

	// Handlers finish after the fact; every completion must be suppressed
	// without panicking or invoking any callback.
	for _, respond := range pending {
		resp := &Response{Status: 200, Header: NewHeader(),
			Body: []byte("<html><head><title>late</title></head></html>")}
		resp.Header.Set("Content-Type", "text/html")
		respond(resp)
	}
}

func TestHandle_DestroySuppressesEvalContinuations(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)

	// Park the owning thread so the evaluation cannot complete before
	// Destroy runs.
	gate := make(chan struct{})
	hb, ok := headlessOf(h)
	require.True(t, ok)
	hb.queue.post(func() { <-gate })

	require.NoError(t, h.EvaluateScript("1 + 1", func(string, error) {
		t.Error("continuation ran after destroy")
	}))

	go func() {
		close(gate)
	}()
	h.Destroy()
}

func TestHandle_RuntimeTogglesSucceedOnHeadless(t *testing.T) {
	cfg, err := NewBuilder().Incognito(true).Build()
	require.NoError(t, err)
	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	assert.NoError(t, h.SetZoom(1.25))
	assert.NoError(t, h.SetVisible(false))
	assert.NoError(t, h.SetVisible(true))
	assert.NoError(t, h.ClearBrowsingData())
}

func TestHandle_CapabilityStringIsReadable(t *testing.T) {
	cfg, err := NewBuilder().Build()
	require.NoError(t, err)
	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	s := h.Capabilities().String()
	assert.Contains(t, s, "script-result")
	assert.Contains(t, s, "zoom")
}

func TestHandle_SchemeRequestCarriesMethodAndURL(t *testing.T) {
	var mu sync.Mutex
	var gotMethod, gotURL string

	cfg, err := NewBuilder().
		SchemeFunc("assets", func(req *Request, respond func(*Response)) {
			mu.Lock()
			gotMethod = req.Method
			gotURL = req.URL
			mu.Unlock()
			respond(&Response{Status: 204, Header: NewHeader()})
		}).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	require.NoError(t, h.Navigate("assets://bundle/main.css"))
	settle(h)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "assets://bundle/main.css", gotURL)
}

func TestHandle_SchemeRequestEchoesBodyAndHeaders(t *testing.T) {
	cfg, err := NewBuilder().
		SchemeFunc("app", func(req *Request, respond func(*Response)) {
			resp := &Response{
				Status: 200,
				Header: NewHeader(),
				Body:   append([]byte(nil), req.Body...),
			}
			resp.Header.Set("Content-Type", req.Header.Get("Content-Type"))
			resp.Header.Set("X-Method", req.Method)
			respond(resp)
		}).
		Build()
	require.NoError(t, err)

	h, err := New(NoWindow(), cfg)
	require.NoError(t, err)
	defer h.Destroy()

	req := &Request{
		Method: http.MethodPost,
		URL:    "app://echo",
		Header: NewHeader(),
		Body:   []byte(`{"value":42}`),
	}
	req.Header.Set("Content-Type", "application/json")

	resp, ok := HeadlessFetch(h, req)
	require.True(t, ok)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, `{"value":42}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, http.MethodPost, resp.Header.Get("X-Method"))
}
