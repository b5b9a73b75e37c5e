package webview

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type routerFixture struct {
	queue  *serialQueue
	live   *liveness
	router *schemeRouter
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	q := newSerialQueue()
	t.Cleanup(q.stop)
	live := newLiveness()
	return &routerFixture{
		queue:  q,
		live:   live,
		router: newSchemeRouter(&dispatcher{post: q.post, live: live}, live, zerolog.Nop()),
	}
}

func okHandler(body string) SchemeHandler {
	return SchemeHandlerFunc(func(_ *Request, respond func(*Response)) {
		resp := &Response{Status: 200, Header: NewHeader(), Body: []byte(body)}
		resp.Header.Set("Content-Type", "text/plain")
		respond(resp)
	})
}

func TestSchemeRouter_RegisterRejectsDuplicates(t *testing.T) {
	f := newRouterFixture(t)

	require.NoError(t, f.router.register("app", okHandler("a")))
	require.NoError(t, f.router.register("assets", okHandler("b")))

	err := f.router.register("app", okHandler("c"))
	require.ErrorIs(t, err, ErrSchemeRegistered)

	assert.Equal(t, []string{"app", "assets"}, f.router.schemes())
}

func TestSchemeRouter_SynchronousCompletion(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.register("app", okHandler("hello")))

	var got *Response
	f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
		func(resp *Response) { got = resp })
	f.queue.flush()

	require.NotNil(t, got)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, "hello", string(got.Body))
	assert.Zero(t, f.router.inflight())
}

func TestSchemeRouter_AsynchronousCompletion(t *testing.T) {
	f := newRouterFixture(t)

	release := make(chan func(*Response), 1)
	require.NoError(t, f.router.register("slow", SchemeHandlerFunc(
		func(_ *Request, respond func(*Response)) {
			release <- respond
		})))

	done := make(chan *Response, 1)
	f.router.dispatch("slow", &Request{Method: http.MethodGet, URL: "slow://x", Header: NewHeader()},
		func(resp *Response) { done <- resp })

	assert.Equal(t, 1, f.router.inflight())

	respond := <-release
	go respond(&Response{Status: 201, Header: NewHeader(), Body: []byte("late")})

	select {
	case resp := <-done:
		assert.Equal(t, 201, resp.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("async completion never delivered")
	}
	f.queue.flush()
	assert.Zero(t, f.router.inflight())
}

func TestSchemeRouter_UnknownSchemeYields404(t *testing.T) {
	f := newRouterFixture(t)

	var got *Response
	f.router.dispatch("nope", &Request{Method: http.MethodGet, URL: "nope://x", Header: NewHeader()},
		func(resp *Response) { got = resp })
	f.queue.flush()

	require.NotNil(t, got)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "text/plain", got.Header.Get("Content-Type"))
}

func TestSchemeRouter_RespondTwiceDeliversOnce(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.register("app", SchemeHandlerFunc(
		func(_ *Request, respond func(*Response)) {
			respond(&Response{Status: 200, Header: NewHeader(), Body: []byte("first")})
			respond(&Response{Status: 500, Header: NewHeader(), Body: []byte("second")})
		})))

	var calls int32
	var status int
	f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
		func(resp *Response) {
			atomic.AddInt32(&calls, 1)
			status = resp.Status
		})
	f.queue.flush()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 200, status, "the first respond wins")
}

func TestSchemeRouter_NilResponseBecomes500(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.register("app", SchemeHandlerFunc(
		func(_ *Request, respond func(*Response)) { respond(nil) })))

	var got *Response
	f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
		func(resp *Response) { got = resp })
	f.queue.flush()

	require.NotNil(t, got)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
}

func TestSchemeRouter_HandlerPanicBecomes500(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.register("app", SchemeHandlerFunc(
		func(_ *Request, _ func(*Response)) { panic("boom") })))

	var got *Response
	f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
		func(resp *Response) { got = resp })
	f.queue.flush()

	require.NotNil(t, got, "a panicking handler must still complete the request")
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Contains(t, string(got.Body), "scheme handler failed")
}

func TestSchemeRouter_PanicAfterRespondKeepsFirstResponse(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.register("app", SchemeHandlerFunc(
		func(_ *Request, respond func(*Response)) {
			respond(&Response{Status: 200, Header: NewHeader(), Body: []byte("ok")})
			panic("after responding")
		})))

	var calls int
	var status int
	f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
		func(resp *Response) {
			calls++
			status = resp.Status
		})
	f.queue.flush()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 200, status)
}

func TestSchemeRouter_CancelAllSuppressesLateCompletions(t *testing.T) {
	f := newRouterFixture(t)

	responders := make(chan func(*Response), 8)
	require.NoError(t, f.router.register("app", SchemeHandlerFunc(
		func(_ *Request, respond func(*Response)) {
			responders <- respond
		})))

	var calls int32
	for i := 0; i < 5; i++ {
		f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
			func(*Response) { atomic.AddInt32(&calls, 1) })
	}
	assert.Equal(t, 5, f.router.inflight())

	f.live.revoke()
	f.router.cancelAll()
	assert.Zero(t, f.router.inflight())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		respond := <-responders
		wg.Add(1)
		go func() {
			defer wg.Done()
			respond(&Response{Status: 200, Header: NewHeader()})
		}()
	}
	wg.Wait()
	f.queue.flush()

	assert.Zero(t, atomic.LoadInt32(&calls), "no completion may run after cancellation")
}

func TestSchemeRouter_ConcurrentDispatches(t *testing.T) {
	f := newRouterFixture(t)
	require.NoError(t, f.router.register("app", okHandler("ok")))

	var calls int32
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			f.router.dispatch("app", &Request{Method: http.MethodGet, URL: "app://x", Header: NewHeader()},
				func(*Response) { atomic.AddInt32(&calls, 1) })
			return nil
		})
	}
	require.NoError(t, g.Wait())
	f.queue.flush()

	assert.Equal(t, int32(50), atomic.LoadInt32(&calls))
	assert.Zero(t, f.router.inflight())
}
