package webview

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ipcBridge carries messages between in-page script and the host.
//
// Page → host: adapters feed raw payloads into deliver; the registered
// handler observes them on the owning thread in per-page send order. The
// bridge never drops a message it has received from the native layer.
//
// Host → page: EvaluateScript continuations are tracked here so that each
// one fires at most once and never after destruction.
type ipcBridge struct {
	disp    *dispatcher
	live    *liveness
	log     zerolog.Logger
	handler IPCHandler

	mu       sync.Mutex
	evals    map[uint64]EvalResult
	nextEval uint64
}

func newIPCBridge(disp *dispatcher, live *liveness, handler IPCHandler, log zerolog.Logger) *ipcBridge {
	return &ipcBridge{
		disp:    disp,
		live:    live,
		log:     log.With().Str("component", "ipc-bridge").Logger(),
		handler: handler,
		evals:   make(map[uint64]EvalResult),
	}
}

// deliver hands one page-originated message to the host handler. Adapters
// call it from their native message callback; ordering is preserved by the
// owning-thread queue, which is FIFO.
func (b *ipcBridge) deliver(frame Frame, body string) {
	if b.handler == nil {
		b.log.Debug().Msg("ipc message dropped: no handler configured")
		return
	}
	b.disp.Post(func() {
		b.handler(Message{Frame: frame, Body: body})
	})
}

// registerEval tracks one pending script-result continuation and returns
// its id for the backend to echo on completion.
func (b *ipcBridge) registerEval(fn EvalResult) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextEval++
	id := b.nextEval
	b.evals[id] = fn
	return id
}

// completeEval fires the continuation for id, at most once, on the owning
// thread. Unknown or already-completed ids are ignored.
func (b *ipcBridge) completeEval(id uint64, result string, err error) {
	b.mu.Lock()
	fn, ok := b.evals[id]
	delete(b.evals, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	b.disp.Post(func() { fn(result, err) })
}

// cancelEvals forgets every pending continuation. Called on destruction;
// late native results become no-ops.
func (b *ipcBridge) cancelEvals() {
	b.mu.Lock()
	n := len(b.evals)
	b.evals = make(map[uint64]EvalResult)
	b.mu.Unlock()
	if n > 0 {
		b.log.Debug().Int("dropped", n).Msg("cancelled pending script evaluations")
	}
}

// ipcBootstrap returns the script installed into every new document before
// page scripts run. send is the backend-specific JavaScript expression for
// a function delivering one string to the native message channel.
func ipcBootstrap(send string) string {
	return fmt.Sprintf(`(() => {
  if (window.weft) return;
  const send = %s;
  window.weft = Object.freeze({
    postMessage: (m) => send(typeof m === 'string' ? m : JSON.stringify(m)),
  });
})();`, send)
}

// buildInitScripts assembles the per-document startup scripts: the IPC
// binding first, then the user scripts in the order they were added.
func buildInitScripts(send string, userScripts []string) []string {
	out := make([]string, 0, len(userScripts)+1)
	out = append(out, ipcBootstrap(send))
	out = append(out, userScripts...)
	return out
}

// joinScripts concatenates startup scripts for engines that accept a single
// document-created script blob.
func joinScripts(scripts []string) string {
	return strings.Join(scripts, "\n;\n")
}
