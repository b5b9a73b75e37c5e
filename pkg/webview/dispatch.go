package webview

import (
	"sync"
	"sync/atomic"
)

// liveness is the revocable cell shared by every callback closure that
// reaches back into handle state. Destruction revokes it before any native
// object is released, so an in-flight native callback observes "destroyed"
// and becomes a no-op instead of dereferencing freed state.
type liveness struct {
	alive atomic.Bool
}

func newLiveness() *liveness {
	l := &liveness{}
	l.alive.Store(true)
	return l
}

func (l *liveness) ok() bool { return l.alive.Load() }
func (l *liveness) revoke()  { l.alive.Store(false) }

// dispatcher marshals work onto the owning thread captured at construction.
// Posted functions run in FIFO order and never synchronously from within
// Post, which keeps async completions off the native callstack that
// registered them. Delivery is guaranteed only while the handle is alive.
type dispatcher struct {
	post func(func())
	live *liveness
}

func (d *dispatcher) Post(fn func()) {
	if d == nil || d.post == nil || !d.live.ok() {
		return
	}
	d.post(func() {
		if d.live.ok() {
			fn()
		}
	})
}

// serialQueue is a single-goroutine FIFO run loop. It stands in for the
// native UI thread on backends that do not bring their own (headless), and
// backs the owning-thread contract in tests.
type serialQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []func()
	closed bool
	done   chan struct{}
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *serialQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.jobs) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.jobs) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		job()
	}
}

// post enqueues fn. Safe from any goroutine; silently drops after stop.
func (q *serialQueue) post(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.jobs = append(q.jobs, fn)
	q.mu.Unlock()
	q.cond.Signal()
}

// stop lets queued jobs drain, then releases the goroutine. It blocks until
// the loop has exited so callers can rely on no job running afterwards.
func (q *serialQueue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.cond.Signal()
	<-q.done
}

// flush blocks until every job posted before the call has run.
func (q *serialQueue) flush() {
	ran := make(chan struct{})
	q.post(func() { close(ran) })
	select {
	case <-ran:
	case <-q.done:
	}
}
