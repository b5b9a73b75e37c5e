package webview

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialQueue_FIFO(t *testing.T) {
	q := newSerialQueue()
	defer q.stop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 100; i++ {
		i := i
		q.post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	q.flush()

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestSerialQueue_StopDrainsAndBlocks(t *testing.T) {
	q := newSerialQueue()

	ran := false
	q.post(func() { ran = true })
	q.stop()

	assert.True(t, ran, "jobs posted before stop must run")

	// Post after stop is dropped, and a second stop is a no-op.
	q.post(func() { t.Error("job ran after stop") })
	q.stop()
}

func TestDispatcher_PostIsAsynchronous(t *testing.T) {
	q := newSerialQueue()
	defer q.stop()
	d := &dispatcher{post: q.post, live: newLiveness()}

	var mu sync.Mutex
	var order []string

	// Hold the queue so Post cannot be confused with inline execution.
	gate := make(chan struct{})
	q.post(func() { <-gate })

	d.Post(func() {
		mu.Lock()
		order = append(order, "posted")
		mu.Unlock()
	})
	mu.Lock()
	order = append(order, "after-post")
	mu.Unlock()

	close(gate)
	q.flush()

	assert.Equal(t, []string{"after-post", "posted"}, order)
}

func TestDispatcher_RevokedLivenessSuppresses(t *testing.T) {
	q := newSerialQueue()
	defer q.stop()
	live := newLiveness()
	d := &dispatcher{post: q.post, live: live}

	live.revoke()
	d.Post(func() { t.Error("callback ran after revocation") })
	q.flush()
}

func TestDispatcher_RevokeBetweenPostAndRun(t *testing.T) {
	q := newSerialQueue()
	defer q.stop()
	live := newLiveness()
	d := &dispatcher{post: q.post, live: live}

	// Hold the queue so the posted job cannot start, revoke, then release.
	gate := make(chan struct{})
	q.post(func() { <-gate })
	d.Post(func() { t.Error("callback ran despite revocation before execution") })
	live.revoke()
	close(gate)
	q.flush()
}

func TestDispatcher_NilSafe(t *testing.T) {
	var d *dispatcher
	d.Post(func() { t.Error("nil dispatcher must drop work") })

	d = &dispatcher{live: newLiveness()}
	d.Post(func() { t.Error("dispatcher without a queue must drop work") })
}
