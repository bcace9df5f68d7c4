//go:build linux

package harness

import "sync"

// barrier is a reusable N-party rendezvous point. Go's standard library has
// no reusable barrier (sync.WaitGroup is single-use, and golang.org/x/sync
// only offers errgroup/semaphore, neither of which gives the reusable
// pre/post round-barrier semantics the harness needs), so it is hand-built
// from sync.Mutex + sync.Cond, mirroring the teacher's direct use of
// pthread_mutex/pthread_cond rather than a higher-level concurrency
// library.
type barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation int
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n goroutines have called Wait for the current
// generation, then releases them all together.
func (b *barrier) Wait() {
	b.mu.Lock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
	} else {
		for b.generation == gen {
			b.cond.Wait()
		}
	}
	b.mu.Unlock()
}
