//go:build linux

// Package harness implements the coordinated worker harness: N OS threads
// with explicit CPU affinity and scheduling policy, driven through
// barrier-synchronized rounds with pre/post hooks and per-thread sleep
// offsets, grounded on main.c's worker/worker_context machinery.
package harness

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/race-hunter/krace/internal/logging"
	"github.com/race-hunter/krace/pkg/kraceconfig"
)

var log = logging.For("harness")

// OnWorkerReady is called once per worker, from that worker's own locked OS
// thread, right after scheduling/affinity setup succeeds and its TID is
// known — the attachment point for registering the worker's TID with the
// tracer (spec.md §4.3 "Attaching targets").
type OnWorkerReady func(w *Worker)

// Harness owns the worker goroutines, the round synchronization
// primitives, and the measured baseline durations for one experiment.
type Harness struct {
	workers []*Worker
	pre     Hook
	post    Hook
	onReady OnWorkerReady

	preBarrier *barrier

	roundPre      atomic.Int32
	roundFinished atomic.Int32

	mu        sync.Mutex
	startCond *sync.Cond
	endCond   *sync.Cond

	start          bool
	finished       int
	stop           bool
	err            error
	samples        int
	recordBaseline bool

	wg sync.WaitGroup
}

// New constructs a harness for the given targets and per-worker scheduling
// configuration (sched may be shorter than targets; a missing entry runs
// its worker under SCHED_OTHER with the parent's inherited affinity).
func New(targets []Target, sched []kraceconfig.SchedConfig, pre, post Hook, onReady OnWorkerReady) *Harness {
	h := &Harness{pre: pre, post: post, onReady: onReady}
	h.startCond = sync.NewCond(&h.mu)
	h.endCond = sync.NewCond(&h.mu)
	h.preBarrier = newBarrier(len(targets))

	h.workers = make([]*Worker, len(targets))
	for i, target := range targets {
		var cfg kraceconfig.SchedConfig
		if i < len(sched) {
			cfg = sched[i]
		}
		h.workers[i] = NewWorker(i, target, cfg)
	}
	return h
}

// Start launches one goroutine per worker, locked to its own OS thread and
// pinned to its configured scheduling policy/affinity. It returns once
// every worker has either succeeded or failed its setup.
func (h *Harness) Start() error {
	ready := make(chan error, len(h.workers))
	for _, w := range h.workers {
		h.wg.Add(1)
		go h.workerLoop(w, ready)
	}

	var firstErr error
	for range h.workers {
		if err := <-ready; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		h.Shutdown()
		h.wg.Wait()
		return firstErr
	}
	return nil
}

func (h *Harness) workerLoop(w *Worker, ready chan<- error) {
	defer h.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := w.applySchedAndAffinity(); err != nil {
		ready <- err
		return
	}
	if h.onReady != nil {
		h.onReady(w)
	}
	ready <- nil

	for {
		h.mu.Lock()
		for !h.start && !h.stop {
			h.startCond.Wait()
		}
		stop := h.stop
		samples := h.samples
		recordBaseline := h.recordBaseline
		h.mu.Unlock()

		if stop {
			return
		}

		for i := 0; i < samples; i++ {
			w.runRound(h, recordBaseline)
		}

		h.workerFinished()
	}
}

func (h *Harness) workerFinished() {
	h.mu.Lock()
	h.start = false
	h.finished++
	if h.finished == len(h.workers) {
		h.endCond.Broadcast()
	}
	h.mu.Unlock()
}

// preRound implements the shared pre-phase: the Nth worker to arrive runs
// the pre hook, then every worker waits on the reusable barrier.
func (h *Harness) preRound() {
	if h.roundPre.Add(1) == int32(len(h.workers)) {
		h.roundPre.Store(0)
		if h.pre != nil {
			if err := h.pre(); err != nil {
				h.fail(err)
			}
		}
	}
	h.preBarrier.Wait()
}

// postRound implements the shared post-phase: any target error fails the
// round, then the Nth worker to arrive runs the post hook. No barrier
// follows; completion is observed through workerFinished.
func (h *Harness) postRound(targetErr error) {
	if targetErr != nil {
		h.fail(targetErr)
	}
	if h.roundFinished.Add(1) == int32(len(h.workers)) {
		h.roundFinished.Store(0)
		if h.post != nil {
			if err := h.post(); err != nil {
				h.fail(err)
			}
		}
	}
}

func (h *Harness) fail(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
	}
	h.mu.Unlock()
	h.Shutdown()
}

// Shutdown disarms every worker (so any round currently inside the barrier
// completes as a no-op) and wakes both condition variables, implementing
// the armed-flag REDESIGN FLAG in place of the original's function-pointer
// swap under a mutex.
func (h *Harness) Shutdown() {
	h.mu.Lock()
	for _, w := range h.workers {
		w.armed.Store(false)
	}
	h.stop = true
	h.mu.Unlock()

	h.startCond.Broadcast()
	h.endCond.Broadcast()
}

// Join waits for every worker goroutine to exit after Shutdown.
func (h *Harness) Join() {
	h.wg.Wait()
}

// SetOffsets applies a normalized (N-1)-length offset vector to the
// workers: the first N-1 get the corresponding sleep, the last (reference)
// worker gets whatever normalization assigns it.
func (h *Harness) SetOffsets(params []int64) {
	sleeps := NormalizeOffsets(params)
	for i, s := range sleeps {
		h.workers[i].offset = s
	}
}

// MeasureBaselines runs 100 rounds with zero offsets, recording each
// worker's third-largest timed duration, then returns the per-worker
// duration vector (length N) used to size the sampler's domain.
func (h *Harness) MeasureBaselines() ([]int64, error) {
	for _, w := range h.workers {
		w.offset = 0
	}
	if err := h.RunBatch(100, true); err != nil {
		return nil, err
	}
	durations := make([]int64, len(h.workers))
	for i, w := range h.workers {
		w.finalizeBaseline()
		durations[i] = w.duration
	}
	return durations, nil
}

// RunBatch signals every worker to run `samples` rounds and blocks until
// they have all finished (or the harness has been shut down).
func (h *Harness) RunBatch(samples int, recordBaseline bool) error {
	h.mu.Lock()
	h.samples = samples
	h.recordBaseline = recordBaseline
	h.finished = 0
	h.err = nil
	h.start = true
	h.startCond.Broadcast()
	for h.finished != len(h.workers) && !h.stop {
		h.endCond.Wait()
	}
	err := h.err
	stopped := h.stop
	h.mu.Unlock()

	if stopped && err == nil {
		return ErrShutdown
	}
	return err
}

// Workers exposes the worker set, e.g. so the controller can register
// TIDs (redundant with onReady, but useful once all workers are up).
func (h *Harness) Workers() []*Worker { return h.workers }
