//go:build linux

package harness

import (
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/race-hunter/krace/pkg/kraceconfig"
)

// Target is a user-supplied probe function intended to drive the kernel
// into a code path that interacts with a shared resource. Out of scope per
// the harness's own design: the harness only knows how to schedule and
// time calls to it.
type Target func() error

// Hook is a pre- or post-round callback, invoked exactly once per round by
// whichever worker is the last to arrive at that phase.
type Hook func() error

// noopTarget replaces a worker's target during shutdown so any round
// already inside the barrier can still complete cleanly.
func noopTarget() error { return nil }

// Worker is one OS thread driving a single target function through the
// round protocol, the Go mirror of main.c's struct worker.
type Worker struct {
	Index  int
	target Target
	sched  kraceconfig.SchedConfig

	armed atomic.Bool
	tid   int

	duration int64 // baseline duration in nanoseconds, set by MeasureBaselines
	offset   int64 // current round's sleep offset in nanoseconds

	baselineSamples []time.Duration
}

// NewWorker wraps a target function with its scheduling configuration.
func NewWorker(index int, target Target, sched kraceconfig.SchedConfig) *Worker {
	w := &Worker{Index: index, target: target, sched: sched}
	w.armed.Store(true)
	return w
}

// TID returns the OS thread id this worker is pinned to, valid only after
// the harness has started the worker's goroutine.
func (w *Worker) TID() int { return w.tid }

// Duration returns the worker's measured baseline duration (third-largest
// of 100 timed runs).
func (w *Worker) Duration() int64 { return w.duration }

// Offset returns the worker's current round sleep offset in nanoseconds,
// as last set by Harness.SetOffsets.
func (w *Worker) Offset() int64 { return w.offset }

// applySchedAndAffinity pins the calling OS thread (the caller must already
// have called runtime.LockOSThread) to the worker's configured scheduling
// policy/priority and CPU affinity mask, grounded on
// _examples/other_examples/31c3f1e2_ehrlich-b-go-ublk__internal-queue-runner.go.go's
// unix.CPUSet/unix.SchedSetaffinity usage pattern.
func (w *Worker) applySchedAndAffinity() error {
	w.tid = unix.Gettid()

	if len(w.sched.CPUs) > 0 {
		var mask unix.CPUSet
		for _, cpu := range w.sched.CPUs {
			mask.Set(cpu)
		}
		if err := unix.SchedSetaffinity(w.tid, &mask); err != nil {
			return err
		}
	}

	param := &unix.SchedParam{Priority: int32(w.sched.Priority)}
	if err := unix.SchedSetscheduler(w.tid, w.sched.Policy, param); err != nil {
		return err
	}
	return nil
}

// recordBaselineSample appends a timed target invocation to the worker's
// baseline sample set (only used during MeasureBaselines).
func (w *Worker) recordBaselineSample(d time.Duration) {
	w.baselineSamples = append(w.baselineSamples, d)
}

// finalizeBaseline records the third-largest of the collected baseline
// samples as the worker's duration, mirroring main.c's measure_duration:
// median-of-top-3 is robust to jitter while capturing near-worst-case
// length so the search box encloses realistic skew.
func (w *Worker) finalizeBaseline() {
	w.duration = thirdLargest(w.baselineSamples)
	w.baselineSamples = nil
}

func thirdLargest(samples []time.Duration) int64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	idx := 2
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return int64(sorted[idx])
}

// runRound executes one pre->target->post cycle through the shared
// harness barrier/counters. If the worker has been disarmed (shutdown in
// progress), the configured sleep is skipped and a no-op replaces the
// target call, so the round still completes its accounting cleanly.
func (w *Worker) runRound(h *Harness, recordBaseline bool) {
	h.preRound()

	target := w.target
	if !w.armed.Load() {
		target = noopTarget
	} else if w.offset > 0 {
		time.Sleep(time.Duration(w.offset))
	}

	start := time.Now()
	err := target()
	elapsed := time.Since(start)

	if recordBaseline {
		w.recordBaselineSample(elapsed)
	}

	h.postRound(err)
}
