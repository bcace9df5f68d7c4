//go:build linux

// Package tracer consumes the kernel's dynamic tracing facility: it
// installs/removes kprobes at developer-named race points, drains the
// per-CPU raw ring buffers those probes feed, merges the per-CPU streams
// into one global timeline by kernel timestamp, and classifies events
// against a per-task open/closed state machine to produce (count,
// triggers) for a round. Grounded directly on trace.c/trace.h.
package tracer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/race-hunter/krace/internal/logging"
	"github.com/race-hunter/krace/pkg/kraceconfig"
)

var log = logging.For("tracer")

// Tracer owns the installed kprobes, the per-CPU ring-buffer scratch
// state, and the tracked-task accounting for one experiment. Concurrent
// tracer instances are explicitly unsupported: tracefs control files and
// the installed kprobes are process-wide state (spec.md §9 "Global
// state").
type Tracer struct {
	tracefs string
	points  []kraceconfig.RacePoint

	probes  []*kprobe
	eventID map[int]int // event id -> index into points

	cpus      []int
	decoders  map[int]*pageDecoder
	pipes     map[int]*os.File

	state *raceState
}

// New builds a tracer for the given race points, ready to Init.
func New(tracefsMount string, points []kraceconfig.RacePoint) *Tracer {
	return &Tracer{
		tracefs: tracefsMount,
		points:  points,
		eventID: make(map[int]int),
		decoders: make(map[int]*pageDecoder),
		pipes:    make(map[int]*os.File),
	}
}

// Init switches the tracer to "nop", installs one kprobe per race point,
// reads back each probe's event id, enables every probe, and opens a raw
// per-CPU pipe for every CPU in cpus (the union of all workers' affinity
// masks). On any failure, every probe installed so far is removed before
// returning, matching the unwind discipline spec.md §7 requires.
func (t *Tracer) Init(cpus []int) (err error) {
	if err := t.setCurrentTracer("nop"); err != nil {
		return fmt.Errorf("tracer: set current_tracer: %w", err)
	}

	installed := make([]*kprobe, 0, len(t.points))
	defer func() {
		if err != nil {
			for _, p := range installed {
				_ = t.removeKprobe(p)
			}
		}
	}()

	for i, point := range t.points {
		kp, kerr := t.installKprobe(i, point)
		if kerr != nil {
			err = kerr
			return err
		}
		installed = append(installed, kp)
		t.eventID[kp.eventID] = i
	}
	t.probes = installed

	for _, p := range t.probes {
		if eerr := t.enableKprobe(p); eerr != nil {
			err = eerr
			return err
		}
	}

	t.cpus = append([]int(nil), cpus...)
	sort.Ints(t.cpus)
	for _, cpu := range t.cpus {
		pipe, perr := t.openPerCPUPipe(cpu)
		if perr != nil {
			err = perr
			return err
		}
		t.pipes[cpu] = pipe
		t.decoders[cpu] = newPageDecoder()
	}

	t.state = newRaceState(t.points)
	return nil
}

// AddPID registers a tracked task; events firing in this PID participate
// in the open/close/trigger state machine.
func (t *Tracer) AddPID(pid int) {
	t.state.addTask(pid)
}

// EnableTracing and DisableTracing bracket one round, writing "1"/"0" to
// tracing_on.
func (t *Tracer) EnableTracing() error  { return t.writeTracingOn("1") }
func (t *Tracer) DisableTracing() error { return t.writeTracingOn("0") }

// CollectStats drains every CPU's ring buffer for the round just finished,
// merges the per-CPU streams by kernel timestamp, and applies them to the
// tracked-task state machine. It returns the round's entries (events
// observed), count, triggers, and whether any CPU reported an overrun
// during the round.
func (t *Tracer) CollectStats() (entries, count, triggers int, missed bool, err error) {
	sources := make([]eventSource, 0, len(t.cpus))
	for _, cpu := range t.cpus {
		dec := t.decoders[cpu]
		if rerr := dec.refill(t.pipes[cpu]); rerr != nil {
			err = rerr
			return
		}
		sources = append(sources, &cpuSource{decoder: dec, eventID: t.eventID})
	}

	t.state.resetRound()
	entries, missedRound := mergeRound(sources, t.state.apply)
	missed = missedRound
	return entries, t.state.count, t.state.triggers, missed, nil
}

// Overrun returns the sum of the per-CPU "overrun" counters reported by
// tracefs's per-CPU stats files, used by the controller to recompute the
// per-round sample budget after an overrun (spec.md §4.3 "Overrun
// adaptation").
func (t *Tracer) Overrun() (uint64, error) {
	var total uint64
	for _, cpu := range t.cpus {
		n, err := t.readOverrun(cpu)
		if err != nil {
			// Open question (spec.md §9): the original swallows this error
			// inside the SIGINT handler; treat it as non-fatal but logged.
			log.Warn("failed to read per-cpu overrun stat", "cpu", cpu, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

// Close disables tracing, removes every installed kprobe, closes the
// per-CPU pipes, and re-enables tracing so the kernel is never left with
// tracing disabled (spec.md §7 "no path leaves kprobes installed or
// tracing disabled").
func (t *Tracer) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(t.DisableTracing())
	for _, p := range t.probes {
		record(t.removeKprobe(p))
	}
	for _, f := range t.pipes {
		record(f.Close())
	}
	record(t.EnableTracing())
	return firstErr
}

func (t *Tracer) path(parts ...string) string {
	return filepath.Join(append([]string{t.tracefs}, parts...)...)
}
