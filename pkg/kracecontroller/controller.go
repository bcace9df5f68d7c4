//go:build linux

// Package kracecontroller wires the harness, tracer, and sampler packages
// into the two top-level experiment loops: one that traces and adapts its
// sample budget to ring-buffer overruns, and one that drives the target
// under random offsets with tracing off entirely. Grounded on main.c's
// experiment_loop/notrace_loop.
package kracecontroller

import (
	"context"
	"fmt"

	"github.com/race-hunter/krace/internal/logging"
	"github.com/race-hunter/krace/pkg/harness"
	"github.com/race-hunter/krace/pkg/sampler"
	"github.com/race-hunter/krace/pkg/tracer"
)

var log = logging.For("controller")

const (
	initialSamples = 100
	minSamples     = 2
	notraceSamples = 1000
)

// ExperimentLoop runs rounds under tracing until ctx is cancelled: it
// measures baselines, registers every worker's tid with the tracer, then
// repeatedly asks the sampler for the next offset vector, runs a batch of
// rounds at those offsets, and reports the observed (count, triggers)
// back to the sampler, logging one CSV row per iteration.
func ExperimentLoop(ctx context.Context, h *harness.Harness, tr *tracer.Tracer, sp sampler.Sampler, csvLog *CSVLogger) error {
	baselines, err := h.MeasureBaselines()
	if err != nil {
		return fmt.Errorf("kracecontroller: measure baselines: %w", err)
	}
	log.Info("measured baselines", "durations", baselines)

	for _, w := range h.Workers() {
		tr.AddPID(w.TID())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		params := sp.NextParams()
		h.SetOffsets(params)

		entries, count, triggers, err := runTracedBatch(h, tr, initialSamples)
		if err != nil {
			return err
		}
		log.Debug("round complete", "entries", entries, "count", count, "triggers", triggers)

		sp.Report(count, triggers)
		if err := csvLog.WriteRow(offsetsOf(h), count, triggers); err != nil {
			return err
		}
	}
}

// NotraceLoop runs rounds with tracing untouched (off) forever, feeding a
// random sampler's offsets to the harness and logging a zeroed count and
// triggers column, matching main.c's -n mode.
func NotraceLoop(ctx context.Context, h *harness.Harness, sp sampler.Sampler, csvLog *CSVLogger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		params := sp.NextParams()
		h.SetOffsets(params)

		if err := h.RunBatch(notraceSamples, false); err != nil {
			return fmt.Errorf("kracecontroller: run batch: %w", err)
		}
		sp.Report(0, 0)
		if err := csvLog.WriteRow(offsetsOf(h), 0, 0); err != nil {
			return err
		}
	}
}

// runTracedBatch runs one batch of samples rounds with tracing enabled,
// collecting the tracer's stats afterward. If the ring buffer overran
// during the batch, the batch is discarded and retried at a recomputed
// sample budget (spec.md §4.3 "Overrun adaptation") rather than counted
// toward the caller's iteration.
func runTracedBatch(h *harness.Harness, tr *tracer.Tracer, samples int) (entries, count, triggers int, err error) {
	for {
		before, _ := tr.Overrun()

		if err := tr.EnableTracing(); err != nil {
			return 0, 0, 0, fmt.Errorf("kracecontroller: enable tracing: %w", err)
		}
		if err := h.RunBatch(samples, false); err != nil {
			return 0, 0, 0, err
		}
		if err := tr.DisableTracing(); err != nil {
			return 0, 0, 0, fmt.Errorf("kracecontroller: disable tracing: %w", err)
		}

		after, _ := tr.Overrun()
		roundEntries, roundCount, roundTriggers, missed, err := tr.CollectStats()
		if err != nil {
			return 0, 0, 0, err
		}

		delta := after - before
		if !missed && delta == 0 {
			return roundEntries, roundCount, roundTriggers, nil
		}

		samples = adjustSamples(roundEntries, samples, delta)
		log.Warn("ring buffer overrun; retrying round with adjusted sample budget",
			"overrun_delta", delta, "entries", roundEntries, "next_samples", samples)
	}
}

// adjustSamples implements new_samples = entries*old_samples /
// ((overrun_delta+entries)*2), floored at minSamples so a pathologically
// small result can never stall the search entirely.
func adjustSamples(entries, oldSamples int, overrunDelta uint64) int {
	denom := float64(overrunDelta+uint64(entries)) * 2
	if denom == 0 {
		return oldSamples
	}
	next := int(float64(entries) * float64(oldSamples) / denom)
	if next < minSamples {
		next = minSamples
	}
	return next
}

func offsetsOf(h *harness.Harness) []int64 {
	workers := h.Workers()
	offsets := make([]int64, len(workers))
	for i, w := range workers {
		offsets[i] = w.Offset()
	}
	return offsets
}
