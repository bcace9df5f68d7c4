//go:build linux

// Command krace drives a configured set of worker threads through
// staggered timing offsets while watching a set of kernel probe points,
// searching for the interleaving that exposes a race window.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/race-hunter/krace/internal/logging"
	"github.com/race-hunter/krace/pkg/harness"
	"github.com/race-hunter/krace/pkg/kraceconfig"
	"github.com/race-hunter/krace/pkg/kracecontroller"
	"github.com/race-hunter/krace/pkg/sampler"
	"github.com/race-hunter/krace/pkg/system/procutil"
	"github.com/race-hunter/krace/pkg/tracer"
)

var log = logging.For("cmd")

type options struct {
	noTrace            bool
	exploreProbability float64
	outFile            string
	configFile         string
	configFormat       string
	tracefsMount       string
	workers            int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "krace",
		Short: "Hunt a kernel race by forcing worker interleavings and watching probe points",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.noTrace {
				if cmd.Flags().Changed("explore-probability") {
					return fmt.Errorf("--explore-probability cannot be combined with --no-trace")
				}
				if cmd.Flags().Changed("out-file") {
					return fmt.Errorf("--out-file cannot be combined with --no-trace")
				}
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.noTrace, "no-trace", "n", false, "drive workers under random offsets with tracing disabled")
	flags.Float64VarP(&opts.exploreProbability, "explore-probability", "e", 0.1, "probability of exploring instead of exploiting the best-known bucket")
	flags.StringVarP(&opts.outFile, "out-file", "o", "out.csv", "CSV file to append round results to")
	flags.StringVar(&opts.configFile, "config-file", "config.json", "race configuration file")
	flags.StringVar(&opts.configFormat, "config-format", "json", "config file format: json or yaml")
	flags.StringVar(&opts.tracefsMount, "tracefs", "/sys/kernel/tracing", "tracefs mount point")
	flags.IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "number of worker threads to launch")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.workers < 2 {
		return fmt.Errorf("krace: %w", sampler.ErrTooFewWorkers)
	}

	cfg, err := loadConfig(opts.configFile, opts.configFormat, opts.workers)
	if err != nil {
		return err
	}

	targets := make([]harness.Target, opts.workers)
	for i := 0; i < opts.workers; i++ {
		targets[i] = commandTarget(cfg.Targets[i])
	}

	h := harness.New(targets, cfg.Sched, nil, nil, nil)
	if err := h.Start(); err != nil {
		return fmt.Errorf("krace: start harness: %w", err)
	}
	defer func() {
		h.Shutdown()
		h.Join()
	}()

	out, err := os.OpenFile(opts.outFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("krace: open %s: %w", opts.outFile, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Error("failed to close output file", "error", cerr)
		}
	}()
	csvLog := kracecontroller.NewCSVLogger(out, cfg.Name, opts.workers)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.noTrace {
		durations, merr := h.MeasureBaselines()
		if merr != nil {
			return fmt.Errorf("krace: measure baselines: %w", merr)
		}
		sp := sampler.NewRandomSampler(durations)
		defer sp.Close()
		return kracecontroller.NotraceLoop(ctx, h, sp, csvLog)
	}

	pids, err := attachPIDs(cfg.Comms, h)
	if err != nil {
		return err
	}

	tr := tracer.New(opts.tracefsMount, cfg.RacePoints)
	if err := tr.Init(affinityUnion(cfg.Sched)); err != nil {
		return fmt.Errorf("krace: init tracer: %w", err)
	}
	defer func() {
		if cerr := tr.Close(); cerr != nil {
			log.Error("failed to tear down tracer", "error", cerr)
		}
	}()
	for _, pid := range pids {
		tr.AddPID(pid)
	}

	durations, err := h.MeasureBaselines()
	if err != nil {
		return fmt.Errorf("krace: measure baselines: %w", err)
	}
	sp := sampler.NewLearningSampler(durations, opts.exploreProbability)
	defer sp.Close()

	return kracecontroller.ExperimentLoop(ctx, h, tr, sp, csvLog)
}

func loadConfig(path, format string, numWorkers int) (*kraceconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("krace: read %s: %w", path, err)
	}

	switch strings.ToLower(format) {
	case "yaml", "yml":
		return kraceconfig.ParseYAML(data, numWorkers)
	case "json", "":
		return kraceconfig.Parse(data, numWorkers)
	default:
		return nil, fmt.Errorf("krace: unknown --config-format %q", format)
	}
}

// commandTarget wraps a configured shell command as a harness.Target; an
// empty command is a no-op worker, used when a race point's trigger lives
// entirely inside another traced process attached via comm name.
func commandTarget(command string) harness.Target {
	if command == "" {
		return func() error { return nil }
	}
	return func() error {
		return exec.Command("sh", "-c", command).Run()
	}
}

// attachPIDs resolves the configured comm names to live PIDs and returns
// them alongside every harness worker's own tid, ready to register with
// the tracer's state machine.
func attachPIDs(comms []string, h *harness.Harness) ([]int, error) {
	var pids []int
	if len(comms) > 0 {
		resolved, err := procutil.ResolveComms(comms)
		if err != nil {
			log.Warn("some configured comms could not be resolved", "error", err)
		}
		pids = resolved
	}
	for _, w := range h.Workers() {
		pids = append(pids, w.TID())
	}
	return pids, nil
}

// affinityUnion returns the set of CPU indices any worker is pinned to,
// or every CPU on the host if none specify an affinity mask.
func affinityUnion(sched []kraceconfig.SchedConfig) []int {
	seen := make(map[int]bool)
	for _, s := range sched {
		for _, cpu := range s.CPUs {
			seen[cpu] = true
		}
	}
	if len(seen) == 0 {
		for i := 0; i < runtime.NumCPU(); i++ {
			seen[i] = true
		}
	}
	cpus := make([]int, 0, len(seen))
	for cpu := range seen {
		cpus = append(cpus, cpu)
	}
	return cpus
}
