//go:build linux

package tracer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Control-file names under the tracefs mount, grounded on trace.c's
// hardcoded paths relative to /sys/kernel/debug/tracing (or the tracefs
// auto-mount at /sys/kernel/tracing on newer kernels).
const (
	fileCurrentTracer = "current_tracer"
	fileKprobeEvents  = "kprobe_events"
	fileTracingOn     = "tracing_on"
	dirKprobeEvents   = "events/kprobes"
	fileFormat        = "format"
	fileEnable        = "enable"
)

func (t *Tracer) writeControlFile(name, value string) error {
	f, err := os.OpenFile(t.path(name), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("tracer: open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return fmt.Errorf("tracer: write %s: %w", name, err)
	}
	return nil
}

func (t *Tracer) appendControlFile(name, value string) error {
	f, err := os.OpenFile(t.path(name), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("tracer: open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return fmt.Errorf("tracer: append %s: %w", name, err)
	}
	return nil
}

func (t *Tracer) setCurrentTracer(name string) error {
	return t.writeControlFile(fileCurrentTracer, name)
}

func (t *Tracer) writeTracingOn(value string) error {
	return t.writeControlFile(fileTracingOn, value)
}

// readEventID reads the "ID: <n>" line out of a kprobe's format file.
func (t *Tracer) readEventID(eventName string) (int, error) {
	f, err := os.Open(t.path(dirKprobeEvents, eventName, fileFormat))
	if err != nil {
		return 0, fmt.Errorf("tracer: open format for %s: %w", eventName, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "ID:"); ok {
			id, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, fmt.Errorf("tracer: parse event id for %s: %w", eventName, err)
			}
			return id, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("tracer: scan format for %s: %w", eventName, err)
	}
	return 0, fmt.Errorf("%w: %s", ErrEventIDNotFound, eventName)
}

func (t *Tracer) setEventEnabled(eventName string, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return t.writeControlFile(dirKprobeEvents+"/"+eventName+"/"+fileEnable, value)
}

func (t *Tracer) openPerCPUPipe(cpu int) (*os.File, error) {
	path := t.path("per_cpu", fmt.Sprintf("cpu%d", cpu), "trace_pipe_raw")
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("tracer: open %s: %w", path, err)
	}
	return f, nil
}

// readOverrun parses the "overrun: <n>" line out of a CPU's stats file.
func (t *Tracer) readOverrun(cpu int) (uint64, error) {
	path := t.path("per_cpu", fmt.Sprintf("cpu%d", cpu), "stats")
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("tracer: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "overrun:" {
			n, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("tracer: parse overrun for cpu%d: %w", cpu, err)
			}
			return n, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("tracer: scan stats for cpu%d: %w", cpu, err)
	}
	return 0, nil
}
