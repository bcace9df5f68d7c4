//go:build linux

package tracer

import (
	"fmt"

	"github.com/race-hunter/krace/pkg/kraceconfig"
)

// kprobe is one installed dynamic probe: its ftrace event name and the
// numeric event id the kernel assigned it, used to demultiplex per-CPU
// ring buffer records back to a race point.
type kprobe struct {
	name    string
	eventID int
}

// installKprobe writes one line to kprobe_events describing a probe on
// (or return-probe of) the race point's symbol, then reads back the
// assigned event id. The event name is derived from the point's index so
// distinct race points never collide even when they share a symbol.
func (t *Tracer) installKprobe(index int, point kraceconfig.RacePoint) (*kprobe, error) {
	name := fmt.Sprintf("k_race_%d", index)

	kind := "p"
	if point.IsReturnProbe() {
		kind = "r"
	}
	line := fmt.Sprintf("%s:%s %s\n", kind, name, point.Symbol())
	if err := t.appendControlFile(fileKprobeEvents, line); err != nil {
		return nil, fmt.Errorf("tracer: install kprobe for %q: %w", point.Description, err)
	}

	id, err := t.readEventID(name)
	if err != nil {
		_ = t.appendControlFile(fileKprobeEvents, "-:"+name+"\n")
		return nil, err
	}
	return &kprobe{name: name, eventID: id}, nil
}

func (t *Tracer) enableKprobe(kp *kprobe) error {
	return t.setEventEnabled(kp.name, true)
}

// removeKprobe disables then deletes the probe's kprobe_events entry.
// Errors are best-effort: this runs from unwind/Close paths that must not
// abandon cleanup of the remaining probes on the first failure.
func (t *Tracer) removeKprobe(kp *kprobe) error {
	_ = t.setEventEnabled(kp.name, false)
	if err := t.appendControlFile(fileKprobeEvents, "-:"+kp.name+"\n"); err != nil {
		return fmt.Errorf("tracer: remove kprobe %s: %w", kp.name, err)
	}
	return nil
}
