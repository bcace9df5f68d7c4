//go:build linux

package tracer

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// pageSize is the raw page size trace_pipe_raw hands back per read,
// matching the host's ring buffer sub-buffer size on every kernel this
// tool targets.
const pageSize = 4096

// pageHeaderLen covers the two fields every sub-buffer starts with: the
// page's base kernel timestamp, and a commit word recording how many
// bytes of event data follow plus the missed-events flags.
const pageHeaderLen = 16

const (
	commitMissedEventsFlag = uint64(1) << 63
	commitLengthMask       = (uint64(1) << 32) - 1
)

// rawRecord is one decoded ring-buffer event: the kernel timestamp it
// fired at, the ftrace event id (which kprobe produced it), and the
// traced task's pid.
type rawRecord struct {
	time    uint64
	eventID int
	pid     int
}

// pageDecoder holds the events decoded from one CPU's ring buffer that
// have not yet been merged, plus whether the last refill observed an
// overrun on this CPU.
type pageDecoder struct {
	pending []rawRecord
	cursor  int
	missed  bool
}

func newPageDecoder() *pageDecoder {
	return &pageDecoder{}
}

// refill reads every full page currently available on the non-blocking
// per-CPU pipe and decodes it, appending to pending. EAGAIN/EWOULDBLOCK
// and EOF both mean "nothing more right now" rather than an error, since
// the pipe is read in a tight per-round poll loop.
//
// missed is reset at the start of every call: it is sticky only for the
// round being drained right now (trace.c's tracer_collect_stats resets
// its local missed_events to 0 on every call), not across the process's
// entire lifetime.
func (d *pageDecoder) refill(r *os.File) error {
	d.missed = false
	buf := make([]byte, pageSize)
	for {
		n, err := r.Read(buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n < pageHeaderLen {
			continue
		}
		if err := d.decodePage(buf[:n]); err != nil {
			return err
		}
	}
}

func (d *pageDecoder) decodePage(page []byte) error {
	// Each record's 4-byte time field is a delta since the previous
	// record (or since the page's base timestamp, for the first record),
	// mirroring kbuffer_next_event's accumulation of per-event deltas
	// onto the sub-buffer's base time_stamp. Absolute timestamps are what
	// make cross-CPU merge ordering in merge.go meaningful.
	baseTime := binary.LittleEndian.Uint64(page[0:8])
	commit := binary.LittleEndian.Uint64(page[8:16])
	if commit&commitMissedEventsFlag != 0 {
		d.missed = true
	}
	length := int(commit & commitLengthMask)
	if length > len(page)-pageHeaderLen {
		length = len(page) - pageHeaderLen
	}

	runningTime := baseTime
	off := pageHeaderLen
	end := pageHeaderLen + length
	for off+8 <= end {
		deltaNanos := binary.LittleEndian.Uint32(page[off:])
		recLen := int(binary.LittleEndian.Uint16(page[off+4:]))
		eventID := int(binary.LittleEndian.Uint16(page[off+6:]))
		off += 8
		if off+recLen > end {
			break
		}
		var pid int
		if recLen >= 4 {
			pid = int(int32(binary.LittleEndian.Uint32(page[off:])))
		}
		runningTime += uint64(deltaNanos)
		d.pending = append(d.pending, rawRecord{
			time:    runningTime,
			eventID: eventID,
			pid:     pid,
		})
		off += recLen
	}
	return nil
}

// next returns the next undelivered record in arrival order.
func (d *pageDecoder) next() (rawRecord, bool) {
	if d.cursor >= len(d.pending) {
		return rawRecord{}, false
	}
	rec := d.pending[d.cursor]
	return rec, true
}

func (d *pageDecoder) advance() {
	d.cursor++
	if d.cursor == len(d.pending) {
		d.pending = d.pending[:0]
		d.cursor = 0
	}
}
