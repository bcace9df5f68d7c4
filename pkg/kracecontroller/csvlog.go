//go:build linux

package kracecontroller

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/race-hunter/krace/pkg/system/util"
)

// CSVLogger writes one row per controller iteration: the normalized
// per-worker sleep offsets followed by the configured race's count and its
// triggers/count ratio for that iteration, under the header "offset 0,
// ..., offset K, <name> count, <name> triggers".
type CSVLogger struct {
	w             *csv.Writer
	name          string
	numWorkers    int
	headerWritten bool
}

// NewCSVLogger builds a logger for a configuration named name with
// numWorkers columns of offsets.
func NewCSVLogger(out io.Writer, name string, numWorkers int) *CSVLogger {
	return &CSVLogger{w: csv.NewWriter(out), name: name, numWorkers: numWorkers}
}

func (l *CSVLogger) header() []string {
	row := make([]string, 0, l.numWorkers+2)
	for i := 0; i < l.numWorkers; i++ {
		row = append(row, fmt.Sprintf("offset %d", i))
	}
	return append(row, l.name+" count", l.name+" triggers")
}

// WriteRow appends one round's result, writing the header first if this
// is the first row.
func (l *CSVLogger) WriteRow(offsets []int64, count, triggers int) error {
	if !l.headerWritten {
		if err := l.w.Write(l.header()); err != nil {
			return fmt.Errorf("kracecontroller: write csv header: %w", err)
		}
		l.headerWritten = true
	}

	row := make([]string, 0, len(offsets)+2)
	for _, o := range offsets {
		row = append(row, strconv.FormatInt(o, 10))
	}
	// print_data reports the trigger column as triggers/counts, a float
	// that is 0.0 when counts is 0, not the raw trigger tally.
	ratio := util.SafeDiv(float64(triggers), float64(count))
	row = append(row, strconv.Itoa(count), strconv.FormatFloat(ratio, 'f', 6, 64))

	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("kracecontroller: write csv row: %w", err)
	}
	l.w.Flush()
	return l.w.Error()
}
