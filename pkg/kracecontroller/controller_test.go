//go:build linux

package kracecontroller

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdjustSamples_S6 mirrors the specification's overrun-adaptation
// scenario: starting samples=100, a round yields entries=50,
// overrun_delta=50, so the next batch shrinks to
// 50*100/((50+50)*2) = 25.
func TestAdjustSamples_S6(t *testing.T) {
	next := adjustSamples(50, 100, 50)
	assert.Equal(t, 25, next)
}

func TestAdjustSamples_FloorsAtMinSamples(t *testing.T) {
	next := adjustSamples(1, 2, 1000)
	assert.Equal(t, minSamples, next)
}

func TestAdjustSamples_NoEntriesNoOverrunKeepsOldSamples(t *testing.T) {
	next := adjustSamples(0, 100, 0)
	assert.Equal(t, 100, next)
}

func TestCSVLogger_WritesHeaderOnceThenRows(t *testing.T) {
	var buf bytes.Buffer
	logger := NewCSVLogger(&buf, "counter", 3)

	require.NoError(t, logger.WriteRow([]int64{0, 800, 500}, 2, 1))
	require.NoError(t, logger.WriteRow([]int64{0, 100, 200}, 0, 0))

	out := buf.String()
	assert.Contains(t, out, "offset 0,offset 1,offset 2,counter count,counter triggers")
	assert.Contains(t, out, "0,800,500,2,0.500000")
	assert.Contains(t, out, "0,100,200,0,0.000000")
}
