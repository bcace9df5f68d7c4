//go:build linux

package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOffsets_S2(t *testing.T) {
	sleeps := NormalizeOffsets([]int64{-500, 300})
	assert.Equal(t, []int64{0, 800, 500}, sleeps)
}

func TestNormalizeOffsets_AllPositive(t *testing.T) {
	// min(0, min(P)) == 0 when every P[i] >= 0, so sleeps == P, plus 0 for the reference.
	sleeps := NormalizeOffsets([]int64{10, 20, 30})
	assert.Equal(t, []int64{10, 20, 30, 0}, sleeps)
}

func TestNormalizeOffsets_MinIsAlwaysZero(t *testing.T) {
	cases := [][]int64{
		{-500, 300},
		{10, 20, 30},
		{0, 0, 0},
		{-1, -2, -3},
	}
	for _, params := range cases {
		sleeps := NormalizeOffsets(params)
		min := sleeps[0]
		for _, s := range sleeps {
			assert.GreaterOrEqual(t, s, int64(0))
			if s < min {
				min = s
			}
		}
		assert.Equal(t, int64(0), min)
	}
}
