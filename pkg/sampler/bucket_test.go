//go:build linux

package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomain_S4(t *testing.T) {
	dom := NewDomain([]int64{100, 200, 300})
	require.Equal(t, 2, dom.NumDims())
	assert.Equal(t, []float64{-600, -600}, dom.Left)
	assert.Equal(t, []float64{500, 400}, dom.Right)
}

func TestNewDomain_SingleWorkerHasNoAxes(t *testing.T) {
	dom := NewDomain([]int64{100})
	assert.Equal(t, 0, dom.NumDims())
	assert.Empty(t, dom.Left)
	assert.Empty(t, dom.Right)
}

func TestBuildBuckets_S4_CountAndEdge(t *testing.T) {
	dom := NewDomain([]int64{100, 200, 300})
	buckets := buildBuckets(dom)

	require.NotEmpty(t, buckets)
	assert.LessOrEqual(t, len(buckets), maxBuckets)

	for _, b := range buckets {
		for i := range b.left {
			edge := b.right[i] - b.left[i]
			assert.GreaterOrEqual(t, edge, 0.0)
		}
	}
}

func TestBucketUpdate_WeightedMean(t *testing.T) {
	b := &bucket{left: []float64{0}, right: []float64{1}}
	b.update(10, 5) // p = 0.5
	assert.InDelta(t, 0.5, b.raceProbability, 1e-9)
	assert.Equal(t, int64(10), b.count)

	b.update(10, 0) // p = 0, blends toward 0
	assert.InDelta(t, 0.25, b.raceProbability, 1e-9)
	assert.Equal(t, int64(20), b.count)
}

func TestBucketUpdate_StaysInRange(t *testing.T) {
	b := &bucket{left: []float64{0}, right: []float64{1}}
	for i := 0; i < 50; i++ {
		b.update(3, 3)
		assert.GreaterOrEqual(t, b.raceProbability, 0.0)
		assert.LessOrEqual(t, b.raceProbability, 1.0)
	}
}

func TestBucketUpdate_SkipsZeroCount(t *testing.T) {
	b := &bucket{left: []float64{0}, right: []float64{1}, raceProbability: 0.3, count: 5}
	b.update(0, 0)
	assert.InDelta(t, 0.3, b.raceProbability, 1e-9)
	assert.Equal(t, int64(5), b.count)
}
