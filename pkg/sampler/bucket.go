//go:build linux

package sampler

import (
	"math"

	"github.com/race-hunter/krace/pkg/system/util"
)

// maxBuckets is the target size of the learning sampler's bucket grid,
// mirroring stats.c's MAX_BUCKETS. Because each axis's bucket count is
// rounded up, the total can come out slightly above it.
const maxBuckets = 100000

// minEdgeLength floors a bucket's per-axis edge length at 100 nanoseconds,
// mirroring stats.c's nth_root floor.
const minEdgeLength = 100.0

// bucket is an axis-aligned box in the offset domain with a running
// race-probability estimate, the Go mirror of stats.c's struct bucket.
// id is a stable integer assigned at construction, used as the tie-break
// key in the ordered structure instead of the original's pointer address
// (see REDESIGN FLAG "Bucket ordering").
type bucket struct {
	id              int
	left            []float64
	right           []float64
	count           int64
	raceProbability float64
}

func (b *bucket) samplePoint(rng randSource) []int64 {
	point := make([]int64, len(b.left))
	for i := range point {
		span := b.right[i] - b.left[i]
		point[i] = int64(b.left[i] + rng.Float64()*span)
	}
	return point
}

// update applies stats.c's learning_report weighted-mean update:
// P <- P + (p - P) * count / (count + N_bucket), then N_bucket += count.
func (b *bucket) update(count, triggers int) {
	if count < 1 {
		return
	}
	p := util.SafeDiv(float64(triggers), float64(count))
	denom := float64(count) + float64(b.count)
	b.raceProbability += (p - b.raceProbability) * float64(count) / denom
	b.raceProbability = util.Clamp01(b.raceProbability)
	b.count += int64(count)
}

// buildBuckets tiles a Domain into a grid of buckets whose edge length is
// chosen so the grid holds about maxBuckets buckets (rounding each axis
// count up can exceed it slightly), grounded on stats.c's get_bucket_shape.
func buildBuckets(dom Domain) []*bucket {
	numDims := dom.NumDims()
	if numDims == 0 {
		return nil
	}

	volume := 1.0
	for i := 0; i < numDims; i++ {
		volume *= dom.Right[i] - dom.Left[i]
	}

	bucketVolume := volume/maxBuckets + 1
	edge := nthRoot(bucketVolume, numDims)
	if edge < minEdgeLength {
		edge = minEdgeLength
	}

	axisCounts := make([]int, numDims)
	for i := 0; i < numDims; i++ {
		span := dom.Right[i] - dom.Left[i]
		axisCounts[i] = int(math.Ceil(span / edge))
		if axisCounts[i] < 1 {
			axisCounts[i] = 1
		}
	}

	total := 1
	for _, c := range axisCounts {
		total *= c
	}

	buckets := make([]*bucket, 0, total)
	idx := make([]int, numDims)
	id := 0
	for {
		left := make([]float64, numDims)
		right := make([]float64, numDims)
		for i := 0; i < numDims; i++ {
			left[i] = dom.Left[i] + float64(idx[i])*edge
			right[i] = left[i] + edge
			if right[i] > dom.Right[i] {
				right[i] = dom.Right[i]
			}
		}
		buckets = append(buckets, &bucket{id: id, left: left, right: right})
		id++

		// mixed-radix increment
		axis := numDims - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] < axisCounts[axis] {
				break
			}
			idx[axis] = 0
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return buckets
}

// nthRoot returns the positive real nth root of x. stats.c solves this with
// a GSL Newton iteration because C has no builtin fractional-exponent power
// for arbitrary n; util.Pow(x, 1/n) (exp(log(x)/n)) covers the same ground here.
func nthRoot(x float64, n int) float64 {
	if x <= 0 {
		return 0
	}
	return util.Pow(x, 1.0/float64(n))
}
