//go:build linux

package sampler

// RandomSampler draws a uniform random point across the whole offset
// domain every round and never updates anything, grounded on stats.c's
// alloc_random_sampler — used by the notrace loop for blind hammering.
type RandomSampler struct {
	domain Domain
	rng    randSource
}

// NewRandomSampler builds a domain from durations and returns a sampler
// with no learning state.
func NewRandomSampler(durations []int64) *RandomSampler {
	return &RandomSampler{
		domain: NewDomain(durations),
		rng:    seedRNG(),
	}
}

func (s *RandomSampler) NumParams() int { return s.domain.NumDims() }

func (s *RandomSampler) NextParams() []int64 {
	point := make([]int64, s.domain.NumDims())
	for i := range point {
		span := s.domain.Right[i] - s.domain.Left[i]
		point[i] = int64(s.domain.Left[i] + s.rng.Float64()*span)
	}
	return point
}

func (s *RandomSampler) Report(count, triggers int) {}

func (s *RandomSampler) Close() {}
