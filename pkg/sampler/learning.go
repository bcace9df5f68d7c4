//go:build linux

package sampler

import (
	"sort"
	"sync"
)

// topN is the width of the top-ranked window the proposal step samples
// from, mirroring stats.c's tree_top_n.
const topN = 10

// probabilityFloor is the threshold below which tree_top_n's walk may stop
// early, mirroring stats.c's `0.0001` literal.
const probabilityFloor = 0.0001

// LearningSampler is an epsilon-greedy multi-armed bandit over a
// bucketized offset domain, grounded on stats.c's learning_sampler.
//
// The ordered-by-probability view the original keeps in a GTree keyed by
// (probability desc, address desc) is reimplemented here as a mutex-guarded
// slice re-sorted on every report (see REDESIGN FLAG "Bucket ordering":
// bucket-id replaces pointer address as the tie-break key, and no
// sorted-multimap library appears anywhere in the example corpus, so a
// sort-on-write slice is the stdlib-justified choice at this bucket count).
type LearningSampler struct {
	mu              sync.Mutex
	buckets         []*bucket
	ordered         []*bucket
	rng             randSource
	exploreProb     float64
	foundSomething  bool
	currentBucket   *bucket
}

// NewLearningSampler builds the bucket grid from durations (per-worker
// baseline durations, length N) and returns a sampler ready to propose
// offsets for the N-1 non-reference workers.
func NewLearningSampler(durations []int64, exploreProbability float64) *LearningSampler {
	dom := NewDomain(durations)
	buckets := buildBuckets(dom)
	ordered := make([]*bucket, len(buckets))
	copy(ordered, buckets)

	return &LearningSampler{
		buckets:     buckets,
		ordered:     ordered,
		rng:         seedRNG(),
		exploreProb: exploreProbability,
	}
}

func (s *LearningSampler) NumParams() int {
	if len(s.buckets) == 0 {
		return 0
	}
	return len(s.buckets[0].left)
}

// NextParams implements stats.c's learning_next_params: explore uniformly
// at random (always, until something has been found; otherwise with
// probability exploreProb), else exploit the top-ranked buckets.
func (s *LearningSampler) NextParams() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b *bucket
	if !s.foundSomething || s.rng.Float64() < s.exploreProb {
		b = s.buckets[s.rng.Intn(len(s.buckets))]
	} else {
		b = s.pickFromTop()
	}
	s.currentBucket = b
	return b.samplePoint(s.rng)
}

// pickFromTop implements stats.c's tree_top_n + random_top_bucket: walk the
// top `topN` buckets by rank, stopping early only once at least one bucket
// has been accepted and the next candidate's probability is negligible —
// preserving the "always return something" contract from an all-zero grid.
func (s *LearningSampler) pickFromTop() *bucket {
	n := topN
	if n > len(s.ordered) {
		n = len(s.ordered)
	}

	var window []*bucket
	for i := 0; i < n; i++ {
		cand := s.ordered[i]
		if cand.raceProbability < probabilityFloor && len(window) > 0 {
			break
		}
		window = append(window, cand)
	}
	return window[s.rng.Intn(len(window))]
}

// Report implements stats.c's learning_report: re-weight the current
// bucket's race_probability as a sample-count-weighted running mean, then
// re-sort the ordered view since its rank key just changed.
func (s *LearningSampler) Report(count, triggers int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentBucket == nil || count < 1 {
		return
	}
	s.currentBucket.update(count, triggers)
	if triggers > 0 {
		s.foundSomething = true
	}

	sort.Slice(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if a.raceProbability != b.raceProbability {
			return a.raceProbability > b.raceProbability
		}
		return a.id > b.id
	})
}

func (s *LearningSampler) Close() {}
