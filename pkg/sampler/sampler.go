//go:build linux

// Package sampler implements the epsilon-greedy multi-armed bandit that
// proposes worker offset vectors and consumes each round's (count,
// triggers) outcome, grounded on stats.c/stats.h (alloc_learning_sampler,
// alloc_random_sampler).
package sampler

import "github.com/race-hunter/krace/internal/logging"

// Sampler proposes an offset vector for the next round and consumes the
// round's outcome. num_params = N-1, matching the C sampler interface.
type Sampler interface {
	NumParams() int
	NextParams() []int64
	Report(count, triggers int)
	Close()
}

var log = logging.For("sampler")
