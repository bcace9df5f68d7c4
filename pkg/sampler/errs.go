//go:build linux

package sampler

import "errors"

// ErrTooFewWorkers means a domain was requested for fewer than two workers,
// which leaves no non-reference axis to search.
var ErrTooFewWorkers = errors.New("sampler: need at least two workers")
