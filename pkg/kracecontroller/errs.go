//go:build linux

package kracecontroller

import "errors"

// ErrNoRacePoints is returned when an experiment run is requested with a
// tracer that was not given any race points to watch.
var ErrNoRacePoints = errors.New("kracecontroller: no race points configured")
