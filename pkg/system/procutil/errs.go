package procutil

import "errors"

var (
	// ErrNoComms means ResolveComms was called with no names to match.
	ErrNoComms = errors.New("procutil: no comms requested")

	// ErrCommNotFound means a requested comm matched no running process.
	ErrCommNotFound = errors.New("procutil: comm not found")
)
