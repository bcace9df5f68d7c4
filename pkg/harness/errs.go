//go:build linux

package harness

import "errors"

// ErrShutdown is returned by RunBatch when the harness was shut down
// (cooperative stop) before the requested batch of rounds completed.
var ErrShutdown = errors.New("harness: shutdown in progress")
