//go:build linux

package tracer

import "errors"

var (
	// ErrNoTracefs is returned when the configured mount point does not
	// look like a mounted tracefs/debugfs instance.
	ErrNoTracefs = errors.New("tracer: tracefs not mounted at configured path")

	// ErrProbeExists is returned when installing a kprobe whose symbol
	// already has one installed; the caller should pick a distinct name.
	ErrProbeExists = errors.New("tracer: kprobe already installed")

	// ErrEventIDNotFound is returned when a probe's format file does not
	// contain an "ID:" line after installation.
	ErrEventIDNotFound = errors.New("tracer: event id not found in format file")
)
