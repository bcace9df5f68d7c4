//go:build linux

package kraceconfig

import "errors"

var (
	// ErrNoRacePoints means at least one of opened_by/triggered_by/closed_by
	// named no symbol; each of the three lists needs at least one entry.
	ErrNoRacePoints = errors.New("kraceconfig: at least one race point is required")

	// ErrDescriptionTooLong means a race-point description, including the
	// generated kprobe name, would exceed the kernel's kprobe name limit.
	ErrDescriptionTooLong = errors.New("kraceconfig: race point description too long")

	// ErrUnknownPolicy means a sched entry named a policy that is neither a
	// recognized string nor a valid raw int.
	ErrUnknownPolicy = errors.New("kraceconfig: unknown scheduling policy")

	// ErrCPUOutOfRange means a sched entry's cpus array named a CPU index
	// the kernel's cpu_set_t cannot represent.
	ErrCPUOutOfRange = errors.New("kraceconfig: cpu index out of range")
)
