//go:build linux

package procutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Exists reports whether a given PID currently exists in /proc.
// It simply checks if /proc/<pid> is a valid directory.
func Exists(pid int) bool {
	_, err := os.Stat(fmt.Sprintf("/proc/%d", pid))
	return err == nil
}

// ResolveComms walks /proc and returns the PID of every process whose
// comm matches one of the requested names. Each name must match at least
// one PID, or ErrCommNotFound is returned naming the first miss; names
// that match more than one PID contribute all matching PIDs.
//
// This is how a target process is attached by name instead of by PID: the
// caller supplies the comms from the race-point configuration and the
// resulting PIDs are what get registered with the tracer.
func ResolveComms(comms []string) ([]int, error) {
	if len(comms) == 0 {
		return nil, ErrNoComms
	}

	wanted := make(map[string]bool, len(comms))
	for _, c := range comms {
		wanted[c] = true
	}
	found := make(map[string]bool, len(comms))

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("procutil: read /proc: %w", err)
	}

	var pids []int
	for _, ent := range entries {
		pid, err := strconv.Atoi(ent.Name())
		if err != nil {
			continue
		}
		comm, err := readComm(pid)
		if err != nil {
			continue
		}
		if wanted[comm] {
			found[comm] = true
			pids = append(pids, pid)
		}
	}

	for name := range wanted {
		if !found[name] {
			return nil, fmt.Errorf("%w: %s", ErrCommNotFound, name)
		}
	}
	return pids, nil
}

func readComm(pid int) (string, error) {
	b, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
