// Package procutil provides the small amount of /proc inspection the
// tracer setup needs to attach to target processes by name: checking whether a
// PID is still alive, and resolving a configured list of comms to the PIDs
// currently running under them.
package procutil
