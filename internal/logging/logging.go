// Package logging centralizes the structured logging used across the
// harness, tracer, sampler, and controller. It wraps log/slog the same way
// cmd/consumption/main.go calls slog directly, but with five cooperating
// subsystems instead of one flat main, every component gets its own
// "component"-scoped logger instead of repeating With() at every call site.
package logging

import "log/slog"

// For returns a logger scoped to the named component, e.g. "harness",
// "tracer", "sampler", "controller", "config".
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
