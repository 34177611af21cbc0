// Package logging assembles structured slog loggers and formatting helpers used
// across hcpextract.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and provides the Relay that lets many extraction workers log
// through a single sink without sharing it. A no-op logger is available for
// tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same field names (component, run_id, worker, pid, task).
package logging
