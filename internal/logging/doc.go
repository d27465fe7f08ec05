// Package logging builds slog loggers with console and JSON handlers
// and defines the attribute helpers and field keys the daemon uses.
package logging
