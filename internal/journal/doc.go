// Package journal persists per-delivery records in SQLite so operators
// can inspect recent traffic and per-service volume without attaching a
// debugger to the daemon. Retention is day-based and applied by the
// daemon on startup and by the CLI on demand.
package journal
