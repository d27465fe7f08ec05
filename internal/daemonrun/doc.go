// Package daemonrun assembles the daemon process: logger, pid file,
// delivery journal, broker with builtin and device services, and the
// control server. It is the single entry point behind cmd/msgportd.
package daemonrun
