// Package daemonctl orchestrates the msgportd process from the CLI:
// launching it detached, waiting for the control socket, and stopping
// or force-killing it when graceful shutdown fails.
package daemonctl
