// Package control exposes the daemon over JSON-RPC Unix sockets and
// ships the matching client used by the CLI.
//
// It owns the control socket lifecycle, the request/response DTOs, and
// the conversions between broker and journal models and their wire
// forms. The message plane stays on its own socket; control traffic
// never mixes with service deliveries.
package control
