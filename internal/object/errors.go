package object

import "errors"

// Terminal connection conditions delivered to event handlers. These are
// singletons: handlers distinguish them with errors.Is or direct
// identity comparison, never by message text.
var (
	// ErrConnectionInvalid means the peer crashed or cancelled the
	// connection. The connection cannot be used again; tear down any
	// associated state.
	ErrConnectionInvalid = errors.New("connection invalid")

	// ErrConnectionInterrupted means delivery was disrupted but the
	// named service may become reachable again.
	ErrConnectionInterrupted = errors.New("connection interrupted")

	// ErrConnectionTerminated means the connection was closed locally
	// and per-connection cleanup should run.
	ErrConnectionTerminated = errors.New("connection terminated")
)

// Sentinels enumerates the terminal conditions in a stable order.
func Sentinels() []error {
	return []error{ErrConnectionInvalid, ErrConnectionInterrupted, ErrConnectionTerminated}
}
