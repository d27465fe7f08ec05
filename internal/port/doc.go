// Package port is the client side of msgport: it connects to a named
// service hosted by the daemon and exchanges typed message objects.
//
// Replies and unsolicited events arrive through the registered
// EventHandler; terminal connection conditions surface there as the
// object package sentinels. Send offers fire-and-forget or a
// wait-for-completion barrier. The package adds no retry, backoff, or
// pooling; that policy belongs to the caller.
package port
