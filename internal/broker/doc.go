// Package broker implements the msgport daemon core: it owns the
// message-plane Unix socket, routes sessions to named services, pushes
// service events back to subscribed peers, and journals deliveries.
// Single-instance execution is enforced with a file lock.
package broker
