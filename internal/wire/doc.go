// Package wire frames typed message objects for transport over a
// stream. Each frame carries a kind, a correlation id, an optional
// service name, and a tag-encoded object tree. Decode enforces frame
// size and object depth limits so a misbehaving peer cannot exhaust the
// reader.
package wire
