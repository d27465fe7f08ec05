// Package main hosts the msgport CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into
// control-plane RPC calls against the daemon, plus direct message-plane
// sends for ad hoc testing. It centralizes configuration resolution and
// socket discovery so subcommands can focus on user experience instead
// of wiring.
//
// Keep this package lean: add new functionality by extending the
// internal packages first, then surface it through dedicated commands
// or flags here.
package main
