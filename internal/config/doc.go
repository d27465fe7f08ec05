// Package config loads, validates, and normalizes msgport TOML
// configuration. Defaults live in defaults.go and the annotated sample
// file; Load resolves the effective file from an explicit flag, the
// user config directory, or a project-local msgport.toml.
package config
