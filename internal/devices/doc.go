// Package devices publishes kernel udev events to message-plane
// subscribers. It is registered as the built-in port.devices service
// when enabled in configuration.
package devices
