// Package device defines the line transports the telemetry link runs over:
// a physical serial port and a file replay that simulates a live downlink.
package device

import "errors"

var (
	// ErrNoData is returned by ReadLine when no complete line arrived within the read window.
	ErrNoData = errors.New("no data available")
	// ErrEndOfReplay is returned once a replay file has been fully read.
	ErrEndOfReplay = errors.New("end of replay")
	// ErrNotOpen is returned when a transport is used before Open.
	ErrNotOpen = errors.New("transport not open")
)

// Transport is a line-oriented connection owned by exactly one link worker.
// Implementations need not be safe for concurrent use.
type Transport interface {
	// Open acquires the underlying resource.
	Open() error

	// ReadLine returns the next line including its terminator. It returns
	// ErrNoData when nothing is available yet; any other error is a fault.
	ReadLine() (string, error)

	// Write sends raw bytes to the remote device.
	Write(p []byte) error

	// Close releases the underlying resource. Safe to call when not open.
	Close() error

	// Noun names the transport in status lines ("port" or "file").
	Noun() string
}
