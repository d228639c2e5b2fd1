// Package serial opens the byte stream that carries mailbox frames between
// the host tools and the daemon or firmware.
package serial

import (
	"io"
	"time"
)

// Port is a byte stream to the far end. Tests substitute net.Pipe ends.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate of the UART next to the bus master
	Baud int

	// ReadTimeout bounds a single Read; zero blocks.
	ReadTimeout time.Duration
}

// DefaultBaud is the UART rate the firmware target is built for.
const DefaultBaud = 115200

// DefaultConfig returns the configuration used when only a device is given.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
