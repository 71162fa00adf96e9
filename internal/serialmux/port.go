package serialmux

import (
	"io"
)

// SerialPorter is the minimal interface needed for a serial port, so the mux
// can run against test doubles without hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// SerialPortOpener opens a port at path with the given options.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)
