package serialmux

import (
	"go.bug.st/serial"
)

// OpenSerialPort is the SerialPortOpener for real hardware.
func OpenSerialPort(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// NewRealSerialMux opens the port at path and wraps it in a SerialMux.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return OpenSerialMux(OpenSerialPort, path, opts)
}

// OpenSerialMux opens a port with opener and wraps it in a SerialMux.
func OpenSerialMux(opener SerialPortOpener, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	port, err := opener(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux[SerialPorter](port), nil
}
