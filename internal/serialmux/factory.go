package serialmux

import (
	"go.bug.st/serial"
)

// PortOpener opens the device at path with the given mode.
type PortOpener func(path string, mode *serial.Mode) (SerialPorter, error)

// OpenRealPort opens a hardware serial port.
func OpenRealPort(path string, mode *serial.Mode) (SerialPorter, error) {
	return serial.Open(path, mode)
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return NewSerialMuxWithOpener(path, opts, OpenRealPort)
}

// NewSerialMuxWithOpener validates opts and opens path through open.
func NewSerialMuxWithOpener(path string, opts PortOptions, open PortOpener) (*SerialMux[SerialPorter], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewSerialMux[SerialPorter](port), nil
}
