package serialmux

import (
	"errors"
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}

	got, err = PortOptions{BaudRate: 9600, Parity: " even "}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Parity != "E" || got.BaudRate != 9600 {
		t.Errorf("Normalize() = %+v", got)
	}

	for _, bad := range []PortOptions{
		{DataBits: 9},
		{DataBits: 4},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) expected error", bad)
		}
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		opts     PortOptions
		stopBits serial.StopBits
		parity   serial.Parity
	}{
		{PortOptions{}, serial.OneStopBit, serial.NoParity},
		{PortOptions{StopBits: 2, Parity: "O"}, serial.TwoStopBits, serial.OddParity},
		{PortOptions{StopBits: 1, Parity: "E"}, serial.OneStopBit, serial.EvenParity},
	}
	for _, tt := range tests {
		mode, err := tt.opts.SerialMode()
		if err != nil {
			t.Fatalf("SerialMode(%+v): %v", tt.opts, err)
		}
		if mode.StopBits != tt.stopBits || mode.Parity != tt.parity {
			t.Errorf("SerialMode(%+v) = %+v", tt.opts, mode)
		}
	}

	if _, err := (PortOptions{DataBits: 2}).SerialMode(); err == nil {
		t.Error("expected error for invalid options")
	}
}

func TestNewSerialMuxWithOpener(t *testing.T) {
	port := NewTestableSerialPort()
	var gotPath string
	var gotMode *serial.Mode
	open := func(path string, mode *serial.Mode) (SerialPorter, error) {
		gotPath, gotMode = path, mode
		return port, nil
	}

	mux, err := NewSerialMuxWithOpener("/dev/ttyUSB0", PortOptions{BaudRate: 57600}, open)
	if err != nil {
		t.Fatalf("NewSerialMuxWithOpener: %v", err)
	}
	if gotPath != "/dev/ttyUSB0" || gotMode.BaudRate != 57600 || gotMode.DataBits != 8 {
		t.Errorf("opened %q with %+v", gotPath, gotMode)
	}
	if err := mux.SendCommand("hello"); err != nil {
		t.Fatal(err)
	}
	if string(port.GetWrittenData()) != "hello\n" {
		t.Errorf("written = %q", port.GetWrittenData())
	}

	failing := func(string, *serial.Mode) (SerialPorter, error) { return nil, errors.New("no such device") }
	if _, err := NewSerialMuxWithOpener("/dev/null", PortOptions{}, failing); err == nil {
		t.Error("expected open error")
	}
	if _, err := NewSerialMuxWithOpener("/dev/null", PortOptions{Parity: "x"}, open); err == nil {
		t.Error("expected options error")
	}
}
