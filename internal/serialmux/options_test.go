package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalise_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalise() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalise_ExplicitValues(t *testing.T) {
	got, err := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}.Normalise()
	if err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}
	want := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}
	if got != want {
		t.Errorf("Normalise() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalise_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"non-standard baud", PortOptions{BaudRate: 12345}},
		{"too few data bits", PortOptions{DataBits: 4}},
		{"too many data bits", PortOptions{DataBits: 9}},
		{"bad stop bits", PortOptions{StopBits: 3}},
		{"bad parity", PortOptions{Parity: "mark"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.opts.Normalise(); err == nil {
				t.Errorf("Normalise(%+v) expected error", tt.opts)
			}
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: DefaultBaudRate, Parity: "none"}) {
		t.Error("defaults should equal their explicit form")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{BaudRate: 19200}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{Parity: "x"}).Equal(PortOptions{Parity: "x"}) {
		t.Error("invalid options are never equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "O"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != 57600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("StopBits = %v, want TwoStopBits", mode.StopBits)
	}
	if mode.Parity != serial.OddParity {
		t.Errorf("Parity = %v, want OddParity", mode.Parity)
	}

	if _, err := (PortOptions{DataBits: 12}).SerialMode(); err == nil {
		t.Error("expected error for invalid options")
	}
}
