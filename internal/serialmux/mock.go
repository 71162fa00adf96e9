package serialmux

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort is a SerialPorter with scripted reads, captured writes
// and injectable errors.
type TestableSerialPort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer

	// ReadError and WriteError are returned once by the next call.
	ReadError  error
	WriteError error
	CloseError error
	// ShortWrite makes Write report one byte fewer than requested.
	ShortWrite bool

	Closed     bool
	WriteCalls int

	readCond *sync.Cond
}

// NewTestableSerialPort returns an empty port whose reads block until data
// is added or the port is closed.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.readCond = sync.NewCond(&tsp.mu)
	return tsp
}

func (t *TestableSerialPort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.ReadError != nil {
			err := t.ReadError
			t.ReadError = nil
			return 0, err
		}
		if t.ReadBuffer.Len() > 0 {
			return t.ReadBuffer.Read(p)
		}
		if t.Closed {
			return 0, errPortClosed
		}
		t.readCond.Wait()
	}
}

func (t *TestableSerialPort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++
	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	n, err := t.WriteBuffer.Write(p)
	if t.ShortWrite && n > 0 {
		n--
	}
	return n, err
}

func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	t.readCond.Broadcast()
	return t.CloseError
}

// AddReadData queues data for subsequent reads.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
	t.readCond.Broadcast()
}

// SetReadError makes the next read fail with err.
func (t *TestableSerialPort) SetReadError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadError = err
	t.readCond.Broadcast()
}

// GetWrittenData returns a copy of everything written so far.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return bytes.Clone(t.WriteBuffer.Bytes())
}

// LoopbackPort simulates a gimbal controller: every aim line written is
// acknowledged and answered with the gimbal angles it asked for. Other
// lines get an ERR reply.
type LoopbackPort struct {
	*TestableSerialPort
}

// NewLoopbackPort returns a ready LoopbackPort.
func NewLoopbackPort() *LoopbackPort {
	return &LoopbackPort{TestableSerialPort: NewTestableSerialPort()}
}

// OpenLoopback is a SerialPortOpener that ignores path and options.
func OpenLoopback(string, PortOptions) (SerialPorter, error) {
	return NewLoopbackPort(), nil
}

func (l *LoopbackPort) Write(p []byte) (int, error) {
	n, err := l.TestableSerialPort.Write(p)
	if err != nil {
		return n, err
	}
	var reply strings.Builder
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		cmd, perr := ParseAimCommand(line)
		if perr != nil {
			reply.WriteString("ERR,bad command\n")
			continue
		}
		fmt.Fprintf(&reply, "OK\nG,%.3f,%.3f\n", cmd.Yaw, cmd.Pitch)
	}
	l.AddReadData([]byte(reply.String()))
	return n, nil
}
