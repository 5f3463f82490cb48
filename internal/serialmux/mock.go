package serialmux

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/position.report/internal/monitoring"
)

// MockSerialPort implements VisionPorter for testing and -dev mode.
type MockSerialPort struct {
	io.Reader
	io.WriteCloser
}

func (m *MockSerialPort) Write(p []byte) (n int, err error) {
	return m.WriteCloser.Write(p)
}

// NewMockSerialMux creates a SerialMux instance backed by a mock serial port
// that emits mockLine twice a second, simulating a vision unit detection
// stream.
func NewMockSerialMux(mockLine []byte) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	f, err := os.CreateTemp(".", "mock_serial_port")
	if err != nil {
		panic("failed to create temp file for mock serial port: " + err.Error())
	}
	monitoring.Logf("serialmux: writing mock serial port received input at %s", f.Name())

	mockPort := &MockSerialPort{
		Reader:      r,
		WriteCloser: f,
	}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			w.Write(mockLine)
		}
	}()

	return NewSerialMux(mockPort)
}

var errPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory VisionPorter whose reads and writes the
// test drives directly: queue inbound lines with AddReadData, inspect
// outbound commands with GetWrittenData, and force write failures through
// WriteError.
type TestableSerialPort struct {
	mu       sync.Mutex
	dataCond *sync.Cond

	// ReadBuffer holds bytes that subsequent Read calls return.
	ReadBuffer *bytes.Buffer

	// WriteBuffer accumulates everything written to the port.
	WriteBuffer *bytes.Buffer

	// WriteError, when set, is returned by the next Write call and cleared.
	WriteError error

	// BlockReads makes Read wait on an empty buffer instead of returning
	// io.EOF, matching how a quiet serial line behaves.
	BlockReads bool

	// Closed reports whether Close was called.
	Closed bool
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	tsp := &TestableSerialPort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tsp.dataCond = sync.NewCond(&tsp.mu)
	return tsp
}

func (t *TestableSerialPort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.BlockReads {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.dataCond.Wait()
		}
	}
	if t.Closed {
		return 0, errPortClosed
	}
	return t.ReadBuffer.Read(p)
}

func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errPortClosed
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes any blocked readers.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.dataCond.Broadcast()
	return nil
}

// AddReadData queues data for subsequent Read calls.
func (t *TestableSerialPort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.dataCond.Signal()
}

// GetWrittenData returns everything written to the port so far.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}

// Reset clears both buffers and any pending write error.
func (t *TestableSerialPort) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Reset()
	t.WriteBuffer.Reset()
	t.WriteError = nil
	t.Closed = false
}
