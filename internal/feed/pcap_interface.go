package feed

import (
	"errors"
	"sync"
	"time"
)

// PCAPPacket represents a single detection datagram recovered from a
// capture file. Data holds the UDP payload with link, IP and UDP headers
// already stripped.
type PCAPPacket struct {
	Data      []byte
	Timestamp time.Time
}

// PCAPReader defines an interface for reading detection payloads from
// capture files. This abstraction enables unit testing without real PCAP
// files or libpcap.
type PCAPReader interface {
	// Open opens a capture file for reading.
	Open(filename string) error

	// SetBPFFilter restricts reading to packets matching filter.
	SetBPFFilter(filter string) error

	// NextPacket returns the next payload from the capture.
	// Returns nil, nil when no more packets are available.
	NextPacket() (*PCAPPacket, error)

	// Close closes the reader and releases resources.
	Close()
}

// MockPCAPReader implements PCAPReader for testing.
type MockPCAPReader struct {
	mu sync.Mutex

	// Packets holds the packets to return from NextPacket.
	Packets []PCAPPacket

	// ReadIndex tracks the current position in Packets.
	ReadIndex int

	// OpenError is returned by Open if set.
	OpenError error

	// FilterError is returned by SetBPFFilter if set.
	FilterError error

	// OpenedFile records the filename passed to Open.
	OpenedFile string

	// AppliedFilter records the filter passed to SetBPFFilter.
	AppliedFilter string

	// Closed indicates whether Close was called.
	Closed bool
}

// NewMockPCAPReader creates a new MockPCAPReader with the given packets.
func NewMockPCAPReader(packets []PCAPPacket) *MockPCAPReader {
	return &MockPCAPReader{Packets: packets}
}

// Open records the filename and returns any configured error.
func (m *MockPCAPReader) Open(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenedFile = filename
	return m.OpenError
}

// SetBPFFilter records the filter and returns any configured error.
func (m *MockPCAPReader) SetBPFFilter(filter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppliedFilter = filter
	return m.FilterError
}

// NextPacket returns the next packet from the mock buffer.
func (m *MockPCAPReader) NextPacket() (*PCAPPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return nil, errors.New("reader closed")
	}
	if m.ReadIndex >= len(m.Packets) {
		return nil, nil // EOF - no more packets
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return &pkt, nil
}

// Close marks the reader as closed.
func (m *MockPCAPReader) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
}

// AddPacket adds a payload to the mock reader.
func (m *MockPCAPReader) AddPacket(data []byte, timestamp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Packets = append(m.Packets, PCAPPacket{
		Data:      data,
		Timestamp: timestamp,
	})
}
