package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/position.report/internal/monitoring"
)

// PacketStats tracks detection feed statistics with thread-safe operations.
// It satisfies PacketStatsInterface and is shared by the UDP listener, the
// serial subscriber, and capture replay.
type PacketStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	droppedCount int64
	eventCount   int64
	lastReset    time.Time
}

// NewPacketStats creates a new PacketStats instance
func NewPacketStats() *PacketStats {
	return &PacketStats{
		lastReset: time.Now(),
	}
}

// AddPacket increments packet count and byte count
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddDropped increments the count of payloads rejected by ParseEvent
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// AddEvents increments the count of parsed detection events
func (ps *PacketStats) AddEvents(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.eventCount += int64(count)
}

// GetAndReset returns current stats and resets counters
func (ps *PacketStats) GetAndReset() (packets int64, bytes int64, dropped int64, events int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets = ps.packetCount
	bytes = ps.byteCount
	dropped = ps.droppedCount
	events = ps.eventCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.droppedCount = 0
	ps.eventCount = 0
	ps.lastReset = now

	return
}

// LogStats logs a formatted rate line and resets the counters. Quiet when
// nothing arrived during the interval.
func (ps *PacketStats) LogStats() {
	packets, bytes, dropped, events, duration := ps.GetAndReset()
	if packets == 0 && dropped == 0 {
		return
	}

	packetsPerSec := float64(packets) / duration.Seconds()
	kbPerSec := float64(bytes) / duration.Seconds() / 1024

	logMsg := fmt.Sprintf("feed stats (/sec): %.1f KB, %.1f packets, %s events",
		kbPerSec, packetsPerSec, FormatWithCommas(events))
	if dropped > 0 {
		logMsg += fmt.Sprintf(", %d dropped on parse", dropped)
	}
	monitoring.Logf("%s", logMsg)
}

// FormatWithCommas formats a number with thousands separators
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
