package feed

import (
	"testing"
	"time"
)

func TestPacketStatsAccumulateAndReset(t *testing.T) {
	ps := NewPacketStats()
	ps.AddPacket(100)
	ps.AddPacket(50)
	ps.AddDropped()
	ps.AddEvents(2)

	time.Sleep(time.Millisecond)
	packets, bytes, dropped, events, duration := ps.GetAndReset()
	if packets != 2 {
		t.Errorf("packets = %d, want 2", packets)
	}
	if bytes != 150 {
		t.Errorf("bytes = %d, want 150", bytes)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if events != 2 {
		t.Errorf("events = %d, want 2", events)
	}
	if duration <= 0 {
		t.Errorf("duration = %v, want > 0", duration)
	}

	// Second read sees reset counters.
	packets, bytes, dropped, events, _ = ps.GetAndReset()
	if packets != 0 || bytes != 0 || dropped != 0 || events != 0 {
		t.Errorf("counters not reset: %d %d %d %d", packets, bytes, dropped, events)
	}
}

func TestFormatWithCommas(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		if got := FormatWithCommas(tt.in); got != tt.want {
			t.Errorf("FormatWithCommas(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
