package feed

import (
	"context"
	"fmt"

	"github.com/banshee-data/position.report/internal/monitoring"
)

// Replay drains reader and feeds every recovered detection payload to
// sink with source "replay". Parse failures are counted as drops and
// skipped, the same policy as the live listener. Returns the number of
// events delivered.
func Replay(ctx context.Context, reader PCAPReader, sink EventSink, stats PacketStatsInterface) (int, error) {
	if stats == nil {
		stats = &noopStats{}
	}

	delivered := 0
	packetCount := 0
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("feed: replay stopping due to context cancellation (processed %d packets)", packetCount)
			return delivered, ctx.Err()
		default:
		}

		pkt, err := reader.NextPacket()
		if err != nil {
			return delivered, fmt.Errorf("failed to read packet %d: %w", packetCount+1, err)
		}
		if pkt == nil {
			// End of capture
			monitoring.Logf("feed: replay complete, %d packets, %d events delivered", packetCount, delivered)
			return delivered, nil
		}
		packetCount++
		stats.AddPacket(len(pkt.Data))

		ev, err := ParseEvent(pkt.Data)
		if err != nil {
			stats.AddDropped()
			continue
		}
		if ev.CapturedAtNano == 0 && !pkt.Timestamp.IsZero() {
			// Prefer capture timestamps when the unit did not stamp the event.
			ev.CapturedAtNano = pkt.Timestamp.UnixNano()
		}
		stats.AddEvents(1)

		if sink != nil {
			if err := sink.HandleDetection(ev, "replay"); err != nil {
				monitoring.Logf("feed: replay sink error on packet %d: %v", packetCount, err)
			}
		}
		delivered++
	}
}
