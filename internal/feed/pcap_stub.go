//go:build !pcap
// +build !pcap

package feed

import (
	"context"
	"fmt"
)

// ReplayFile is a stub implementation when PCAP support is disabled
// Build with -tags=pcap to enable capture file replay
func ReplayFile(ctx context.Context, pcapFile string, udpPort int, sink EventSink, stats PacketStatsInterface) (int, error) {
	return 0, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable capture replay")
}
