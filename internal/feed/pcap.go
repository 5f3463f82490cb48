//go:build pcap
// +build pcap

package feed

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/position.report/internal/monitoring"
)

// pcapFileReader implements PCAPReader over a real capture file, stripping
// each packet down to its UDP payload.
type pcapFileReader struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

// NewPCAPFileReader returns a PCAPReader backed by libpcap. Only available
// when building with the 'pcap' build tag.
func NewPCAPFileReader() PCAPReader {
	return &pcapFileReader{}
}

func (r *pcapFileReader) Open(filename string) error {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", filename, err)
	}
	r.handle = handle
	r.source = gopacket.NewPacketSource(handle, handle.LinkType())
	return nil
}

func (r *pcapFileReader) SetBPFFilter(filter string) error {
	if err := r.handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}
	return nil
}

func (r *pcapFileReader) NextPacket() (*PCAPPacket, error) {
	for {
		packet, ok := <-r.source.Packets()
		if !ok || packet == nil {
			return nil, nil // End of capture
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue // Skip non-UDP packets (shouldn't happen with BPF filter)
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		return &PCAPPacket{
			Data:      udp.Payload,
			Timestamp: packet.Metadata().Timestamp,
		}, nil
	}
}

func (r *pcapFileReader) Close() {
	if r.handle != nil {
		r.handle.Close()
	}
}

// ReplayFile replays the detection datagrams recorded in pcapFile, keeping
// only UDP traffic on udpPort, and feeds them to sink.
// This function is only available when building with the 'pcap' build tag.
func ReplayFile(ctx context.Context, pcapFile string, udpPort int, sink EventSink, stats PacketStatsInterface) (int, error) {
	reader := NewPCAPFileReader()
	if err := reader.Open(pcapFile); err != nil {
		return 0, err
	}
	defer reader.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := reader.SetBPFFilter(filter); err != nil {
		return 0, err
	}
	monitoring.Logf("feed: PCAP BPF filter set: %s", filter)

	return Replay(ctx, reader, sink, stats)
}
