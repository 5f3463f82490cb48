// Command replay-server replays a captured UDP detection stream from a pcap
// file, forwarding each detection to a live daemon's UDP listener. Useful for
// reprocessing field captures against a new site configuration.
//
// Requires building with -tags=pcap; the untagged build reports an error at
// startup.
//
// Usage:
//
//	go run -tags=pcap ./cmd/tools/replay-server -pcap capture.pcap -forward localhost:9000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/position.report/internal/feed"
)

var (
	pcapFile = flag.String("pcap", "", "pcap capture to replay (required)")
	udpPort  = flag.Int("port", 9000, "UDP port the capture's detections were sent to")
	forward  = flag.String("forward", "", "forward detections to this UDP address (empty prints them)")
	interval = flag.Duration("interval", 0, "delay between replayed detections")
)

// forwardSink re-encodes each parsed detection and sends it on as a datagram.
type forwardSink struct {
	conn     net.Conn
	interval time.Duration
}

func (s *forwardSink) HandleDetection(ev feed.Event, source string) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if s.conn != nil {
		if _, err := s.conn.Write(line); err != nil {
			return err
		}
	} else {
		log.Printf("%s", line)
	}
	if s.interval > 0 {
		time.Sleep(s.interval)
	}
	return nil
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}

	sink := &forwardSink{interval: *interval}
	if *forward != "" {
		conn, err := net.Dial("udp", *forward)
		if err != nil {
			log.Fatalf("Failed to dial %s: %v", *forward, err)
		}
		defer conn.Close()
		sink.conn = conn
		log.Printf("Forwarding detections to %s", *forward)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats := feed.NewPacketStats()
	n, err := feed.ReplayFile(ctx, *pcapFile, *udpPort, sink, stats)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	log.Printf("Replayed %d packets from %s", n, *pcapFile)
}
