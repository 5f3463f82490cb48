// Command gen-detections generates sample detection fixtures for testing
// the feed pipeline. Output goes to a file of newline-delimited JSON by
// default; -udp streams the same lines as datagrams to a running listener,
// and -post submits each detection to an API server's /api/locate endpoint.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/banshee-data/position.report/internal/feed"
	"github.com/banshee-data/position.report/internal/httputil"
)

var (
	output   = flag.String("o", "fixtures.txt", "output path for JSON lines")
	count    = flag.Int("n", 100, "number of detections")
	seed     = flag.Int64("seed", 0, "random seed (0 uses the current time)")
	interval = flag.Duration("interval", 0, "delay between emitted detections")
	udpAddr  = flag.String("udp", "", "send datagrams to this UDP address instead of writing a file")
	postURL  = flag.String("post", "", "POST each detection to this API base URL instead of writing a file")
	width    = flag.Int("sensor-width", 1920, "simulated sensor width in pixels")
	height   = flag.Int("sensor-height", 1080, "simulated sensor height in pixels")
)

// classes weights the draw toward road traffic, matching what a street-facing
// camera actually sees.
var classes = []string{"car", "car", "car", "person", "person", "truck", "motorcycle"}

func main() {
	flag.Parse()

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(s))

	emit, closeFn, err := makeEmitter()
	if err != nil {
		log.Fatalf("Failed to set up output: %v", err)
	}
	defer closeFn()

	for i := 0; i < *count; i++ {
		ev := randomDetection(rng)
		line, err := json.Marshal(ev)
		if err != nil {
			log.Fatalf("Failed to encode detection: %v", err)
		}
		if err := emit(line); err != nil {
			log.Fatalf("Failed to emit detection %d: %v", i+1, err)
		}
		if *interval > 0 {
			time.Sleep(*interval)
		}
		if (i+1)%50 == 0 {
			log.Printf("%d/%d detections", i+1, *count)
		}
	}
	log.Printf("Done: %d detections (seed %d)", *count, s)
}

// randomDetection draws a plausible vision-unit event: a bounding box that
// fits inside the sensor, sized so near objects are rare.
func randomDetection(rng *rand.Rand) feed.Event {
	class := classes[rng.Intn(len(classes))]
	h := 20 + rng.Intn(200)
	w := h/2 + rng.Intn(h)
	cx := w/2 + rng.Intn(*width-w)
	cy := h/2 + rng.Intn(*height-h)
	return feed.Event{
		Classification: class,
		CenterXPx:      cx,
		CenterYPx:      cy,
		WidthPx:        w,
		HeightPx:       h,
		CapturedAtNano: time.Now().UnixNano(),
	}
}

func makeEmitter() (func(line []byte) error, func(), error) {
	switch {
	case *udpAddr != "":
		conn, err := net.Dial("udp", *udpAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to dial %s: %w", *udpAddr, err)
		}
		return func(line []byte) error {
			_, err := conn.Write(line)
			return err
		}, func() { conn.Close() }, nil

	case *postURL != "":
		client := httputil.NewStandardClient(&http.Client{Timeout: 10 * time.Second})
		return postEmitter(client, *postURL), func() {}, nil

	default:
		f, err := os.Create(*output)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s: %w", *output, err)
		}
		return func(line []byte) error {
			_, err := f.Write(append(line, '\n'))
			return err
		}, func() { f.Close() }, nil
	}
}

// postEmitter submits each detection to the API's locate endpoint.
func postEmitter(client httputil.HTTPClient, baseURL string) func(line []byte) error {
	url := baseURL + "/api/locate"
	return func(line []byte) error {
		resp, err := client.Post(url, "application/json", bytes.NewReader(line))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("locate returned %s", resp.Status)
		}
		return nil
	}
}
