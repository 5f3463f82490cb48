package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/banshee-data/position.report/internal/geoloc"
)

// Event type tokens returned by ClassifyPayload.
const (
	EventTypeDetection = "detection"
	EventTypeStatus    = "status"
	EventTypeUnknown   = "unknown"
)

// Event is a single detection report from the vision unit: one JSON object
// per line or datagram. Pixel coordinates follow the sensor convention
// (origin top-left, y growing downward).
type Event struct {
	Classification string `json:"class"`
	CenterXPx      int    `json:"cx"`
	CenterYPx      int    `json:"cy"`
	WidthPx        int    `json:"w"`
	HeightPx       int    `json:"h"`
	CapturedAtNano int64  `json:"captured_at,omitempty"`
}

// EventSink receives parsed detection events. The daemon's pipeline
// implements this; source identifies the transport the event arrived on
// (serial, udp, replay, api).
type EventSink interface {
	HandleDetection(ev Event, source string) error
}

// ClassifyPayload inspects a raw payload and returns a simple event type
// token. The classification is intentionally conservative: the vision unit
// interleaves detection lines with status lines on the same stream.
func ClassifyPayload(payload string) string {
	if strings.Contains(payload, `"class"`) {
		return EventTypeDetection
	}
	if strings.Contains(payload, "uptime") || strings.Contains(payload, "temperature") {
		return EventTypeStatus
	}
	return EventTypeUnknown
}

// ParseEvent decodes a vision-unit detection payload and checks the
// estimator preconditions. The box height must be positive (the distance
// estimate divides by it) and the classification non-empty. Box center
// coordinates are not range-checked: off-sensor centers are legal inputs
// and map linearly to out-of-frame bearings.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if len(payload) == 0 {
		return ev, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal detection: %w", err)
	}
	if ev.Classification == "" {
		return ev, fmt.Errorf("detection missing classification")
	}
	if ev.HeightPx <= 0 {
		return ev, fmt.Errorf("detection height must be positive, got %d", ev.HeightPx)
	}
	return ev, nil
}

// Detection converts the event into the estimator's input shape.
func (e Event) Detection() geoloc.Detection {
	return geoloc.Detection{
		Classification: e.Classification,
		CenterXPx:      e.CenterXPx,
		CenterYPx:      e.CenterYPx,
		WidthPx:        e.WidthPx,
		HeightPx:       e.HeightPx,
	}
}
