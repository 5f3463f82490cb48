package serialmux

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/banshee-data/position.report/internal/feed"
	"github.com/banshee-data/position.report/internal/monitoring"
)

// currentStatus holds the latest status values reported by the vision unit.
// Status lines arrive interleaved with detections on the same stream; the
// map accumulates keys across lines so the admin route shows a full picture.
var (
	statusMu      sync.Mutex
	currentStatus = make(map[string]any)
)

// VisionStatus returns a copy of the accumulated vision-unit status values.
func VisionStatus() map[string]any {
	statusMu.Lock()
	defer statusMu.Unlock()
	out := make(map[string]any, len(currentStatus))
	for k, v := range currentStatus {
		out[k] = v
	}
	return out
}

// HandleStatusLine merges a vision-unit status payload into the accumulated
// state.
func HandleStatusLine(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal status line: %w", err)
	}

	statusMu.Lock()
	for k, v := range values {
		currentStatus[k] = v
	}
	statusMu.Unlock()

	monitoring.Logf("serialmux: status line: %s", payload)
	return nil
}

// HandleLine routes a raw line from the vision unit: detection lines are
// parsed and forwarded to the sink, status lines update the accumulated
// status state, anything else is logged and dropped.
func HandleLine(sink feed.EventSink, source, payload string) error {
	switch feed.ClassifyPayload(payload) {
	case feed.EventTypeDetection:
		ev, err := feed.ParseEvent([]byte(payload))
		if err != nil {
			return fmt.Errorf("failed to parse detection line: %w", err)
		}
		if err := sink.HandleDetection(ev, source); err != nil {
			return fmt.Errorf("failed to handle detection: %w", err)
		}
	case feed.EventTypeStatus:
		if err := HandleStatusLine(payload); err != nil {
			return fmt.Errorf("failed to handle status line: %w", err)
		}
	default:
		monitoring.Logf("serialmux: unknown line: %s", payload)
	}
	return nil
}
