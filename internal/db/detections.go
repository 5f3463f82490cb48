package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Detection is one raw bounding-box event as received from a source,
// before any projection. Raw preserves the original payload for replay
// and diagnosis.
type Detection struct {
	ID             string `json:"id"`
	ReceivedAt     int64  `json:"received_at"` // unix nanos
	Source         string `json:"source"`      // serial|udp|replay|api
	Classification string `json:"classification"`
	CenterXPx      int    `json:"center_x_px"`
	CenterYPx      int    `json:"center_y_px"`
	WidthPx        int    `json:"width_px"`
	HeightPx       int    `json:"height_px"`
	Raw            string `json:"raw,omitempty"`
}

// NewDetectionID returns a fresh prefixed detection ID.
func NewDetectionID() string {
	return "det_" + uuid.New().String()
}

// RecordDetection inserts a detection row, filling ID and ReceivedAt when
// unset so callers can pass a bare event.
func (db *DB) RecordDetection(d *Detection) error {
	if d.ID == "" {
		d.ID = NewDetectionID()
	}
	if d.ReceivedAt == 0 {
		d.ReceivedAt = time.Now().UnixNano()
	}

	_, err := db.Exec(
		`INSERT INTO detections (
			id, received_at, source, classification,
			center_x_px, center_y_px, width_px, height_px, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ReceivedAt, d.Source, d.Classification,
		d.CenterXPx, d.CenterYPx, d.WidthPx, d.HeightPx, d.Raw,
	)
	if err != nil {
		return fmt.Errorf("failed to record detection: %w", err)
	}
	return nil
}

// DetectionFilter narrows Detections queries. Zero values mean "no
// constraint"; Limit defaults to 500.
type DetectionFilter struct {
	Classification string
	Source         string
	SinceNanos     int64
	UntilNanos     int64
	Limit          int
}

// Detections returns detection rows newest first, subject to the filter.
func (db *DB) Detections(f DetectionFilter) ([]Detection, error) {
	query := `SELECT id, received_at, source, classification,
		center_x_px, center_y_px, width_px, height_px, raw
		FROM detections`

	var conds []string
	var args []any
	if f.Classification != "" {
		conds = append(conds, "classification = ?")
		args = append(args, f.Classification)
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.SinceNanos != 0 {
		conds = append(conds, "received_at >= ?")
		args = append(args, f.SinceNanos)
	}
	if f.UntilNanos != 0 {
		conds = append(conds, "received_at < ?")
		args = append(args, f.UntilNanos)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " ORDER BY received_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []Detection
	for rows.Next() {
		var d Detection
		if err := rows.Scan(
			&d.ID, &d.ReceivedAt, &d.Source, &d.Classification,
			&d.CenterXPx, &d.CenterYPx, &d.WidthPx, &d.HeightPx, &d.Raw,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return detections, nil
}

// CountDetections returns the total number of stored detections.
func (db *DB) CountDetections() (int64, error) {
	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM detections").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return n, nil
}
