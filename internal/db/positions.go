package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Position modes. A detection may produce one row per mode.
const (
	ModeGeographic = "geographic"
	ModeLocal      = "local"
)

// Position is one estimator output joined to the detection it came from.
// Geographic rows populate LatitudeDeg/LongitudeDeg; local rows populate
// XM/YM/ZM. Distance, bearing, and the assumed height are common to both.
type Position struct {
	ID          string `json:"id"`
	DetectionID string `json:"detection_id"`
	ComputedAt  int64  `json:"computed_at"` // unix nanos
	Mode        string `json:"mode"`

	LatitudeDeg  *float64 `json:"latitude_deg,omitempty"`
	LongitudeDeg *float64 `json:"longitude_deg,omitempty"`
	XM           *float64 `json:"x_m,omitempty"`
	YM           *float64 `json:"y_m,omitempty"`
	ZM           *float64 `json:"z_m,omitempty"`

	Classification string  `json:"classification"`
	DistanceM      float64 `json:"distance_m"`
	BearingDeg     float64 `json:"bearing_deg"`
	AssumedHeightM float64 `json:"assumed_height_m"`
}

// NewPositionID returns a fresh prefixed position ID.
func NewPositionID() string {
	return "pos_" + uuid.New().String()
}

// RecordPosition inserts a position row, filling ID and ComputedAt when
// unset.
func (db *DB) RecordPosition(p *Position) error {
	if p.ID == "" {
		p.ID = NewPositionID()
	}
	if p.ComputedAt == 0 {
		p.ComputedAt = time.Now().UnixNano()
	}
	if p.Mode != ModeGeographic && p.Mode != ModeLocal {
		return fmt.Errorf("invalid position mode %q", p.Mode)
	}

	_, err := db.Exec(
		`INSERT INTO positions (
			id, detection_id, computed_at, mode, classification,
			latitude_deg, longitude_deg, x_m, y_m, z_m,
			distance_m, bearing_deg, assumed_height_m
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DetectionID, p.ComputedAt, p.Mode, p.Classification,
		p.LatitudeDeg, p.LongitudeDeg, p.XM, p.YM, p.ZM,
		p.DistanceM, p.BearingDeg, p.AssumedHeightM,
	)
	if err != nil {
		return fmt.Errorf("failed to record position: %w", err)
	}
	return nil
}

// PositionFilter narrows Positions queries. Zero values mean "no
// constraint"; Limit defaults to 500.
type PositionFilter struct {
	Mode           string
	Classification string
	SinceNanos     int64
	UntilNanos     int64
	Limit          int
}

// Positions returns position rows newest first, subject to the filter.
func (db *DB) Positions(f PositionFilter) ([]Position, error) {
	query := `SELECT id, detection_id, computed_at, mode, classification,
		latitude_deg, longitude_deg, x_m, y_m, z_m,
		distance_m, bearing_deg, assumed_height_m
		FROM positions`

	var conds []string
	var args []any
	if f.Mode != "" {
		conds = append(conds, "mode = ?")
		args = append(args, f.Mode)
	}
	if f.Classification != "" {
		conds = append(conds, "classification = ?")
		args = append(args, f.Classification)
	}
	if f.SinceNanos != 0 {
		conds = append(conds, "computed_at >= ?")
		args = append(args, f.SinceNanos)
	}
	if f.UntilNanos != 0 {
		conds = append(conds, "computed_at < ?")
		args = append(args, f.UntilNanos)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " ORDER BY computed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(
			&p.ID, &p.DetectionID, &p.ComputedAt, &p.Mode, &p.Classification,
			&p.LatitudeDeg, &p.LongitudeDeg, &p.XM, &p.YM, &p.ZM,
			&p.DistanceM, &p.BearingDeg, &p.AssumedHeightM,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return positions, nil
}

// CountPositions returns the total number of stored positions.
func (db *DB) CountPositions() (int64, error) {
	var n int64
	if err := db.QueryRow("SELECT COUNT(*) FROM positions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return n, nil
}
