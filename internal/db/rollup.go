package db

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PositionRollup aggregates estimated distances for one classification over
// a time bucket. Percentiles use the same empirical quantile definition as
// the rest of the reporting stack.
type PositionRollup struct {
	Classification string  `json:"classification"`
	BucketStart    int64   `json:"bucket_start"` // unix nanos
	BucketEnd      int64   `json:"bucket_end"`
	Count          int64   `json:"count"`
	MinDistanceM   float64 `json:"min_distance_m"`
	MaxDistanceM   float64 `json:"max_distance_m"`
	MeanDistanceM  float64 `json:"mean_distance_m"`
	P50DistanceM   float64 `json:"p50_distance_m"`
	P85DistanceM   float64 `json:"p85_distance_m"`
	P95DistanceM   float64 `json:"p95_distance_m"`
	P98DistanceM   float64 `json:"p98_distance_m"`
}

// RollupPositions computes per-classification distance aggregates for
// positions whose computed_at falls in [sinceNanos, untilNanos). The result
// is ordered by classification; nothing is persisted.
func (db *DB) RollupPositions(sinceNanos, untilNanos int64) ([]PositionRollup, error) {
	rows, err := db.Query(
		`SELECT classification, distance_m FROM positions
		WHERE computed_at >= ? AND computed_at < ?
		ORDER BY classification`,
		sinceNanos, untilNanos,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for rollup: %w", err)
	}
	defer rows.Close()

	distances := make(map[string][]float64)
	for rows.Next() {
		var class string
		var d float64
		if err := rows.Scan(&class, &d); err != nil {
			return nil, fmt.Errorf("failed to scan rollup row: %w", err)
		}
		distances[class] = append(distances[class], d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	classes := make([]string, 0, len(distances))
	for class := range distances {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rollups := make([]PositionRollup, 0, len(classes))
	for _, class := range classes {
		ds := distances[class]
		sort.Float64s(ds)

		r := PositionRollup{
			Classification: class,
			BucketStart:    sinceNanos,
			BucketEnd:      untilNanos,
			Count:          int64(len(ds)),
			MinDistanceM:   ds[0],
			MaxDistanceM:   ds[len(ds)-1],
			MeanDistanceM:  stat.Mean(ds, nil),
			P50DistanceM:   stat.Quantile(0.50, stat.Empirical, ds, nil),
			P85DistanceM:   stat.Quantile(0.85, stat.Empirical, ds, nil),
			P95DistanceM:   stat.Quantile(0.95, stat.Empirical, ds, nil),
			P98DistanceM:   stat.Quantile(0.98, stat.Empirical, ds, nil),
		}
		rollups = append(rollups, r)
	}
	return rollups, nil
}

// SaveRollups persists computed rollups, replacing any prior rollups for
// the same classification and bucket.
func (db *DB) SaveRollups(rollups []PositionRollup) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rollup transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rollups {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO position_rollups (
				classification, bucket_start, bucket_end, count,
				min_distance_m, max_distance_m, mean_distance_m,
				p50_distance_m, p85_distance_m, p95_distance_m, p98_distance_m
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Classification, r.BucketStart, r.BucketEnd, r.Count,
			r.MinDistanceM, r.MaxDistanceM, r.MeanDistanceM,
			r.P50DistanceM, r.P85DistanceM, r.P95DistanceM, r.P98DistanceM,
		); err != nil {
			return fmt.Errorf("failed to save rollup for %s: %w", r.Classification, err)
		}
	}
	return tx.Commit()
}

// RollupAndSave computes rollups for the window ending at now with the given
// width and persists them. Convenience for the daemon's periodic rollup.
func (db *DB) RollupAndSave(now time.Time, width time.Duration) ([]PositionRollup, error) {
	until := now.UnixNano()
	since := now.Add(-width).UnixNano()
	rollups, err := db.RollupPositions(since, until)
	if err != nil {
		return nil, err
	}
	if len(rollups) == 0 {
		return nil, nil
	}
	if err := db.SaveRollups(rollups); err != nil {
		return nil, err
	}
	return rollups, nil
}

// Rollups returns stored rollups newest bucket first.
func (db *DB) Rollups(limit int) ([]PositionRollup, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT classification, bucket_start, bucket_end, count,
			min_distance_m, max_distance_m, mean_distance_m,
			p50_distance_m, p85_distance_m, p95_distance_m, p98_distance_m
		FROM position_rollups
		ORDER BY bucket_start DESC, classification ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var rollups []PositionRollup
	for rows.Next() {
		var r PositionRollup
		if err := rows.Scan(
			&r.Classification, &r.BucketStart, &r.BucketEnd, &r.Count,
			&r.MinDistanceM, &r.MaxDistanceM, &r.MeanDistanceM,
			&r.P50DistanceM, &r.P85DistanceM, &r.P95DistanceM, &r.P98DistanceM,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rollup: %w", err)
		}
		rollups = append(rollups, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rollups, nil
}
