package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoSite is returned by GetSite when no site row has been saved yet.
var ErrNoSite = errors.New("no site configured")

// Site is the persisted camera site configuration: mount pose, lens, and
// reporting units. Pointer fields are nullable columns; JSON keys match the
// site config file so /api/site round-trips cleanly.
type Site struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	LatitudeDeg    *float64  `json:"latitude_deg"`
	LongitudeDeg   *float64  `json:"longitude_deg"`
	AltitudeM      *float64  `json:"altitude_m"`
	BearingDeg     *float64  `json:"bearing_deg"`
	SensorWidthPx  *int      `json:"sensor_width_px"`
	SensorHeightPx *int      `json:"sensor_height_px"`
	FocalLengthMM  *float64  `json:"focal_length_mm"`
	SensorWidthMM  *float64  `json:"sensor_width_mm"`
	Units          string    `json:"units"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SaveSite upserts the single site row. Exactly one site exists per
// database; the row ID is fixed at 1.
func (db *DB) SaveSite(site *Site) error {
	now := time.Now().Unix()
	_, err := db.Exec(
		`INSERT INTO site (
			id, name, latitude_deg, longitude_deg, altitude_m, bearing_deg,
			sensor_width_px, sensor_height_px, focal_length_mm, sensor_width_mm,
			units, created_at, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude_deg = excluded.latitude_deg,
			longitude_deg = excluded.longitude_deg,
			altitude_m = excluded.altitude_m,
			bearing_deg = excluded.bearing_deg,
			sensor_width_px = excluded.sensor_width_px,
			sensor_height_px = excluded.sensor_height_px,
			focal_length_mm = excluded.focal_length_mm,
			sensor_width_mm = excluded.sensor_width_mm,
			units = excluded.units,
			updated_at = excluded.updated_at`,
		site.Name, site.LatitudeDeg, site.LongitudeDeg, site.AltitudeM, site.BearingDeg,
		site.SensorWidthPx, site.SensorHeightPx, site.FocalLengthMM, site.SensorWidthMM,
		site.Units, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save site: %w", err)
	}
	site.ID = 1
	return nil
}

// GetSite returns the persisted site configuration, or ErrNoSite if none
// has been saved.
func (db *DB) GetSite() (*Site, error) {
	var site Site
	var createdAtUnix, updatedAtUnix int64

	err := db.QueryRow(
		`SELECT id, name, latitude_deg, longitude_deg, altitude_m, bearing_deg,
			sensor_width_px, sensor_height_px, focal_length_mm, sensor_width_mm,
			units, created_at, updated_at
		FROM site WHERE id = 1`,
	).Scan(
		&site.ID, &site.Name, &site.LatitudeDeg, &site.LongitudeDeg,
		&site.AltitudeM, &site.BearingDeg,
		&site.SensorWidthPx, &site.SensorHeightPx,
		&site.FocalLengthMM, &site.SensorWidthMM,
		&site.Units, &createdAtUnix, &updatedAtUnix,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSite
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	site.CreatedAt = time.Unix(createdAtUnix, 0)
	site.UpdatedAt = time.Unix(updatedAtUnix, 0)
	return &site, nil
}
