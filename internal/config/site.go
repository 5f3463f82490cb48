package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/banshee-data/position.report/internal/geoloc"
	"github.com/banshee-data/position.report/internal/security"
	"github.com/banshee-data/position.report/internal/units"
)

// DefaultConfigPath is the path to the canonical site defaults file.
// This is the single source of truth for all default site values.
const DefaultConfigPath = "config/site.defaults.json"

// SiteConfig describes one deployed camera site: where the unit is
// mounted, how it is aimed, and the lens it carries. The schema matches
// the /api/site endpoint so the same JSON serves startup configuration
// and runtime updates.
type SiteConfig struct {
	// Site identity and mount pose
	Name         *string  `json:"name,omitempty"`
	LatitudeDeg  *float64 `json:"latitude_deg,omitempty"`
	LongitudeDeg *float64 `json:"longitude_deg,omitempty"`
	AltitudeM    *float64 `json:"altitude_m,omitempty"`
	BearingDeg   *float64 `json:"bearing_deg,omitempty"`

	// Camera intrinsics
	SensorWidthPx  *int     `json:"sensor_width_px,omitempty"`
	SensorHeightPx *int     `json:"sensor_height_px,omitempty"`
	FocalLengthMM  *float64 `json:"focal_length_mm,omitempty"`
	SensorWidthMM  *float64 `json:"sensor_width_mm,omitempty"`

	// Reporting
	Units    *string `json:"units,omitempty"`
	Timezone *string `json:"timezone,omitempty"`

	// Assumed object heights (classification -> meters), merged over the
	// built-in table. An entry here overrides the built-in value.
	ObjectHeights map[string]float64 `json:"object_heights,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySiteConfig returns a SiteConfig with all fields set to nil.
// Use LoadSiteConfig to load actual values from a site file.
func EmptySiteConfig() *SiteConfig {
	return &SiteConfig{}
}

// LoadSiteConfig loads a SiteConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	cleanPath, err := security.ValidateConfigPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptySiteConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical site defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SiteConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSiteConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SiteConfig) Validate() error {
	if c.LatitudeDeg != nil {
		if *c.LatitudeDeg < -90 || *c.LatitudeDeg > 90 {
			return fmt.Errorf("latitude_deg must be between -90 and 90, got %f", *c.LatitudeDeg)
		}
	}
	if c.LongitudeDeg != nil {
		if *c.LongitudeDeg < -180 || *c.LongitudeDeg > 180 {
			return fmt.Errorf("longitude_deg must be between -180 and 180, got %f", *c.LongitudeDeg)
		}
	}
	if c.SensorWidthPx != nil {
		if *c.SensorWidthPx <= 0 {
			return fmt.Errorf("sensor_width_px must be positive, got %d", *c.SensorWidthPx)
		}
	}
	if c.SensorHeightPx != nil {
		if *c.SensorHeightPx <= 0 {
			return fmt.Errorf("sensor_height_px must be positive, got %d", *c.SensorHeightPx)
		}
	}
	if c.FocalLengthMM != nil {
		if *c.FocalLengthMM <= 0 {
			return fmt.Errorf("focal_length_mm must be positive, got %f", *c.FocalLengthMM)
		}
	}
	if c.SensorWidthMM != nil {
		if *c.SensorWidthMM <= 0 {
			return fmt.Errorf("sensor_width_mm must be positive, got %f", *c.SensorWidthMM)
		}
	}
	if c.Units != nil && *c.Units != "" {
		if !units.IsValid(*c.Units) {
			return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), *c.Units)
		}
	}
	if c.Timezone != nil && *c.Timezone != "" {
		if !units.IsTimezoneValid(*c.Timezone) {
			return fmt.Errorf("timezone must be a valid IANA name, got %q", *c.Timezone)
		}
	}
	for class, height := range c.ObjectHeights {
		if height <= 0 {
			return fmt.Errorf("object_heights[%q] must be positive, got %f", class, height)
		}
	}
	return nil
}

// GetName returns the site name or the default.
func (c *SiteConfig) GetName() string {
	if c.Name == nil || *c.Name == "" {
		return "camera-site"
	}
	return *c.Name
}

// GetLatitudeDeg returns the latitude_deg value or the default.
func (c *SiteConfig) GetLatitudeDeg() float64 {
	if c.LatitudeDeg == nil {
		return 0
	}
	return *c.LatitudeDeg
}

// GetLongitudeDeg returns the longitude_deg value or the default.
func (c *SiteConfig) GetLongitudeDeg() float64 {
	if c.LongitudeDeg == nil {
		return 0
	}
	return *c.LongitudeDeg
}

// GetAltitudeM returns the altitude_m value or the default.
func (c *SiteConfig) GetAltitudeM() float64 {
	if c.AltitudeM == nil {
		return 0
	}
	return *c.AltitudeM
}

// GetBearingDeg returns the bearing_deg value or the default.
func (c *SiteConfig) GetBearingDeg() float64 {
	if c.BearingDeg == nil {
		return 0
	}
	return *c.BearingDeg
}

// GetSensorWidthPx returns the sensor_width_px value or the default.
func (c *SiteConfig) GetSensorWidthPx() int {
	if c.SensorWidthPx == nil {
		return 1920
	}
	return *c.SensorWidthPx
}

// GetSensorHeightPx returns the sensor_height_px value or the default.
func (c *SiteConfig) GetSensorHeightPx() int {
	if c.SensorHeightPx == nil {
		return 1080
	}
	return *c.SensorHeightPx
}

// GetFocalLengthMM returns the focal_length_mm value or the default.
func (c *SiteConfig) GetFocalLengthMM() float64 {
	if c.FocalLengthMM == nil {
		return geoloc.DefaultFocalLengthMM
	}
	return *c.FocalLengthMM
}

// GetSensorWidthMM returns the sensor_width_mm value or the default.
func (c *SiteConfig) GetSensorWidthMM() float64 {
	if c.SensorWidthMM == nil {
		return geoloc.DefaultSensorWidthMM
	}
	return *c.SensorWidthMM
}

// GetUnits returns the units value or the default.
func (c *SiteConfig) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return units.Meters
	}
	return *c.Units
}

// GetTimezone returns the timezone value or UTC.
func (c *SiteConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "UTC"
	}
	return *c.Timezone
}

// Observer builds the camera pose for the estimator. Angles convert from
// degrees to radians here and nowhere else.
func (c *SiteConfig) Observer() geoloc.Observer {
	const degToRad = math.Pi / 180
	return geoloc.Observer{
		BearingRad:   c.GetBearingDeg() * degToRad,
		LatitudeRad:  c.GetLatitudeDeg() * degToRad,
		LongitudeRad: c.GetLongitudeDeg() * degToRad,
		AltitudeM:    c.GetAltitudeM(),
	}
}

// Intrinsics builds the camera intrinsics for the estimator.
func (c *SiteConfig) Intrinsics() geoloc.Intrinsics {
	return geoloc.Intrinsics{
		SensorWidthPx:  c.GetSensorWidthPx(),
		SensorHeightPx: c.GetSensorHeightPx(),
		FocalLengthMM:  c.GetFocalLengthMM(),
		SensorWidthMM:  c.GetSensorWidthMM(),
	}
}

// HeightTable merges the site's object height overrides over the built-in
// table.
func (c *SiteConfig) HeightTable() geoloc.HeightTable {
	table := geoloc.DefaultHeightTable()
	for class, height := range c.ObjectHeights {
		table[class] = height
	}
	return table
}
