package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/geoloc"
	"github.com/banshee-data/position.report/internal/testutil"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }

func testSiteConfig() *config.SiteConfig {
	return &config.SiteConfig{
		Name:           strPtr("test-site"),
		LatitudeDeg:    floatPtr(51.5),
		LongitudeDeg:   floatPtr(-0.12),
		AltitudeM:      floatPtr(10.0),
		BearingDeg:     floatPtr(90.0),
		SensorWidthPx:  intPtr(1920),
		SensorHeightPx: intPtr(1080),
		FocalLengthMM:  floatPtr(22.0),
		SensorWidthMM:  floatPtr(7.0),
		Units:          strPtr("m"),
	}
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "api_test.db")
	database, err := db.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.MigrateUp("../../migrations"); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(testSiteConfig(), database), database
}

func postLocate(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	return w
}

func TestLocateGeographic(t *testing.T) {
	server, _ := setupTestServer(t)

	// Box centered on the sensor: the target bearing matches the camera
	// bearing and the longitude shifts east of the site.
	w := postLocate(t, server, "/api/locate", LocateRequest{
		Classification: "car",
		CenterXPx:      960,
		CenterYPx:      540,
		WidthPx:        200,
		HeightPx:       100,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp GeographicResponse
	testutil.DecodeJSONBody(t, w, &resp)
	if math.Abs(resp.BearingDeg-90.0) > 1e-9 {
		t.Errorf("BearingDeg = %f, want 90.0", resp.BearingDeg)
	}
	if !resp.KnownHeight {
		t.Error("Expected known_height true for car")
	}
	if math.Abs(resp.AssumedHeightM-1.6) > 1e-9 {
		t.Errorf("AssumedHeightM = %f, want 1.6", resp.AssumedHeightM)
	}
	if resp.DistanceM <= 0 {
		t.Errorf("DistanceM = %f, want positive", resp.DistanceM)
	}
	if resp.LongitudeDeg <= -0.12 {
		t.Errorf("LongitudeDeg = %f, want east of -0.12", resp.LongitudeDeg)
	}
	if math.Abs(resp.LatitudeDeg-51.5) > 0.001 {
		t.Errorf("LatitudeDeg = %f, want near 51.5 for a due-east target", resp.LatitudeDeg)
	}

	// The handler must agree with the library for the same inputs.
	cfg := testSiteConfig()
	loc := geoloc.NewLocator(cfg.HeightTable())
	latRad, lonRad := loc.EventPosition(geoloc.Detection{
		Classification: "car",
		CenterXPx:      960,
		CenterYPx:      540,
		WidthPx:        200,
		HeightPx:       100,
	}, cfg.Observer(), cfg.Intrinsics())
	if math.Abs(resp.LatitudeDeg-latRad*180/math.Pi) > 1e-9 ||
		math.Abs(resp.LongitudeDeg-lonRad*180/math.Pi) > 1e-9 {
		t.Errorf("handler position (%f, %f) disagrees with locator (%f, %f)",
			resp.LatitudeDeg, resp.LongitudeDeg, latRad*180/math.Pi, lonRad*180/math.Pi)
	}
}

func TestLocateRecordsDetectionAndPosition(t *testing.T) {
	server, database := setupTestServer(t)

	w := postLocate(t, server, "/api/locate", LocateRequest{
		Classification: "person",
		CenterXPx:      500,
		CenterYPx:      400,
		WidthPx:        60,
		HeightPx:       180,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	detections, err := database.Detections(db.DetectionFilter{Source: "api"})
	if err != nil {
		t.Fatalf("Failed to query detections: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("Expected 1 recorded detection, got %d", len(detections))
	}
	if detections[0].Classification != "person" {
		t.Errorf("Classification = %q, want person", detections[0].Classification)
	}

	positions, err := database.Positions(db.PositionFilter{Mode: db.ModeGeographic})
	if err != nil {
		t.Fatalf("Failed to query positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected 1 recorded position, got %d", len(positions))
	}
	if positions[0].DetectionID != detections[0].ID {
		t.Errorf("Position detection_id = %q, want %q", positions[0].DetectionID, detections[0].ID)
	}
	if positions[0].LatitudeDeg == nil || positions[0].LongitudeDeg == nil {
		t.Error("Expected geographic position to carry lat/lon")
	}
}

func TestLocateLocal(t *testing.T) {
	server, database := setupTestServer(t)

	w := postLocate(t, server, "/api/locate/local", LocateRequest{
		Classification: "person",
		CenterXPx:      960,
		CenterYPx:      540,
		WidthPx:        60,
		HeightPx:       180,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp LocalResponse
	testutil.DecodeJSONBody(t, w, &resp)
	// Centered box, camera bearing 90 degrees: the target sits along +X.
	if resp.XM <= 0 {
		t.Errorf("XM = %f, want positive for a due-east target", resp.XM)
	}
	if math.Abs(resp.YM) > 1e-6 {
		t.Errorf("YM = %f, want ~0 for a centered box", resp.YM)
	}
	if math.Abs(resp.AssumedHeightM-1.7) > 1e-9 {
		t.Errorf("AssumedHeightM = %f, want 1.7", resp.AssumedHeightM)
	}

	positions, err := database.Positions(db.PositionFilter{Mode: db.ModeLocal})
	if err != nil {
		t.Fatalf("Failed to query positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected 1 recorded local position, got %d", len(positions))
	}
	if positions[0].XM == nil || positions[0].ZM == nil {
		t.Error("Expected local position to carry XYZ")
	}
}

func TestLocateOverrides(t *testing.T) {
	server, _ := setupTestServer(t)

	// Overriding the bearing must rotate the answer without touching the
	// stored site config.
	w := postLocate(t, server, "/api/locate", LocateRequest{
		Classification: "car",
		CenterXPx:      960,
		CenterYPx:      540,
		WidthPx:        200,
		HeightPx:       100,
		BearingDeg:     floatPtr(180.0),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp GeographicResponse
	testutil.DecodeJSONBody(t, w, &resp)
	if math.Abs(resp.BearingDeg-180.0) > 1e-9 {
		t.Errorf("BearingDeg = %f, want 180.0", resp.BearingDeg)
	}
	if resp.LatitudeDeg >= 51.5 {
		t.Errorf("LatitudeDeg = %f, want south of 51.5 for a due-south target", resp.LatitudeDeg)
	}
	if site := server.Site(); site.GetBearingDeg() != 90.0 {
		t.Errorf("Site bearing changed to %f, want 90.0 untouched", site.GetBearingDeg())
	}
}

func TestLocateValidation(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name string
		req  LocateRequest
	}{
		{"zero box height", LocateRequest{Classification: "car", CenterXPx: 100, CenterYPx: 100, WidthPx: 50}},
		{"negative box height", LocateRequest{Classification: "car", CenterXPx: 100, CenterYPx: 100, WidthPx: 50, HeightPx: -5}},
		{"missing class", LocateRequest{CenterXPx: 100, CenterYPx: 100, WidthPx: 50, HeightPx: 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postLocate(t, server, "/api/locate", tt.req)
			testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
		})
	}
}

func TestLocateMethodNotAllowed(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/locate", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestHealthz(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
