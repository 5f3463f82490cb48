package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/testutil"
)

func seedPosition(t *testing.T, database *db.DB, class, mode string, distanceM float64) {
	t.Helper()
	det := &db.Detection{
		Source:         "udp",
		Classification: class,
		CenterXPx:      100,
		CenterYPx:      100,
		WidthPx:        50,
		HeightPx:       80,
	}
	testutil.AssertNoError(t, database.RecordDetection(det))
	pos := &db.Position{
		DetectionID:    det.ID,
		Mode:           mode,
		Classification: class,
		DistanceM:      distanceM,
		BearingDeg:     90.0,
		AssumedHeightM: 1.6,
	}
	if mode == db.ModeGeographic {
		pos.LatitudeDeg = floatPtr(51.5)
		pos.LongitudeDeg = floatPtr(-0.12)
	} else {
		pos.XM = floatPtr(distanceM)
		pos.YM = floatPtr(0)
		pos.ZM = floatPtr(0)
	}
	testutil.AssertNoError(t, database.RecordPosition(pos))
}

func TestListPositionsUnits(t *testing.T) {
	server, database := setupTestServer(t)
	seedPosition(t, database, "car", db.ModeGeographic, 100.0)

	req := httptest.NewRequest(http.MethodGet, "/api/positions?units=ft", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Units     string        `json:"units"`
		Positions []db.Position `json:"positions"`
	}
	testutil.DecodeJSONBody(t, w, &resp)
	if resp.Units != "ft" {
		t.Errorf("units = %q, want ft", resp.Units)
	}
	if len(resp.Positions) != 1 {
		t.Fatalf("Expected 1 position, got %d", len(resp.Positions))
	}
	if math.Abs(resp.Positions[0].DistanceM-328.084) > 0.01 {
		t.Errorf("DistanceM = %f, want 328.084 (100m in feet)", resp.Positions[0].DistanceM)
	}
}

func TestListPositionsInvalidUnits(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/positions?units=furlongs", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestListPositionsFilters(t *testing.T) {
	server, database := setupTestServer(t)
	seedPosition(t, database, "car", db.ModeGeographic, 10.0)
	seedPosition(t, database, "person", db.ModeLocal, 20.0)
	seedPosition(t, database, "car", db.ModeLocal, 30.0)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by mode", "?mode=local", 2},
		{"by class", "?class=car", 2},
		{"mode and class", "?mode=local&class=car", 1},
		{"no match", "?class=boat", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/positions"+tt.query, nil)
			w := httptest.NewRecorder()
			server.ServeMux().ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp struct {
				Positions []db.Position `json:"positions"`
			}
			testutil.DecodeJSONBody(t, w, &resp)
			if len(resp.Positions) != tt.want {
				t.Errorf("Got %d positions, want %d", len(resp.Positions), tt.want)
			}
		})
	}
}

func TestListPositionsBadMode(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/positions?mode=orbital", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestListDetections(t *testing.T) {
	server, database := setupTestServer(t)
	seedPosition(t, database, "car", db.ModeGeographic, 10.0)
	seedPosition(t, database, "person", db.ModeGeographic, 20.0)

	req := httptest.NewRequest(http.MethodGet, "/api/detections?class=person", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var detections []db.Detection
	testutil.DecodeJSONBody(t, w, &detections)
	if len(detections) != 1 {
		t.Fatalf("Expected 1 detection, got %d", len(detections))
	}
	if detections[0].Classification != "person" {
		t.Errorf("Classification = %q, want person", detections[0].Classification)
	}
}

func TestListRollups(t *testing.T) {
	server, database := setupTestServer(t)
	seedPosition(t, database, "car", db.ModeGeographic, 10.0)
	seedPosition(t, database, "car", db.ModeGeographic, 30.0)

	rollups, err := database.RollupPositions(0, math.MaxInt64)
	if err != nil {
		t.Fatalf("RollupPositions failed: %v", err)
	}
	if err := database.SaveRollups(rollups); err != nil {
		t.Fatalf("SaveRollups failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rollups", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var got []db.PositionRollup
	testutil.DecodeJSONBody(t, w, &got)
	if len(got) != 1 {
		t.Fatalf("Expected 1 rollup, got %d", len(got))
	}
	if got[0].Classification != "car" || got[0].Count != 2 {
		t.Errorf("Rollup = %+v, want car with count 2", got[0])
	}
}

func TestListHeights(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/heights", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var heights map[string]float64
	testutil.DecodeJSONBody(t, w, &heights)
	if heights["person"] != 1.7 {
		t.Errorf("person height = %f, want 1.7", heights["person"])
	}
	if heights["airplane"] != 15.0 {
		t.Errorf("airplane height = %f, want 15.0", heights["airplane"])
	}
}

func TestShowHeight(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantHeight float64
		wantKnown  bool
	}{
		{"known class", "/api/heights/car", 1.6, true},
		{"escaped class", "/api/heights/traffic%20light", 0.6, true},
		{"unknown class falls back", "/api/heights/unicycle", 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			server.ServeMux().ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			var resp struct {
				Classification string  `json:"classification"`
				HeightM        float64 `json:"height_m"`
				Known          bool    `json:"known"`
			}
			testutil.DecodeJSONBody(t, w, &resp)
			if resp.HeightM != tt.wantHeight {
				t.Errorf("height_m = %f, want %f", resp.HeightM, tt.wantHeight)
			}
			if resp.Known != tt.wantKnown {
				t.Errorf("known = %v, want %v", resp.Known, tt.wantKnown)
			}
		})
	}
}

func TestSiteConfigGet(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/site", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var cfg config.SiteConfig
	testutil.DecodeJSONBody(t, w, &cfg)
	if cfg.GetName() != "test-site" {
		t.Errorf("name = %q, want test-site", cfg.GetName())
	}
}

func TestSiteConfigPut(t *testing.T) {
	server, database := setupTestServer(t)

	updated := testSiteConfig()
	updated.Name = strPtr("rooftop-2")
	updated.BearingDeg = floatPtr(45.0)
	payload, _ := json.Marshal(updated)

	req := httptest.NewRequest(http.MethodPut, "/api/site", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := server.Site().GetBearingDeg(); got != 45.0 {
		t.Errorf("Active bearing = %f, want 45.0", got)
	}
	if got := server.Site().GetName(); got != "rooftop-2" {
		t.Errorf("Active name = %q, want rooftop-2", got)
	}

	// The update must survive a restart: check the persisted row.
	site, err := database.GetSite()
	if err != nil {
		t.Fatalf("GetSite failed: %v", err)
	}
	if site.Name != "rooftop-2" {
		t.Errorf("Persisted name = %q, want rooftop-2", site.Name)
	}
	if site.BearingDeg == nil || *site.BearingDeg != 45.0 {
		t.Errorf("Persisted bearing = %v, want 45.0", site.BearingDeg)
	}
}

func TestSiteConfigPutRejectsInvalid(t *testing.T) {
	server, _ := setupTestServer(t)

	bad := testSiteConfig()
	bad.LatitudeDeg = floatPtr(123.0)
	payload, _ := json.Marshal(bad)

	req := httptest.NewRequest(http.MethodPut, "/api/site", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	if got := server.Site().GetLatitudeDeg(); got != 51.5 {
		t.Errorf("Active latitude = %f, want 51.5 untouched", got)
	}
}

func TestShowStats(t *testing.T) {
	server, database := setupTestServer(t)
	seedPosition(t, database, "car", db.ModeGeographic, 10.0)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var stats map[string]any
	testutil.DecodeJSONBody(t, w, &stats)
	if stats["site"] != "test-site" {
		t.Errorf("site = %v, want test-site", stats["site"])
	}
	if stats["detections"] != float64(1) {
		t.Errorf("detections = %v, want 1", stats["detections"])
	}
	if stats["positions"] != float64(1) {
		t.Errorf("positions = %v, want 1", stats["positions"])
	}
}
