package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/feed"
	"github.com/banshee-data/position.report/internal/geoloc"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/units"
	"github.com/banshee-data/position.report/internal/version"
)

var errInvalidUnits = errors.New("invalid units parameter")

// LocateRequest is the body of POST /api/locate and /api/locate/local: a
// detection bounding box plus optional per-call overrides of the site's
// camera pose. Unset overrides fall back to the site configuration.
type LocateRequest struct {
	Classification string `json:"class"`
	CenterXPx      int    `json:"cx"`
	CenterYPx      int    `json:"cy"`
	WidthPx        int    `json:"w"`
	HeightPx       int    `json:"h"`

	BearingDeg   *float64 `json:"bearing_deg,omitempty"`
	LatitudeDeg  *float64 `json:"latitude_deg,omitempty"`
	LongitudeDeg *float64 `json:"longitude_deg,omitempty"`
	AltitudeM    *float64 `json:"altitude_m,omitempty"`
}

// GeographicResponse is the result of POST /api/locate.
type GeographicResponse struct {
	LatitudeDeg    float64 `json:"latitude_deg"`
	LongitudeDeg   float64 `json:"longitude_deg"`
	DistanceM      float64 `json:"distance_m"`
	BearingDeg     float64 `json:"bearing_deg"`
	AssumedHeightM float64 `json:"assumed_height_m"`
	KnownHeight    bool    `json:"known_height"`
}

// LocalResponse is the result of POST /api/locate/local.
type LocalResponse struct {
	XM             float64 `json:"x_m"`
	YM             float64 `json:"y_m"`
	ZM             float64 `json:"z_m"`
	DistanceM      float64 `json:"distance_m"`
	BearingDeg     float64 `json:"bearing_deg"`
	AssumedHeightM float64 `json:"assumed_height_m"`
	KnownHeight    bool    `json:"known_height"`
}

// decodeLocateRequest parses and guards a locate body. The estimator
// divides by the box height and sensor dimensions, so zero values are
// rejected here rather than surfacing as Inf coordinates.
func (s *Server) decodeLocateRequest(r *http.Request) (LocateRequest, error) {
	var req LocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request body: %w", err)
	}
	if req.Classification == "" {
		return req, fmt.Errorf("class is required")
	}
	if req.HeightPx <= 0 {
		return req, fmt.Errorf("h must be positive, got %d", req.HeightPx)
	}
	in := s.Site().Intrinsics()
	if in.SensorWidthPx <= 0 || in.SensorHeightPx <= 0 {
		return req, fmt.Errorf("site sensor dimensions are not configured")
	}
	return req, nil
}

// observerFor merges per-call overrides over the site's camera pose.
func (s *Server) observerFor(req LocateRequest) geoloc.Observer {
	obs := s.Site().Observer()
	if req.BearingDeg != nil {
		obs.BearingRad = radians(*req.BearingDeg)
	}
	if req.LatitudeDeg != nil {
		obs.LatitudeRad = radians(*req.LatitudeDeg)
	}
	if req.LongitudeDeg != nil {
		obs.LongitudeRad = radians(*req.LongitudeDeg)
	}
	if req.AltitudeM != nil {
		obs.AltitudeM = *req.AltitudeM
	}
	return obs
}

func (s *Server) locate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, err := s.decodeLocateRequest(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := s.Locator()
	in := s.Site().Intrinsics()
	obs := s.observerFor(req)
	det := geoloc.Detection{
		Classification: req.Classification,
		CenterXPx:      req.CenterXPx,
		CenterYPx:      req.CenterYPx,
		WidthPx:        req.WidthPx,
		HeightPx:       req.HeightPx,
	}

	latRad, lonRad := loc.EventPosition(det, obs, in)
	heightM := loc.Heights().HeightForAltitude(det.Classification, obs.AltitudeM)
	distanceM, fovDeg := geoloc.EstimateDistance(in, heightM, det.HeightPx)
	bearingRad := geoloc.TargetBearingRad(obs.BearingRad, fovDeg, in.SensorWidthPx, det.CenterXPx)

	resp := GeographicResponse{
		LatitudeDeg:    degrees(latRad),
		LongitudeDeg:   degrees(lonRad),
		DistanceM:      distanceM,
		BearingDeg:     degrees(bearingRad),
		AssumedHeightM: heightM,
		KnownHeight:    loc.HasKnownHeight(det.Classification),
	}

	s.recordLocate(req, db.ModeGeographic, func(p *db.Position) {
		p.LatitudeDeg = &resp.LatitudeDeg
		p.LongitudeDeg = &resp.LongitudeDeg
		p.DistanceM = resp.DistanceM
		p.BearingDeg = resp.BearingDeg
		p.AssumedHeightM = resp.AssumedHeightM
	})

	s.writeJSON(w, resp)
}

func (s *Server) locateLocal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, err := s.decodeLocateRequest(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	loc := s.Locator()
	in := s.Site().Intrinsics()
	obs := s.observerFor(req)
	det := geoloc.Detection{
		Classification: req.Classification,
		CenterXPx:      req.CenterXPx,
		CenterYPx:      req.CenterYPx,
		WidthPx:        req.WidthPx,
		HeightPx:       req.HeightPx,
	}

	x, y, z := loc.EventLocalPosition(det, obs.BearingRad, in)
	// The local path takes the table height unmodified: no altitude
	// correction applies here.
	heightM := loc.Heights().Height(det.Classification)
	distanceM, fovDeg := geoloc.EstimateDistance(in, heightM, det.HeightPx)
	bearingRad := geoloc.TargetBearingRad(obs.BearingRad, fovDeg, in.SensorWidthPx, det.CenterXPx)

	resp := LocalResponse{
		XM:             x,
		YM:             y,
		ZM:             z,
		DistanceM:      distanceM,
		BearingDeg:     degrees(bearingRad),
		AssumedHeightM: heightM,
		KnownHeight:    loc.HasKnownHeight(det.Classification),
	}

	s.recordLocate(req, db.ModeLocal, func(p *db.Position) {
		p.XM = &resp.XM
		p.YM = &resp.YM
		p.ZM = &resp.ZM
		p.DistanceM = resp.DistanceM
		p.BearingDeg = resp.BearingDeg
		p.AssumedHeightM = resp.AssumedHeightM
	})

	s.writeJSON(w, resp)
}

// recordLocate persists an API locate call as a detection plus position
// pair. Storage failures are logged, not surfaced: the caller already has
// its answer.
func (s *Server) recordLocate(req LocateRequest, mode string, fill func(*db.Position)) {
	if s.db == nil {
		return
	}
	raw, _ := json.Marshal(feed.Event{
		Classification: req.Classification,
		CenterXPx:      req.CenterXPx,
		CenterYPx:      req.CenterYPx,
		WidthPx:        req.WidthPx,
		HeightPx:       req.HeightPx,
	})
	det := &db.Detection{
		Source:         "api",
		Classification: req.Classification,
		CenterXPx:      req.CenterXPx,
		CenterYPx:      req.CenterYPx,
		WidthPx:        req.WidthPx,
		HeightPx:       req.HeightPx,
		Raw:            string(raw),
	}
	if err := s.db.RecordDetection(det); err != nil {
		s.logStorageError(err)
		return
	}
	pos := &db.Position{
		DetectionID:    det.ID,
		Mode:           mode,
		Classification: req.Classification,
	}
	fill(pos)
	if err := s.db.RecordPosition(pos); err != nil {
		s.logStorageError(err)
	}
}

func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	targetUnits, err := s.requestUnits(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("units must be one of %s", units.GetValidUnitsString()))
		return
	}
	filter, err := positionFilterFromQuery(r)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	positions, err := s.db.Positions(filter)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve positions: %v", err))
		return
	}

	// Storage is always meters; distances convert at the edge.
	for i := range positions {
		positions[i].DistanceM = units.ConvertDistance(positions[i].DistanceM, targetUnits)
	}

	s.writeJSON(w, map[string]any{
		"units":     targetUnits,
		"positions": positions,
	})
}

func (s *Server) listDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	q := r.URL.Query()
	filter := db.DetectionFilter{
		Classification: q.Get("class"),
		Source:         q.Get("source"),
	}
	var err error
	if filter.SinceNanos, err = parseTimeParam(q.Get("since")); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'since' parameter")
		return
	}
	if filter.UntilNanos, err = parseTimeParam(q.Get("until")); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'until' parameter")
		return
	}
	if l := q.Get("limit"); l != "" {
		if filter.Limit, err = strconv.Atoi(l); err != nil || filter.Limit < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
	}

	detections, err := s.db.Detections(filter)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve detections: %v", err))
		return
	}
	s.writeJSON(w, detections)
}

func (s *Server) listRollups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.db == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	rollups, err := s.db.Rollups(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve rollups: %v", err))
		return
	}
	s.writeJSON(w, rollups)
}

func (s *Server) listHeights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.Locator().Heights())
}

func (s *Server) showHeight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	class, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/api/heights/"))
	if err != nil || class == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing classification")
		return
	}

	loc := s.Locator()
	s.writeJSON(w, map[string]any{
		"classification": class,
		"height_m":       loc.Heights().Height(class),
		"known":          loc.HasKnownHeight(class),
	})
}

func (s *Server) siteConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.Site())

	case http.MethodPut:
		cfg := config.EmptySiteConfig()
		if err := json.NewDecoder(r.Body).Decode(cfg); err != nil {
			s.writeJSONError(w, http.StatusBadRequest,
				fmt.Sprintf("failed to decode site config: %v", err))
			return
		}
		if err := cfg.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.setSite(cfg)
		if s.db != nil {
			if err := s.db.SaveSite(siteRowFromConfig(cfg)); err != nil {
				s.writeJSONError(w, http.StatusInternalServerError,
					fmt.Sprintf("failed to persist site config: %v", err))
				return
			}
		}
		s.writeJSON(w, cfg)

	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := map[string]any{
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"version":        version.Version,
		"git_sha":        version.GitSHA,
		"built":          version.BuildTime,
		"site":           s.Site().GetName(),
	}
	if local, err := units.ConvertTime(time.Now().UTC(), s.Site().GetTimezone()); err == nil {
		stats["site_time"] = local.Format(time.RFC3339)
	}
	if s.db != nil {
		if n, err := s.db.CountDetections(); err == nil {
			stats["detections"] = n
		}
		if n, err := s.db.CountPositions(); err == nil {
			stats["positions"] = n
		}
	}
	s.writeJSON(w, stats)
}

// siteRowFromConfig converts the JSON site config into its persisted row.
func siteRowFromConfig(cfg *config.SiteConfig) *db.Site {
	return &db.Site{
		Name:           cfg.GetName(),
		LatitudeDeg:    cfg.LatitudeDeg,
		LongitudeDeg:   cfg.LongitudeDeg,
		AltitudeM:      cfg.AltitudeM,
		BearingDeg:     cfg.BearingDeg,
		SensorWidthPx:  cfg.SensorWidthPx,
		SensorHeightPx: cfg.SensorHeightPx,
		FocalLengthMM:  cfg.FocalLengthMM,
		SensorWidthMM:  cfg.SensorWidthMM,
		Units:          cfg.GetUnits(),
	}
}

// parseTimeParam accepts either RFC3339 or unix nanoseconds; empty means
// unconstrained.
func parseTimeParam(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	if nanos, err := strconv.ParseInt(v, 10, 64); err == nil {
		return nanos, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, err
	}
	return t.UnixNano(), nil
}

// positionFilterFromQuery builds a db filter from list query parameters.
func positionFilterFromQuery(r *http.Request) (db.PositionFilter, error) {
	q := r.URL.Query()
	filter := db.PositionFilter{
		Mode:           q.Get("mode"),
		Classification: q.Get("class"),
	}
	if filter.Mode != "" && filter.Mode != db.ModeGeographic && filter.Mode != db.ModeLocal {
		return filter, fmt.Errorf("mode must be %q or %q", db.ModeGeographic, db.ModeLocal)
	}
	var err error
	if filter.SinceNanos, err = parseTimeParam(q.Get("since")); err != nil {
		return filter, fmt.Errorf("invalid 'since' parameter")
	}
	if filter.UntilNanos, err = parseTimeParam(q.Get("until")); err != nil {
		return filter, fmt.Errorf("invalid 'until' parameter")
	}
	if l := q.Get("limit"); l != "" {
		if filter.Limit, err = strconv.Atoi(l); err != nil || filter.Limit < 1 {
			return filter, fmt.Errorf("invalid 'limit' parameter")
		}
	}
	return filter, nil
}

func (s *Server) logStorageError(err error) {
	// Writes race the response; the log line is the only trace.
	monitoring.Logf("api: storage error: %v", err)
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
func radians(deg float64) float64 { return deg * math.Pi / 180 }
