// Package api serves the HTTP surface of the position daemon: single-shot
// locate endpoints, stored detection and position queries, the height
// table, and site configuration.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/geoloc"
	"github.com/banshee-data/position.report/internal/httputil"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server carries the estimator and storage behind the HTTP handlers. Site
// configuration is mutable at runtime via PUT /api/site; the mutex guards
// the site/locator pair so a concurrent locate sees a consistent view.
type Server struct {
	db        *db.DB
	startTime time.Time

	mu      sync.RWMutex
	site    *config.SiteConfig
	locator *geoloc.Locator
}

// NewServer creates a Server around the given site configuration.
// The database may be nil for a stateless calculator deployment; stored
// queries then return 503.
func NewServer(site *config.SiteConfig, database *db.DB) *Server {
	if site == nil {
		site = config.EmptySiteConfig()
	}
	return &Server{
		db:        database,
		startTime: time.Now(),
		site:      site,
		locator:   geoloc.NewLocator(site.HeightTable()),
	}
}

// Site returns the current site configuration.
func (s *Server) Site() *config.SiteConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site
}

// Locator returns the current height-table-bound locator.
func (s *Server) Locator() *geoloc.Locator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locator
}

// setSite swaps in a new site configuration and rebuilds the locator so
// height-table overrides take effect.
func (s *Server) setSite(site *config.SiteConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.site = site
	s.locator = geoloc.NewLocator(site.HeightTable())
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux wires all API routes into a fresh mux.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/locate", s.locate)
	mux.HandleFunc("/api/locate/local", s.locateLocal)
	mux.HandleFunc("/api/positions", s.listPositions)
	mux.HandleFunc("/api/detections", s.listDetections)
	mux.HandleFunc("/api/rollups", s.listRollups)
	mux.HandleFunc("/api/heights", s.listHeights)
	mux.HandleFunc("/api/heights/", s.showHeight)
	mux.HandleFunc("/api/site", s.siteConfig)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	httputil.WriteJSONError(w, status, msg)
}

// requestUnits resolves the ?units= query parameter against the site
// default, rejecting unknown values.
func (s *Server) requestUnits(r *http.Request) (string, error) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.Site().GetUnits(), nil
	}
	if !units.IsValid(u) {
		return "", errInvalidUnits
	}
	return u, nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
