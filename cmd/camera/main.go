// Command camera runs the camera-site position daemon: it reads detection
// events from the vision unit over serial or UDP, resolves them into
// geographic and local position estimates, records everything to SQLite,
// and serves the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/position.report/internal/api"
	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/db"
	"github.com/banshee-data/position.report/internal/feed"
	"github.com/banshee-data/position.report/internal/geoloc"
	"github.com/banshee-data/position.report/internal/monitor"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/publish"
	"github.com/banshee-data/position.report/internal/serialmux"
	"github.com/banshee-data/position.report/internal/version"
)

var (
	dbPath      = flag.String("db-path", "positions.db", "Path to the SQLite database")
	sitePath    = flag.String("site-config", "", "Path to a site config JSON file (default: stored site, then built-in defaults)")
	serialPort  = flag.String("serial-port", "", "Serial port of the vision unit (empty disables the serial feed)")
	baud        = flag.Int("baud", 0, "Serial baud rate (0 uses the vision unit default)")
	udpListen   = flag.String("udp-listen", "", "UDP listen address for detection datagrams (empty disables)")
	httpAddr    = flag.String("http-addr", ":8080", "HTTP listen address")
	devMode     = flag.Bool("dev", false, "Run with a mock serial feed")
	kafkaFlag   = flag.Bool("kafka", false, "Mirror position estimates to Kafka (brokers from environment)")
	plotDir     = flag.String("plot-dir", "", "Write periodic PNG plots into this directory (empty disables)")
	rollupEvery = flag.Duration("rollup-interval", time.Hour, "Interval for persisting distance rollups")
)

const migrationsDir = "migrations"

// mockDetectionLine feeds the pipeline in -dev mode when no fixtures.txt is
// present.
const mockDetectionLine = `{"class":"car","cx":960,"cy":540,"w":210,"h":96}` + "\n"

// pipeline resolves parsed detections into position estimates and fans them
// out to storage and the optional publisher. It implements feed.EventSink,
// so every source (serial, UDP, replay) shares the same path.
type pipeline struct {
	db     *db.DB
	server *api.Server
	pub    *publish.Publisher
}

func (p *pipeline) HandleDetection(ev feed.Event, source string) error {
	site := p.server.Site()
	loc := p.server.Locator()
	in := site.Intrinsics()
	obs := site.Observer()

	det := geoloc.Detection{
		Classification: ev.Classification,
		CenterXPx:      ev.CenterXPx,
		CenterYPx:      ev.CenterYPx,
		WidthPx:        ev.WidthPx,
		HeightPx:       ev.HeightPx,
	}

	raw, _ := json.Marshal(ev)
	row := &db.Detection{
		Source:         source,
		Classification: ev.Classification,
		CenterXPx:      ev.CenterXPx,
		CenterYPx:      ev.CenterYPx,
		WidthPx:        ev.WidthPx,
		HeightPx:       ev.HeightPx,
		Raw:            string(raw),
	}
	if err := p.db.RecordDetection(row); err != nil {
		return fmt.Errorf("failed to record detection: %w", err)
	}

	// Geographic estimate, altitude-corrected height.
	latRad, lonRad := loc.EventPosition(det, obs, in)
	geoHeight := loc.Heights().HeightForAltitude(det.Classification, obs.AltitudeM)
	geoDist, fovDeg := geoloc.EstimateDistance(in, geoHeight, det.HeightPx)
	bearingRad := geoloc.TargetBearingRad(obs.BearingRad, fovDeg, in.SensorWidthPx, det.CenterXPx)
	latDeg := latRad * 180 / math.Pi
	lonDeg := lonRad * 180 / math.Pi

	geoPos := &db.Position{
		DetectionID:    row.ID,
		Mode:           db.ModeGeographic,
		Classification: det.Classification,
		LatitudeDeg:    &latDeg,
		LongitudeDeg:   &lonDeg,
		DistanceM:      geoDist,
		BearingDeg:     bearingRad * 180 / math.Pi,
		AssumedHeightM: geoHeight,
	}
	if err := p.db.RecordPosition(geoPos); err != nil {
		return fmt.Errorf("failed to record geographic position: %w", err)
	}

	// Local estimate, table height unmodified.
	x, y, z := loc.EventLocalPosition(det, obs.BearingRad, in)
	localHeight := loc.Heights().Height(det.Classification)
	localDist, _ := geoloc.EstimateDistance(in, localHeight, det.HeightPx)

	localPos := &db.Position{
		DetectionID:    row.ID,
		Mode:           db.ModeLocal,
		Classification: det.Classification,
		XM:             &x,
		YM:             &y,
		ZM:             &z,
		DistanceM:      localDist,
		BearingDeg:     geoPos.BearingDeg,
		AssumedHeightM: localHeight,
	}
	if err := p.db.RecordPosition(localPos); err != nil {
		return fmt.Errorf("failed to record local position: %w", err)
	}

	if p.pub != nil {
		if err := p.pub.Publish(geoPos); err != nil {
			monitoring.Logf("camera: publish failed: %v", err)
		}
	}
	return nil
}

// loadSiteConfig resolves the active site configuration: an explicit file
// wins, then the persisted site row, then the shipped defaults.
func loadSiteConfig(database *db.DB) (*config.SiteConfig, error) {
	if *sitePath != "" {
		return config.LoadSiteConfig(*sitePath)
	}

	if site, err := database.GetSite(); err == nil {
		return siteConfigFromRow(site), nil
	}

	if cfg, err := config.LoadSiteConfig(config.DefaultConfigPath); err == nil {
		return cfg, nil
	}
	return config.EmptySiteConfig(), nil
}

func siteConfigFromRow(site *db.Site) *config.SiteConfig {
	cfg := config.EmptySiteConfig()
	cfg.Name = &site.Name
	cfg.LatitudeDeg = site.LatitudeDeg
	cfg.LongitudeDeg = site.LongitudeDeg
	cfg.AltitudeM = site.AltitudeM
	cfg.BearingDeg = site.BearingDeg
	cfg.SensorWidthPx = site.SensorWidthPx
	cfg.SensorHeightPx = site.SensorHeightPx
	cfg.FocalLengthMM = site.FocalLengthMM
	cfg.SensorWidthMM = site.SensorWidthMM
	if site.Units != "" {
		cfg.Units = &site.Units
	}
	return cfg
}

func main() {
	// Kafka credentials come from the environment; a local .env is enough
	// for development sites.
	_ = godotenv.Load()
	flag.Parse()

	// `camera migrate <verb>` runs schema management and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		if err := db.RunMigrateCommand(args[1:], *dbPath, migrationsDir); err != nil {
			monitoring.Logf("camera: migrate: %v", err)
			os.Exit(1)
		}
		return
	}

	monitoring.Logf("camera: starting position.report %s (%s)", version.Version, version.GitSHA)

	database, err := db.NewDB(*dbPath)
	if err != nil {
		monitoring.Logf("camera: failed to open database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.MigrateUp(migrationsDir); err != nil {
		monitoring.Logf("camera: failed to run migrations: %v", err)
		os.Exit(1)
	}

	site, err := loadSiteConfig(database)
	if err != nil {
		monitoring.Logf("camera: failed to load site config: %v", err)
		os.Exit(1)
	}
	if err := site.Validate(); err != nil {
		monitoring.Logf("camera: invalid site config: %v", err)
		os.Exit(1)
	}

	server := api.NewServer(site, database)

	var pub *publish.Publisher
	if *kafkaFlag {
		pub, err = publish.NewPublisher(publish.NewKafkaConfig())
		if err != nil {
			monitoring.Logf("camera: failed to create Kafka publisher: %v", err)
			os.Exit(1)
		}
		defer pub.Close()
	}

	p := &pipeline{db: database, server: server, pub: pub}

	var m serialmux.SerialMuxInterface
	switch {
	case *devMode:
		line := []byte(mockDetectionLine)
		if data, err := os.ReadFile("fixtures.txt"); err == nil {
			line = data
		}
		m = serialmux.NewMockSerialMux(line)
	case *serialPort != "":
		m, err = serialmux.NewRealSerialMux(*serialPort, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			monitoring.Logf("camera: failed to open serial port: %v", err)
			os.Exit(1)
		}
		if err := m.Initialize(); err != nil {
			monitoring.Logf("camera: vision unit initialization failed: %v", err)
		}
	default:
		m = serialmux.NewDisabledSerialMux()
	}
	defer m.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.Monitor(ctx); err != nil && err != context.Canceled {
			monitoring.Logf("camera: serial monitor failed: %v", err)
		}
		monitoring.Logf("camera: serial monitor terminated")
	}()

	// subscribe to the serial lines and pass them to the pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := m.Subscribe()
		defer m.Unsubscribe(id)
		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if err := serialmux.HandleLine(p, "serial", payload); err != nil {
					monitoring.Logf("camera: error handling serial line: %v", err)
				}
			case <-ctx.Done():
				monitoring.Logf("camera: subscriber terminated")
				return
			}
		}
	}()

	if *udpListen != "" {
		listener := feed.NewUDPListener(feed.UDPListenerConfig{
			Address: *udpListen,
			Stats:   feed.NewPacketStats(),
			Sink:    p,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				monitoring.Logf("camera: UDP listener failed: %v", err)
			}
		}()
	}

	if *plotDir != "" {
		plotter := monitor.NewPositionPlotter(database, *plotDir, time.Minute, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := plotter.Start(ctx); err != nil && err != context.Canceled {
				monitoring.Logf("camera: plotter failed: %v", err)
			}
		}()
	}

	// periodic distance rollups
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(*rollupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := database.RollupAndSave(now, *rollupEvery); err != nil {
					monitoring.Logf("camera: rollup failed: %v", err)
				}
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		if err := database.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("camera: failed to attach db admin routes: %v", err)
		}
		m.AttachAdminRoutes(mux)
		monitor.NewChartServer(database).AttachDebugRoutes(mux)

		httpServer := &http.Server{
			Addr:    *httpAddr,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				monitoring.Logf("camera: HTTP server failed: %v", err)
				stop()
			}
		}()
		monitoring.Logf("camera: HTTP server listening on %s", *httpAddr)

		<-ctx.Done()
		monitoring.Logf("camera: shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("camera: HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	monitoring.Logf("camera: graceful shutdown complete")
}
