package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/avbrook/skyrelay/internal/aircraft"
	"github.com/avbrook/skyrelay/internal/api"
	"github.com/avbrook/skyrelay/internal/ble"
	"github.com/avbrook/skyrelay/internal/config"
	"github.com/avbrook/skyrelay/internal/drone"
	"github.com/avbrook/skyrelay/internal/websocket"
	"github.com/avbrook/skyrelay/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting skyrelay",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshotInterval := time.Duration(cfg.Snapshot.IntervalMs) * time.Millisecond

	// Aircraft pipeline: UDP GDL90 ingestion -> track store -> snapshot hub.
	var aircraftService *aircraft.Service
	aircraftHub := websocket.NewServer("aircraft-ws", func() interface{} {
		return aircraftService.Snapshot()
	}, log)
	aircraftService = aircraft.NewService(cfg.GDL90, snapshotInterval, aircraftHub, log)
	go aircraftHub.Run()

	// Drone pipeline: BLE + HTTP ingest -> drone store -> snapshot hub.
	var droneService *drone.Service
	droneHub := websocket.NewServer("drone-ws", func() interface{} {
		return droneService.Snapshot()
	}, log)
	droneService = drone.NewService(cfg.RID, snapshotInterval, droneHub, log)
	go droneHub.Run()

	if err := aircraftService.Start(ctx); err != nil {
		log.Error("Failed to start GDL90 service", logger.Error(err))
		os.Exit(1)
	}
	if err := droneService.Start(ctx); err != nil {
		log.Error("Failed to start Remote ID service", logger.Error(err))
		os.Exit(1)
	}

	// The HTTP ingest path doubles as the WiFi Remote ID path.
	droneService.SetWiFiAvailable(true)

	var scanner *ble.Scanner
	if cfg.RID.BLEEnabled {
		scanner = ble.NewScanner(droneService, log)
		// A failed BLE stack degrades health flags; it never stops the relay.
		if err := scanner.Start(); err != nil {
			scanner = nil
		}
	} else {
		droneService.SetBLEStatus(false, false)
	}

	router := api.NewRouter(aircraftService, droneService, cfg, log)

	servers := []*http.Server{
		newServer(cfg, cfg.Server.AircraftWSPort, http.HandlerFunc(aircraftHub.HandleConnection)),
		newServer(cfg, cfg.Server.DroneWSPort, http.HandlerFunc(droneHub.HandleConnection)),
		newServer(cfg, cfg.Server.IngestPort, router.Routes()),
	}

	for _, server := range servers {
		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down...")

	if scanner != nil {
		scanner.Stop()
	}

	aircraftService.Stop()
	droneService.Stop()
	aircraftHub.Stop()
	droneHub.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}

func newServer(cfg *config.Config, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}
}
