package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP/WebSocket server settings
	GDL90    GDL90Config    `toml:"gdl90"`    // GDL-90 UDP ingestion settings
	RID      RIDConfig      `toml:"rid"`      // Remote ID (ODID) ingestion settings
	Snapshot SnapshotConfig `toml:"snapshot"` // Snapshot publishing settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	AircraftWSPort     int      `toml:"aircraft_ws_port"`      // Port for the aircraft snapshot WebSocket feed
	DroneWSPort        int      `toml:"drone_ws_port"`         // Port for the drone (Remote ID) snapshot WebSocket feed
	IngestPort         int      `toml:"ingest_port"`           // Port for the HTTP ingest API
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended for streaming)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// GDL90Config contains GDL-90 UDP listener configuration
type GDL90Config struct {
	UDPPort              int `toml:"udp_port"`                 // UDP port to listen on for raw GDL-90 datagrams
	StaleTimeoutSecs     int `toml:"stale_timeout_seconds"`    // Aircraft tracks older than this are pruned (default: 15)
	ReceiverTimeoutSecs  int `toml:"receiver_timeout_seconds"` // No UDP traffic for this long means the receiver is considered disconnected (default: 5)
	MagneticTrackEnabled bool `toml:"magnetic_track_enabled"`  // Derive magnetic track from true track via WMM declination
}

// RIDConfig contains Remote ID (ODID) ingestion configuration
type RIDConfig struct {
	StaleTimeoutSecs int  `toml:"stale_timeout_seconds"` // Drone tracks older than this are pruned (default: 30)
	BLEEnabled       bool `toml:"ble_enabled"`           // Enable the BLE advertisement scanner
	IngestRatePerSec int  `toml:"ingest_rate_per_sec"`   // Rate limit for POST /api/rid requests (0 = unlimited)
	IngestBurst      int  `toml:"ingest_burst"`          // Burst allowance for the ingest rate limiter
}

// SnapshotConfig contains snapshot publishing configuration
type SnapshotConfig struct {
	IntervalMs int `toml:"interval_ms"` // Snapshot publish interval in milliseconds (default: 1000)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`        // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`       // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`         // Optional rotating log file path (empty = stderr only)
	MaxSizeMB  int    `toml:"max_size_mb"`  // Maximum size of a log file before rotation
	MaxBackups int    `toml:"max_backups"`  // Maximum number of rotated log files to keep
	MaxAgeDays int    `toml:"max_age_days"` // Maximum age of rotated log files in days
}

// DefaultConfig returns a config populated with the standard ports and timeouts
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			AircraftWSPort:     4001,
			DroneWSPort:        4002,
			IngestPort:         4003,
			CORSAllowedOrigins: []string{"*"},
			ReadTimeoutSecs:    30,
			WriteTimeoutSecs:   30,
			IdleTimeoutSecs:    120,
		},
		GDL90: GDL90Config{
			UDPPort:              4000,
			StaleTimeoutSecs:     15,
			ReceiverTimeoutSecs:  5,
			MagneticTrackEnabled: true,
		},
		RID: RIDConfig{
			StaleTimeoutSecs: 30,
			BLEEnabled:       true,
			IngestRatePerSec: 50,
			IngestBurst:      100,
		},
		Snapshot: SnapshotConfig{
			IntervalMs: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load loads the configuration from the given TOML file, applying defaults
// for anything the file doesn't set
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return config, nil
}

// LoadWithFallback loads configuration from the preferred path if given,
// falling back to the standard search locations. If no config file exists
// anywhere, the defaults are returned.
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	for _, path := range searchPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return config, nil
		}
	}

	// No config file anywhere; the defaults are a complete working setup.
	return DefaultConfig(), nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	ports := map[int]string{}
	checkPort := func(name string, p int) error {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid %s: %d", name, p)
		}
		if other, dup := ports[p]; dup {
			return fmt.Errorf("port %d used by both %s and %s", p, other, name)
		}
		ports[p] = name
		return nil
	}

	if err := checkPort("gdl90.udp_port", c.GDL90.UDPPort); err != nil {
		return err
	}
	if err := checkPort("server.aircraft_ws_port", c.Server.AircraftWSPort); err != nil {
		return err
	}
	if err := checkPort("server.drone_ws_port", c.Server.DroneWSPort); err != nil {
		return err
	}
	if err := checkPort("server.ingest_port", c.Server.IngestPort); err != nil {
		return err
	}

	if c.GDL90.StaleTimeoutSecs <= 0 {
		return fmt.Errorf("invalid gdl90.stale_timeout_seconds: %d", c.GDL90.StaleTimeoutSecs)
	}
	if c.RID.StaleTimeoutSecs <= 0 {
		return fmt.Errorf("invalid rid.stale_timeout_seconds: %d", c.RID.StaleTimeoutSecs)
	}
	if c.Snapshot.IntervalMs <= 0 {
		return fmt.Errorf("invalid snapshot.interval_ms: %d", c.Snapshot.IntervalMs)
	}
	if c.RID.IngestRatePerSec < 0 {
		return fmt.Errorf("invalid rid.ingest_rate_per_sec: %d", c.RID.IngestRatePerSec)
	}

	return nil
}
