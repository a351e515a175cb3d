package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"udp port out of range", func(c *Config) { c.GDL90.UDPPort = 70000 }},
		{"zero ingest port", func(c *Config) { c.Server.IngestPort = 0 }},
		{"duplicate ports", func(c *Config) { c.Server.DroneWSPort = c.Server.AircraftWSPort }},
		{"zero stale timeout", func(c *Config) { c.GDL90.StaleTimeoutSecs = 0 }},
		{"zero snapshot interval", func(c *Config) { c.Snapshot.IntervalMs = 0 }},
		{"negative ingest rate", func(c *Config) { c.RID.IngestRatePerSec = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected a validation error")
			}
		})
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[gdl90]
udp_port = 14000

[rid]
ble_enabled = false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GDL90.UDPPort != 14000 {
		t.Errorf("udp_port: got %d", cfg.GDL90.UDPPort)
	}
	if cfg.RID.BLEEnabled {
		t.Errorf("ble_enabled override lost")
	}
	// Untouched sections keep their defaults.
	if cfg.Server.AircraftWSPort != 4001 || cfg.Snapshot.IntervalMs != 1000 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadWithFallback_NoFile(t *testing.T) {
	cfg, err := LoadWithFallback(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if cfg.Server.IngestPort != 4003 {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
}
