package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	if cfg.Monitor.BatchSize != 20 {
		t.Errorf("expected batch size 20, got %d", cfg.Monitor.BatchSize)
	}
	if cfg.Monitor.RetainAfterFlush != 10 {
		t.Errorf("expected retain 10, got %d", cfg.Monitor.RetainAfterFlush)
	}
	if cfg.Penalties.Low != 5 || cfg.Penalties.Medium != 15 || cfg.Penalties.High != 30 {
		t.Errorf("unexpected default penalties: %+v", cfg.Penalties)
	}
	if cfg.Detection.Grade4.MinWPM != 8 || cfg.Detection.Grade4.MaxWPM != 35 {
		t.Errorf("unexpected grade-4 bounds: %+v", cfg.Detection.Grade4)
	}
	if cfg.Report.WindowDays != 7 {
		t.Errorf("expected 7-day report window, got %d", cfg.Report.WindowDays)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "unknown storage type",
			mutate: func(c *Config) { c.Storage.Type = "redis" },
		},
		{
			name:   "zero batch size",
			mutate: func(c *Config) { c.Monitor.BatchSize = 0 },
		},
		{
			name:   "retention not below batch size",
			mutate: func(c *Config) { c.Monitor.RetainAfterFlush = c.Monitor.BatchSize },
		},
		{
			name:   "inverted grade bounds",
			mutate: func(c *Config) { c.Detection.Grade5.MinWPM = 99 },
		},
		{
			name: "non-monotonic grade table",
			mutate: func(c *Config) {
				c.Detection.Grade6.MaxWPM = c.Detection.Grade5.MaxWPM - 10
			},
		},
		{
			name:   "penalties out of order",
			mutate: func(c *Config) { c.Penalties.Medium = c.Penalties.High + 1 },
		},
		{
			name:   "flag score above 100",
			mutate: func(c *Config) { c.Report.FlagScore = 150 },
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "loud" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
version = 1

[monitor]
batch_size = 30
retain_after_flush = 15

[penalties]
low = 2
medium = 10
high = 25
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Monitor.BatchSize != 30 {
		t.Errorf("expected batch size 30, got %d", cfg.Monitor.BatchSize)
	}
	if cfg.Penalties.High != 25 {
		t.Errorf("expected high penalty 25, got %d", cfg.Penalties.High)
	}
	// Unset sections keep defaults.
	if cfg.Detection.Grade4.MaxWPM != 35 {
		t.Errorf("expected default grade-4 max, got %d", cfg.Detection.Grade4.MaxWPM)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
monitor:
  batch_size: 25
  retain_after_flush: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.BatchSize != 25 {
		t.Errorf("expected batch size 25, got %d", cfg.Monitor.BatchSize)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.toml")).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Monitor.BatchSize != DefaultConfig().Monitor.BatchSize {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[monitor]
batch_size = -5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("expected validation failure for negative batch size")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INTEGRITYD_LOG_LEVEL", "debug")
	t.Setenv("INTEGRITYD_STORAGE_TYPE", "memory")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level override, got %s", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("expected storage type override, got %s", cfg.Storage.Type)
	}
}

func TestLoadOrCreateWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if !created {
		t.Error("expected the config file to be created")
	}
	if cfg.Monitor.BatchSize != 20 {
		t.Errorf("unexpected defaults: %+v", cfg.Monitor)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not written: %v", err)
	}

	// Second call loads the existing file.
	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate: %v", err)
	}
	if created {
		t.Error("second call must not recreate the file")
	}
}
