// Package config handles configuration loading, validation, and hot reload
// for the integrity monitor. Every detection threshold and penalty magnitude
// lives here so deployments can recalibrate without code changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"integrityd/internal/detect"
	"integrityd/internal/score"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete monitor configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Storage configuration for the session store.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Monitor configuration for the keystroke pipeline.
	Monitor MonitorConfig `toml:"monitor" json:"monitor" yaml:"monitor"`

	// Detection holds the per-grade typing-speed thresholds.
	Detection DetectionConfig `toml:"detection" json:"detection" yaml:"detection"`

	// Penalties maps event severity to score deductions.
	Penalties score.Penalties `toml:"penalties" json:"penalties" yaml:"penalties"`

	// Report configuration for guardian aggregation.
	Report ReportConfig `toml:"report" json:"report" yaml:"report"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// StorageConfig selects and locates the session store.
type StorageConfig struct {
	// Type is the backend: "sqlite" or "memory".
	Type string `toml:"type" json:"type" yaml:"type"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// MonitorConfig tunes the rolling keystroke pipeline.
type MonitorConfig struct {
	// BatchSize is the number of intervals collected before a pattern is
	// analyzed.
	BatchSize int `toml:"batch_size" json:"batch_size" yaml:"batch_size"`

	// RetainAfterFlush is how many trailing intervals stay in the buffer
	// after analysis, keeping windows slightly overlapped.
	RetainAfterFlush int `toml:"retain_after_flush" json:"retain_after_flush" yaml:"retain_after_flush"`

	// StaleSessionMinutes is how long an open session may sit idle before
	// the reconciler force-finalizes it.
	StaleSessionMinutes int `toml:"stale_session_minutes" json:"stale_session_minutes" yaml:"stale_session_minutes"`
}

// DetectionConfig is the grade-threshold table. Grades three through six are
// calibrated; everything else falls back to grade four.
type DetectionConfig struct {
	Grade3 detect.GradeThresholds `toml:"grade3" json:"grade3" yaml:"grade3"`
	Grade4 detect.GradeThresholds `toml:"grade4" json:"grade4" yaml:"grade4"`
	Grade5 detect.GradeThresholds `toml:"grade5" json:"grade5" yaml:"grade5"`
	Grade6 detect.GradeThresholds `toml:"grade6" json:"grade6" yaml:"grade6"`
}

// Table converts the config rows to the detector's lookup form.
func (d DetectionConfig) Table() map[int]detect.GradeThresholds {
	return map[int]detect.GradeThresholds{
		3: d.Grade3,
		4: d.Grade4,
		5: d.Grade5,
		6: d.Grade6,
	}
}

// ReportConfig tunes guardian-facing aggregation.
type ReportConfig struct {
	// WindowDays is the default report period.
	WindowDays int `toml:"window_days" json:"window_days" yaml:"window_days"`

	// FlagScore marks sessions below this score as flagged in reports.
	FlagScore int `toml:"flag_score" json:"flag_score" yaml:"flag_score"`

	// ReviewScore marks quiz sessions below this score for review.
	ReviewScore int `toml:"review_score" json:"review_score" yaml:"review_score"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int64  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() *Config {
	grades := detect.DefaultGradeThresholds()
	return &Config{
		Version: Version,
		Storage: StorageConfig{
			Type: "sqlite",
			Path: defaultDatabasePath(),
		},
		Monitor: MonitorConfig{
			BatchSize:           20,
			RetainAfterFlush:    10,
			StaleSessionMinutes: 120,
		},
		Detection: DetectionConfig{
			Grade3: grades[3],
			Grade4: grades[4],
			Grade5: grades[5],
			Grade6: grades[6],
		},
		Penalties: score.DefaultPenalties(),
		Report: ReportConfig{
			WindowDays:  7,
			FlagScore:   80,
			ReviewScore: 70,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
	}
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(baseDir(), "config.toml")
}

func defaultDatabasePath() string {
	return filepath.Join(baseDir(), "sessions.db")
}

func baseDir() string {
	if dir := os.Getenv("INTEGRITYD_HOME"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".integrityd"
	}
	return filepath.Join(homeDir, ".integrityd")
}

// ApplyEnvOverrides applies environment variables on top of file values.
// Only deployment knobs are overridable; thresholds always come from the
// config file so they stay reviewable.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("INTEGRITYD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("INTEGRITYD_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("INTEGRITYD_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("INTEGRITYD_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
}

// Validation errors.
var (
	ErrBadStorageType  = errors.New("storage type must be sqlite or memory")
	ErrBadBatchSize    = errors.New("monitor batch size must be positive")
	ErrBadRetention    = errors.New("retain_after_flush must be smaller than batch_size")
	ErrBadGradeBounds  = errors.New("grade thresholds must have min_wpm below max_wpm")
	ErrNonMonotonic    = errors.New("grade thresholds must not decrease with grade")
	ErrBadPenalties    = errors.New("penalties must be positive and ordered low <= medium <= high")
	ErrBadReportBounds = errors.New("report thresholds must be within (0,100]")
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("%w: %q", ErrBadStorageType, c.Storage.Type)
	}
	if c.Storage.Type == "sqlite" && c.Storage.Path == "" {
		return errors.New("sqlite storage requires a path")
	}

	if c.Monitor.BatchSize <= 0 {
		return ErrBadBatchSize
	}
	if c.Monitor.RetainAfterFlush < 0 || c.Monitor.RetainAfterFlush >= c.Monitor.BatchSize {
		return ErrBadRetention
	}

	rows := []detect.GradeThresholds{
		c.Detection.Grade3, c.Detection.Grade4, c.Detection.Grade5, c.Detection.Grade6,
	}
	for i, row := range rows {
		if row.MinWPM <= 0 || row.MinWPM >= row.MaxWPM {
			return fmt.Errorf("%w: grade %d", ErrBadGradeBounds, i+3)
		}
		if i > 0 {
			prev := rows[i-1]
			if row.MinWPM < prev.MinWPM || row.MaxWPM < prev.MaxWPM {
				return fmt.Errorf("%w: grade %d", ErrNonMonotonic, i+3)
			}
		}
	}

	p := c.Penalties
	if p.Low <= 0 || p.Low > p.Medium || p.Medium > p.High {
		return ErrBadPenalties
	}

	r := c.Report
	if r.WindowDays <= 0 {
		return errors.New("report window must be positive")
	}
	if r.FlagScore <= 0 || r.FlagScore > 100 || r.ReviewScore <= 0 || r.ReviewScore > 100 {
		return ErrBadReportBounds
	}

	if _, err := parseLevelName(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

func parseLevelName(s string) (string, error) {
	switch s {
	case "", "debug", "info", "warn", "warning", "error":
		return s, nil
	default:
		return "", fmt.Errorf("unknown log level: %s", s)
	}
}

// SaveConfig writes the configuration as TOML.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	copied := *c
	return &copied
}
