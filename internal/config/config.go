package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration sourced from environment variables.
// Command-line flags may override individual fields after Load.
type Config struct {
	OutputDir  string
	ListenAddr string
	LogLevel   slog.Level
	SysfsRoot  string

	EnableServer     bool
	EnablePrometheus bool
	EnablePprof      bool

	Dataset   DatasetConfig
	Telemetry TelemetryConfig
}

// DatasetConfig defines the procedural corpus and query stream.
type DatasetConfig struct {
	Seed       int64
	NDocs      int
	NQueries   int
	RepeatPct  float64
	Depth      int
	Fanout     int
	MaxPathLen int
}

// TelemetryConfig contains settings for the background GPU sampler.
type TelemetryConfig struct {
	Enable          bool
	DeviceIndex     int
	SampleInterval  time.Duration
	MaxSeriesPoints int
}

// Load parses configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		OutputDir:        "out",
		ListenAddr:       ":8080",
		LogLevel:         slog.LevelInfo,
		SysfsRoot:        "/sys",
		EnableServer:     false,
		EnablePrometheus: false,
		EnablePprof:      false,
		Dataset: DatasetConfig{
			Seed:       123,
			NDocs:      200_000,
			NQueries:   20_000,
			RepeatPct:  0.8,
			Depth:      5,
			Fanout:     256,
			MaxPathLen: 128,
		},
		Telemetry: TelemetryConfig{
			Enable:          false,
			DeviceIndex:     0,
			SampleInterval:  100 * time.Millisecond,
			MaxSeriesPoints: 1200,
		},
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_OUT_DIR")); value != "" {
		cfg.OutputDir = value
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_LISTEN_ADDR")); value != "" {
		cfg.ListenAddr = value
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_LOG_LEVEL")); value != "" {
		level, err := ParseLogLevel(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_SYSFS_ROOT")); value != "" {
		cfg.SysfsRoot = value
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_ENABLE_SERVER")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_ENABLE_SERVER: %w", err)
		}
		cfg.EnableServer = enabled
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_ENABLE_PROMETHEUS")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_ENABLE_PROMETHEUS: %w", err)
		}
		cfg.EnablePrometheus = enabled
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_ENABLE_PPROF")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_ENABLE_PPROF: %w", err)
		}
		cfg.EnablePprof = enabled
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_SEED")); value != "" {
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_SEED: %w", err)
		}
		cfg.Dataset.Seed = seed
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_N_DOCS")); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_N_DOCS: %w", err)
		}
		if n <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_N_DOCS must be > 0")
		}
		cfg.Dataset.NDocs = n
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_N_QUERIES")); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_N_QUERIES: %w", err)
		}
		if n <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_N_QUERIES must be > 0")
		}
		cfg.Dataset.NQueries = n
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_REPEAT_PCT")); value != "" {
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_REPEAT_PCT: %w", err)
		}
		if pct < 0 || pct > 1 {
			return Config{}, fmt.Errorf("WATTBENCH_REPEAT_PCT must be in [0, 1]")
		}
		cfg.Dataset.RepeatPct = pct
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_DEPTH")); value != "" {
		depth, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_DEPTH: %w", err)
		}
		if depth <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_DEPTH must be > 0")
		}
		cfg.Dataset.Depth = depth
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_FANOUT")); value != "" {
		fanout, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_FANOUT: %w", err)
		}
		if fanout <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_FANOUT must be > 0")
		}
		cfg.Dataset.Fanout = fanout
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_MAX_PATH_LEN")); value != "" {
		maxLen, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_MAX_PATH_LEN: %w", err)
		}
		if maxLen <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_MAX_PATH_LEN must be > 0")
		}
		cfg.Dataset.MaxPathLen = maxLen
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_ENABLE_TELEMETRY")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_ENABLE_TELEMETRY: %w", err)
		}
		cfg.Telemetry.Enable = enabled
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_DEVICE_INDEX")); value != "" {
		index, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_DEVICE_INDEX: %w", err)
		}
		if index < 0 {
			return Config{}, fmt.Errorf("WATTBENCH_DEVICE_INDEX must be >= 0")
		}
		cfg.Telemetry.DeviceIndex = index
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_SAMPLE_INTERVAL")); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_SAMPLE_INTERVAL: %w", err)
		}
		if duration <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_SAMPLE_INTERVAL must be > 0")
		}
		cfg.Telemetry.SampleInterval = duration
	}

	if value := strings.TrimSpace(os.Getenv("WATTBENCH_MAX_SERIES_POINTS")); value != "" {
		points, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WATTBENCH_MAX_SERIES_POINTS: %w", err)
		}
		if points <= 0 {
			return Config{}, fmt.Errorf("WATTBENCH_MAX_SERIES_POINTS must be > 0")
		}
		cfg.Telemetry.MaxSeriesPoints = points
	}

	return cfg, nil
}

// Validate checks invariants that flag overrides may have broken after Load.
func (c Config) Validate() error {
	ds := c.Dataset
	if ds.NDocs <= 0 {
		return fmt.Errorf("n_docs must be > 0")
	}
	if ds.NQueries <= 0 {
		return fmt.Errorf("n_queries must be > 0")
	}
	if ds.RepeatPct < 0 || ds.RepeatPct > 1 {
		return fmt.Errorf("repeat_pct must be in [0, 1]")
	}
	if ds.Depth <= 0 {
		return fmt.Errorf("depth must be > 0")
	}
	if ds.Fanout <= 0 {
		return fmt.Errorf("fanout must be > 0")
	}
	if ds.MaxPathLen <= 0 {
		return fmt.Errorf("max_path_len must be > 0")
	}
	if c.Telemetry.DeviceIndex < 0 {
		return fmt.Errorf("device index must be >= 0")
	}
	if c.Telemetry.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be > 0")
	}
	if c.Telemetry.MaxSeriesPoints <= 0 {
		return fmt.Errorf("max series points must be > 0")
	}
	return nil
}

// ParseLogLevel converts a textual level name into a slog level.
func ParseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
