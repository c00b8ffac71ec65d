/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Player backend selection.
type PlayerBackend string

const (
	PlayerMPV PlayerBackend = "mpv"
	PlayerVLC PlayerBackend = "vlc"
)

// Config covers process level configuration read from environment variables,
// optionally pre-seeded from a YAML file (HEARTH_CONFIG_FILE).
type Config struct {
	Environment string `yaml:"environment"`
	HTTPBind    string `yaml:"http_bind"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsBind string `yaml:"metrics_bind"`

	DBBackend DatabaseBackend `yaml:"db_backend"`
	DBDSN     string          `yaml:"db_dsn"`

	MediaRoot string `yaml:"media_root"`

	// Player connection
	PlayerBackend         PlayerBackend `yaml:"player_backend"`
	MPVSocketPath         string        `yaml:"mpv_socket_path"`
	VLCAddr               string        `yaml:"vlc_addr"`
	PlayerConnectAttempts int           `yaml:"player_connect_attempts"`
	PlayerConnectDelay    time.Duration `yaml:"player_connect_delay"`
	PlayerRequestTimeout  time.Duration `yaml:"player_request_timeout"`

	// Playback loop tuning. These are deliberate configuration, not magic
	// numbers: the wire protocols expose no track-change events, so the
	// loop infers transitions from position samples.
	PollInterval      time.Duration `yaml:"poll_interval"`
	StopRecheckDelay  time.Duration `yaml:"stop_recheck_delay"`
	DisconnectBackoff time.Duration `yaml:"disconnect_backoff"`
	QueueBufferSize   int           `yaml:"queue_buffer_size"`

	// Logo overlay (mpv only)
	LogoEnabled   bool    `yaml:"logo_enabled"`
	LogoPath      string  `yaml:"logo_path"`
	LogoMaxHeight int     `yaml:"logo_max_height"`
	LogoAlign     string  `yaml:"logo_align"`
	LogoOffsetX   int     `yaml:"logo_offset_x"`
	LogoOffsetY   int     `yaml:"logo_offset_y"`
	LogoOpacity   float64 `yaml:"logo_opacity"`

	// Tracing configuration
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`
}

// Load reads the optional config file, applies environment overrides and
// defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:           "development",
		HTTPBind:              "0.0.0.0",
		HTTPPort:              8080,
		MetricsBind:           "127.0.0.1:9000",
		DBBackend:             DatabaseSQLite,
		DBDSN:                 "hearthtv.db",
		MediaRoot:             "./media",
		PlayerBackend:         PlayerMPV,
		MPVSocketPath:         "/tmp/hearthtv-mpv.sock",
		VLCAddr:               "127.0.0.1:4212",
		PlayerConnectAttempts: 5,
		PlayerConnectDelay:    2 * time.Second,
		PlayerRequestTimeout:  5 * time.Second,
		PollInterval:          500 * time.Millisecond,
		StopRecheckDelay:      800 * time.Millisecond,
		DisconnectBackoff:     5 * time.Second,
		QueueBufferSize:       5,
		LogoMaxHeight:         120,
		LogoAlign:             "top-right",
		LogoOpacity:           0.8,
		OTLPEndpoint:          "localhost:4317",
		TracingSampleRate:     1.0,
	}

	if path := os.Getenv("HEARTH_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Environment = getEnv("HEARTH_ENV", cfg.Environment)
	cfg.HTTPBind = getEnv("HEARTH_HTTP_BIND", cfg.HTTPBind)
	cfg.HTTPPort = getEnvInt("HEARTH_HTTP_PORT", cfg.HTTPPort)
	cfg.MetricsBind = getEnv("HEARTH_METRICS_BIND", cfg.MetricsBind)
	cfg.DBBackend = DatabaseBackend(getEnv("HEARTH_DB_BACKEND", string(cfg.DBBackend)))
	cfg.DBDSN = getEnv("HEARTH_DB_DSN", cfg.DBDSN)
	cfg.MediaRoot = getEnv("HEARTH_MEDIA_ROOT", cfg.MediaRoot)
	cfg.PlayerBackend = PlayerBackend(getEnv("HEARTH_PLAYER_BACKEND", string(cfg.PlayerBackend)))
	cfg.MPVSocketPath = getEnv("HEARTH_MPV_SOCKET", cfg.MPVSocketPath)
	cfg.VLCAddr = getEnv("HEARTH_VLC_ADDR", cfg.VLCAddr)
	cfg.PlayerConnectAttempts = getEnvInt("HEARTH_PLAYER_CONNECT_ATTEMPTS", cfg.PlayerConnectAttempts)
	cfg.PlayerConnectDelay = getEnvDuration("HEARTH_PLAYER_CONNECT_DELAY", cfg.PlayerConnectDelay)
	cfg.PlayerRequestTimeout = getEnvDuration("HEARTH_PLAYER_REQUEST_TIMEOUT", cfg.PlayerRequestTimeout)
	cfg.PollInterval = getEnvDuration("HEARTH_POLL_INTERVAL", cfg.PollInterval)
	cfg.StopRecheckDelay = getEnvDuration("HEARTH_STOP_RECHECK_DELAY", cfg.StopRecheckDelay)
	cfg.DisconnectBackoff = getEnvDuration("HEARTH_DISCONNECT_BACKOFF", cfg.DisconnectBackoff)
	cfg.QueueBufferSize = getEnvInt("HEARTH_QUEUE_BUFFER_SIZE", cfg.QueueBufferSize)
	cfg.LogoEnabled = getEnvBool("HEARTH_LOGO_ENABLED", cfg.LogoEnabled)
	cfg.LogoPath = getEnv("HEARTH_LOGO_PATH", cfg.LogoPath)
	cfg.LogoMaxHeight = getEnvInt("HEARTH_LOGO_MAX_HEIGHT", cfg.LogoMaxHeight)
	cfg.LogoAlign = getEnv("HEARTH_LOGO_ALIGN", cfg.LogoAlign)
	cfg.LogoOffsetX = getEnvInt("HEARTH_LOGO_OFFSET_X", cfg.LogoOffsetX)
	cfg.LogoOffsetY = getEnvInt("HEARTH_LOGO_OFFSET_Y", cfg.LogoOffsetY)
	cfg.LogoOpacity = getEnvFloat("HEARTH_LOGO_OPACITY", cfg.LogoOpacity)
	cfg.TracingEnabled = getEnvBool("HEARTH_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.OTLPEndpoint = getEnv("HEARTH_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvFloat("HEARTH_TRACING_SAMPLE_RATE", cfg.TracingSampleRate)

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.PlayerBackend != PlayerMPV && cfg.PlayerBackend != PlayerVLC {
		return nil, fmt.Errorf("unsupported player backend %q", cfg.PlayerBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("HEARTH_DB_DSN must be provided")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.QueueBufferSize < 1 {
		return nil, fmt.Errorf("queue buffer size must be >= 1, got %d", cfg.QueueBufferSize)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
