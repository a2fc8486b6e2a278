// Package config loads server settings from defaults, an optional TOML file
// and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"remote-pong/internal/game"
	servernet "remote-pong/internal/net"
	"remote-pong/internal/telemetry"
)

const (
	DefaultFile    = "pong.toml"
	FileEnv        = "PONG_CONFIG"
	DefaultTickHz  = 60
	maxTickHz      = 1000
	defaultLogPath = "pong-events.ndjson"
)

type Config struct {
	CertPath      string        `toml:"cert_path"`
	KeyPath       string        `toml:"key_path"`
	ControlAddr   string        `toml:"control_addr"`
	AssetsAddr    string        `toml:"assets_addr"`
	AssetsDir     string        `toml:"assets_dir"`
	TickRate      int           `toml:"tick_rate"`
	Mode          game.Mode     `toml:"mode"`
	Seed          int64         `toml:"seed"`
	SentryDSN     string        `toml:"sentry_dsn"`
	StatsViewAddr string        `toml:"statsview_addr"`
	Log           LogConfig     `toml:"log"`
	Physics       PhysicsConfig `toml:"physics"`
}

type LogConfig struct {
	Sinks    []string `toml:"sinks"`
	JSONPath string   `toml:"json_path"`
	Level    string   `toml:"level"`
}

type PhysicsConfig struct {
	TimeScale   float32 `toml:"time_scale"`
	MaxDt       float32 `toml:"max_dt"`
	MaxSubsteps int     `toml:"max_substeps"`
}

func Default() Config {
	return Config{
		CertPath:    servernet.DefaultCertPath,
		KeyPath:     servernet.DefaultKeyPath,
		ControlAddr: servernet.DefaultControlAddr,
		AssetsAddr:  servernet.DefaultAssetsAddr,
		AssetsDir:   servernet.DefaultAssetsDir,
		TickRate:    DefaultTickHz,
		Mode:        game.ModePlay,
		Log: LogConfig{
			Sinks:    []string{"console"},
			JSONPath: defaultLogPath,
			Level:    "info",
		},
	}
}

// Load builds the configuration for this process. A file named by
// PONG_CONFIG must exist; pong.toml in the working directory is optional.
func Load(logger telemetry.Logger) (Config, error) {
	cfg := Default()

	path := os.Getenv(FileEnv)
	required := path != ""
	if !required {
		path = DefaultFile
	}
	if err := cfg.decodeFile(path, required, logger); err != nil {
		return Config{}, err
	}

	cfg.ApplyEnv(os.Getenv, logger)
	return cfg, nil
}

func (c *Config) decodeFile(path string, required bool, logger telemetry.Logger) error {
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		logf(logger, "unknown config key %q in %s", key.String(), path)
	}
	if _, err := game.ParseMode(string(c.Mode)); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if c.TickRate <= 0 || c.TickRate > maxTickHz {
		return fmt.Errorf("config %s: tick_rate %d out of range", path, c.TickRate)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables. Invalid values are
// logged and the previous value is kept.
func (c *Config) ApplyEnv(getenv func(string) string, logger telemetry.Logger) {
	setString := func(key string, dst *string) {
		if raw := getenv(key); raw != "" {
			*dst = raw
		}
	}
	setString("SSL_CERT_PATH", &c.CertPath)
	setString("SSL_KEY_PATH", &c.KeyPath)
	setString("CONTROL_ADDR", &c.ControlAddr)
	setString("ASSETS_ADDR", &c.AssetsAddr)
	setString("ASSETS_DIR", &c.AssetsDir)
	setString("SENTRY_DSN", &c.SentryDSN)
	setString("STATSVIEW_ADDR", &c.StatsViewAddr)
	setString("LOG_JSON_PATH", &c.Log.JSONPath)

	if raw := getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err != nil {
			logf(logger, "invalid TICK_RATE=%q: %v", raw, err)
		} else if value <= 0 || value > maxTickHz {
			logf(logger, "invalid TICK_RATE=%q: out of range", raw)
		} else {
			c.TickRate = value
		}
	}
	if raw := getenv("GAME_MODE"); raw != "" {
		if mode, err := game.ParseMode(raw); err != nil {
			logf(logger, "invalid GAME_MODE=%q: %v", raw, err)
		} else {
			c.Mode = mode
		}
	}
	if raw := getenv("GAME_SEED"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err != nil {
			logf(logger, "invalid GAME_SEED=%q: %v", raw, err)
		} else {
			c.Seed = value
		}
	}
	if raw := getenv("LOG_SINKS"); raw != "" {
		var sinks []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				sinks = append(sinks, name)
			}
		}
		c.Log.Sinks = sinks
	}
	if raw := getenv("LOG_LEVEL"); raw != "" {
		c.Log.Level = strings.ToLower(raw)
	}
}

func logf(logger telemetry.Logger, format string, args ...any) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
