package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/logging"
	"github.com/pelletier/go-toml/v2"
)

// BridgeConfig is the process profile: builder defaults, logging, and the
// optional inspector.
type BridgeConfig struct {
	Name    string        `toml:"name"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
	Inspect InspectConfig `toml:"inspect"`
}

// SessionConfig seeds the builder before any caller setters run.
type SessionConfig struct {
	MaxPrediction uint32 `toml:"max_prediction"`
	FPS           uint32 `toml:"fps"`
	NumPlayers    uint32 `toml:"num_players"`
	SparseSaving  bool   `toml:"sparse_saving"`
	InputDelay    uint32 `toml:"input_delay"`
	CheckDistance uint32 `toml:"check_distance"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Timestamp  bool   `toml:"timestamp"`
	NoColor    bool   `toml:"no_color"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Compress   bool   `toml:"compress"`
}

type InspectConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	// Token, when set, is required as a bearer token on session routes.
	Token string `toml:"token"`
}

func DefaultBridgeConfig() BridgeConfig {
	s := bridge.DefaultSettings()
	return BridgeConfig{
		Name: "rollbridge",
		Session: SessionConfig{
			MaxPrediction: s.MaxPrediction,
			FPS:           s.FPS,
			NumPlayers:    s.NumPlayers,
			SparseSaving:  s.SparseSaving,
			InputDelay:    s.InputDelay,
			CheckDistance: s.CheckDistance,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Inspect: InspectConfig{
			Addr: "127.0.0.1:9400",
		},
	}
}

// LoadBridgeConfig reads path over the defaults and validates the result.
func LoadBridgeConfig(path string) (BridgeConfig, error) {
	cfg := DefaultBridgeConfig()
	if err := loadToml(path, &cfg); err != nil {
		return BridgeConfig{}, err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "rollbridge"
	}
	if err := ValidateBridgeConfig(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateBridgeConfig(cfg BridgeConfig) error {
	if err := cfg.Session.Settings().Validate(bridge.ModeSyncTest); err != nil {
		return fmt.Errorf("session invalid: %w", err)
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok && strings.TrimSpace(cfg.Log.Level) != "" {
		return fmt.Errorf("log level invalid: %q", cfg.Log.Level)
	}
	if cfg.Inspect.Enabled && strings.TrimSpace(cfg.Inspect.Addr) == "" {
		return fmt.Errorf("inspect config missing addr")
	}
	return nil
}

// Settings converts the session defaults to staged builder settings.
func (c SessionConfig) Settings() bridge.Settings {
	s := bridge.DefaultSettings()
	s.MaxPrediction = c.MaxPrediction
	s.FPS = c.FPS
	s.NumPlayers = c.NumPlayers
	s.SparseSaving = c.SparseSaving
	s.InputDelay = c.InputDelay
	s.CheckDistance = c.CheckDistance
	return s
}

// Apply stages the session defaults on b.
func (c SessionConfig) Apply(b *bridge.Bridge) {
	b.BuilderSetMaxPredictionWindow(c.MaxPrediction)
	b.BuilderSetFPS(c.FPS)
	b.BuilderSetNumPlayers(c.NumPlayers)
	b.BuilderSetSparseSaving(c.SparseSaving)
	b.BuilderSetInputDelay(c.InputDelay)
	b.BuilderSetCheckDistance(c.CheckDistance)
}

// Logging maps the log section onto a logger config for profile.
func (c LogConfig) Logging(profile logging.Profile) logging.Config {
	cfg := logging.DefaultConfig(profile)
	if level, ok := logging.ParseLevel(c.Level); ok {
		cfg.Level = level
	}
	cfg.Timestamp = c.Timestamp
	cfg.NoColor = c.NoColor
	cfg.File = strings.TrimSpace(c.File)
	if c.MaxSizeMB > 0 {
		cfg.MaxSizeMB = c.MaxSizeMB
	}
	if c.MaxBackups > 0 {
		cfg.MaxBackups = c.MaxBackups
	}
	cfg.Compress = c.Compress
	return cfg
}
