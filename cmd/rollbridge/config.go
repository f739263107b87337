package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/config"
)

type fileConfig struct {
	Profile       string `toml:"profile"`
	Mode          string `toml:"mode"`
	Frames        int    `toml:"frames"`
	Tick          string `toml:"tick"`
	MaxPrediction uint32 `toml:"max_prediction"`
	InputDelay    uint32 `toml:"input_delay"`
	CheckDistance uint32 `toml:"check_distance"`
	SparseSaving  bool   `toml:"sparse_saving"`
	Inspect       bool   `toml:"inspect"`
	InspectAddr   string `toml:"inspect_addr"`
	Native        bool   `toml:"native"`
	PortA         int    `toml:"port_a"`
	PortB         int    `toml:"port_b"`
}

type runConfig struct {
	Bridge config.BridgeConfig
	Mode   bridge.Mode
	Frames int
	Tick   time.Duration
	Native bool
	PortA  uint16
	PortB  uint16
}

func defaultRunConfig() runConfig {
	return runConfig{
		Bridge: config.DefaultBridgeConfig(),
		Mode:   bridge.ModeSyncTest,
		Frames: 600,
		Tick:   time.Second / 60,
		PortA:  7400,
		PortB:  7401,
	}
}

func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load run config: %w", err)
	}

	if meta.IsDefined("profile") {
		if profile := strings.TrimSpace(raw.Profile); profile != "" {
			bc, err := config.LoadBridgeConfig(profile)
			if err != nil {
				return runConfig{}, err
			}
			cfg.Bridge = bc
		}
	}

	if meta.IsDefined("mode") {
		mode, err := parseMode(raw.Mode)
		if err != nil {
			return runConfig{}, err
		}
		cfg.Mode = mode
	}

	if meta.IsDefined("frames") {
		if raw.Frames <= 0 {
			return runConfig{}, fmt.Errorf("frames must be positive: %d", raw.Frames)
		}
		cfg.Frames = raw.Frames
	}

	if meta.IsDefined("tick") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Tick))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse tick: %w", err)
		}
		cfg.Tick = d
	}

	if meta.IsDefined("max_prediction") {
		cfg.Bridge.Session.MaxPrediction = raw.MaxPrediction
	}

	if meta.IsDefined("input_delay") {
		cfg.Bridge.Session.InputDelay = raw.InputDelay
	}

	if meta.IsDefined("check_distance") {
		cfg.Bridge.Session.CheckDistance = raw.CheckDistance
	}

	if meta.IsDefined("sparse_saving") {
		cfg.Bridge.Session.SparseSaving = raw.SparseSaving
	}

	if meta.IsDefined("inspect") {
		cfg.Bridge.Inspect.Enabled = raw.Inspect
	}

	if meta.IsDefined("inspect_addr") {
		cfg.Bridge.Inspect.Addr = strings.TrimSpace(raw.InspectAddr)
	}

	if meta.IsDefined("native") {
		cfg.Native = raw.Native
	}

	if meta.IsDefined("port_a") {
		port, err := parsePort(raw.PortA)
		if err != nil {
			return runConfig{}, err
		}
		cfg.PortA = port
	}

	if meta.IsDefined("port_b") {
		port, err := parsePort(raw.PortB)
		if err != nil {
			return runConfig{}, err
		}
		cfg.PortB = port
	}

	if err := config.ValidateBridgeConfig(cfg.Bridge); err != nil {
		return runConfig{}, err
	}
	return cfg, nil
}

func parseMode(raw string) (bridge.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "synctest", "sync_test", "":
		return bridge.ModeSyncTest, nil
	case "p2p", "peer":
		return bridge.ModeP2P, nil
	default:
		return 0, fmt.Errorf("unknown mode: %q", raw)
	}
}

func parsePort(v int) (uint16, error) {
	if v <= 0 || v > 65535 {
		return 0, fmt.Errorf("port out of range: %d", v)
	}
	return uint16(v), nil
}
