package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/logging"
	"github.com/danmuck/rollbridge/internal/testutil/testlog"
	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadBridgeConfigTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "bridge.toml")
	if err := WriteTemplate(path, "bridge", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := LoadBridgeConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Name != "rollbridge" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}
	if cfg.Session.Settings().MaxPrediction != 8 || cfg.Session.FPS != 60 || cfg.Session.NumPlayers != 2 {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Inspect.Enabled || cfg.Inspect.Addr != "127.0.0.1:9400" {
		t.Fatalf("unexpected inspect config: %+v", cfg.Inspect)
	}
	if len(cfg.Inspect.CorsOrigins) != 1 {
		t.Fatalf("unexpected cors origins: %+v", cfg.Inspect.CorsOrigins)
	}
}

func TestLoadBridgeConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "[session]\nfps = 30\n")
	cfg, err := LoadBridgeConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Name != "rollbridge" || cfg.Session.FPS != 30 || cfg.Session.MaxPrediction != 8 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxSizeMB != 50 {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadBridgeConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"prediction":     "[session]\nmax_prediction = 0\n",
		"check distance": "[session]\ncheck_distance = 9\n",
		"log level":      "[log]\nlevel = \"loud\"\n",
		"inspect addr":   "[inspect]\nenabled = true\naddr = \"\"\n",
		"syntax":         "name = \n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadBridgeConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected load failure")
			}
		})
	}

	_, err := LoadBridgeConfig(writeConfig(t, "[session]\nfps = 0\n"))
	if !errors.Is(err, bridge.ErrInvalidFPS) {
		t.Fatalf("expected ErrInvalidFPS, got %v", err)
	}
	if _, err := LoadBridgeConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestSessionConfigApply(t *testing.T) {
	testlog.Start(t)
	b, err := bridge.New(zerolog.Nop())
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	sc := SessionConfig{MaxPrediction: 6, FPS: 30, NumPlayers: 3, SparseSaving: true, InputDelay: 2, CheckDistance: 1}
	sc.Apply(b)
	got := b.BuilderSettings()
	want := sc.Settings()
	if got.MaxPrediction != want.MaxPrediction || got.FPS != want.FPS || got.NumPlayers != want.NumPlayers ||
		got.SparseSaving != want.SparseSaving || got.InputDelay != want.InputDelay || got.CheckDistance != want.CheckDistance {
		t.Fatalf("staged settings mismatch: got=%+v want=%+v", got, want)
	}
}

func TestLogConfigMapping(t *testing.T) {
	testlog.Start(t)
	lc := LogConfig{Level: "warn", NoColor: true, File: " /tmp/rb.log ", MaxSizeMB: 5}
	cfg := lc.Logging(logging.ProfileRuntime)
	if cfg.Level != zerolog.WarnLevel || !cfg.NoColor || cfg.File != "/tmp/rb.log" || cfg.MaxSizeMB != 5 {
		t.Fatalf("unexpected logging config: %+v", cfg)
	}
}

func TestTemplates(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"bridge", "run", " Bridge "} {
		if _, err := Template(kind); err != nil {
			t.Fatalf("template %q: %v", kind, err)
		}
	}
	if _, err := Template("ghost"); err == nil || !strings.Contains(err.Error(), "unknown config kind") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "run.toml")
	if err := WriteTemplate(path, "run", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, "run", false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if err := WriteTemplate(path, "run", true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
}
