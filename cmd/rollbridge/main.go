package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/rollbridge/internal/auth"
	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/inspect"
	"github.com/danmuck/rollbridge/internal/logging"
	"github.com/danmuck/rollbridge/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "run config path (defaults to a synctest run)")
	frames := flag.Int("frames", 0, "override the number of frames to simulate")
	flag.Parse()

	cfg := defaultRunConfig()
	if *configPath != "" {
		loaded, err := loadRunConfig(*configPath)
		if err != nil {
			observability.InitLogger("rollbridge", logging.DefaultConfig(logging.ProfileRuntime))
			log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load run config")
		}
		cfg = loaded
	}
	if *frames > 0 {
		cfg.Frames = *frames
	}

	logger := observability.InitLogger(cfg.Bridge.Name, cfg.Bridge.Log.Logging(logging.ProfileRuntime))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bridge.New(logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bridge")
	}

	if cfg.Bridge.Inspect.Enabled {
		var validator auth.Validator
		if token := strings.TrimSpace(cfg.Bridge.Inspect.Token); token != "" {
			validator = auth.StaticToken{Token: token}
		}
		srv := inspect.New(cfg.Bridge.Name, cfg.Bridge.Inspect.Addr, b, cfg.Bridge.Inspect.CorsOrigins, validator)
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("inspector stopped")
			}
		}()
	}

	log.Info().
		Str("mode", cfg.Mode.String()).
		Int("frames", cfg.Frames).
		Dur("tick", cfg.Tick).
		Bool("native", cfg.Native).
		Msg("rollbridge run started")

	var sum summary
	switch cfg.Mode {
	case bridge.ModeP2P:
		sum, err = runP2P(ctx, b, cfg)
	default:
		sum, err = runSyncTest(ctx, b, cfg)
	}
	if err != nil {
		log.Fatal().Err(err).Str("summary", sum.String()).Msg("rollbridge run failed")
	}
	log.Info().Str("summary", sum.String()).Msg("rollbridge run finished")
}
