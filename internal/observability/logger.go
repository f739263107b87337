package observability

import (
	"github.com/danmuck/rollbridge/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the global logger for app and returns it. Env
// overrides win over cfg.
func InitLogger(app string, cfg logging.Config) zerolog.Logger {
	logger := logging.New(logging.WithEnv(cfg)).With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
