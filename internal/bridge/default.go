package bridge

import (
	"fmt"
	"sync"

	"github.com/danmuck/rollbridge/internal/registry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
)

// Default returns the process-wide Bridge used by the flat ABI. It is
// created on first use with the global logger and is never nil.
func Default() *Bridge {
	defaultOnce.Do(func() {
		defaultBridge = newDefault(log.Logger, New)
	})
	return defaultBridge
}

// newDefault builds the process-wide bridge. When construction fails it
// logs and returns a disabled bridge instead of exiting the host.
func newDefault(logger zerolog.Logger, build func(zerolog.Logger) (*Bridge, error)) *Bridge {
	b, err := build(logger)
	if err == nil {
		return b
	}
	logger.Error().Err(err).Str("component", "bridge").Msg("default bridge disabled")
	return disabledBridge(logger, err)
}

func disabledBridge(logger zerolog.Logger, cause error) *Bridge {
	return &Bridge{
		builder:  NewBuilder(),
		sessions: registry.New[*session](),
		logger:   logger.With().Str("component", "bridge").Logger(),
		disabled: fmt.Errorf("%w: %v", ErrUnavailable, cause),
	}
}
