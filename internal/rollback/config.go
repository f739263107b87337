package rollback

import "fmt"

const (
	DefaultMaxPrediction = 8
	DefaultFPS           = 60
	DefaultNumPlayers    = 2
	MaxInputDelay        = 128
)

// Config holds the engine options shared by both session kinds.
type Config struct {
	NumPlayers    int
	MaxPrediction int
	FPS           int
	InputDelay    int
	SparseSaving  bool
	// CheckDistance is the SyncTest rollback distance. 0 disables checks.
	CheckDistance int
}

func DefaultConfig() Config {
	return Config{
		NumPlayers:    DefaultNumPlayers,
		MaxPrediction: DefaultMaxPrediction,
		FPS:           DefaultFPS,
	}
}

func (c Config) Validate() error {
	if c.NumPlayers <= 0 {
		return fmt.Errorf("%w: num_players must be positive", ErrInvalidConfig)
	}
	if c.MaxPrediction <= 0 {
		return fmt.Errorf("%w: max_prediction must be positive", ErrInvalidConfig)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidConfig)
	}
	if c.InputDelay < 0 || c.InputDelay > MaxInputDelay {
		return fmt.Errorf("%w: input_delay out of range: %d", ErrInvalidConfig, c.InputDelay)
	}
	if c.CheckDistance < 0 || c.CheckDistance >= c.MaxPrediction {
		return fmt.Errorf("%w: check_distance must be below max_prediction", ErrInvalidConfig)
	}
	return nil
}

func (c Config) ringSize() int {
	return c.MaxPrediction + 2
}
