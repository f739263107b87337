package bridge

import (
	"errors"
	"fmt"
	"net"

	"github.com/danmuck/rollbridge/internal/rollback"
)

// Mode selects the session variant a build produces.
type Mode uint8

const (
	ModeSyncTest Mode = iota
	ModeP2P
)

func (m Mode) String() string {
	switch m {
	case ModeSyncTest:
		return "synctest"
	case ModeP2P:
		return "p2p"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidPrediction = errors.New("bridge: max prediction window must be positive")
	ErrInvalidFPS        = errors.New("bridge: fps must be positive")
	ErrInvalidPlayers    = errors.New("bridge: num players must be positive")
	ErrDuplicatePlayer   = errors.New("bridge: duplicate player slot")
	ErrPlayerOutOfRange  = errors.New("bridge: player slot out of range")
	ErrMissingPlayers    = errors.New("bridge: player slot has no owner")
	ErrCheckDistance     = errors.New("bridge: check distance must be below max prediction window")
	ErrInvalidEndpoint   = errors.New("bridge: invalid remote endpoint")
	ErrInvalidDelay      = errors.New("bridge: input delay too large")
	ErrUnknownMode       = errors.New("bridge: unknown session mode")
)

// BuildError reports why a build produced no session.
type BuildError struct {
	Mode Mode
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("bridge: build %s session: %v", e.Mode, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// RemotePlayer places a player slot behind an address handle.
type RemotePlayer struct {
	Player uint32 `json:"player"`
	Addr   uint32 `json:"addr"`
}

// Settings is the staged configuration consumed by a build.
type Settings struct {
	MaxPrediction uint32            `json:"max_prediction"`
	FPS           uint32            `json:"fps"`
	NumPlayers    uint32            `json:"num_players"`
	SparseSaving  bool              `json:"sparse_saving"`
	InputDelay    uint32            `json:"input_delay"`
	CheckDistance uint32            `json:"check_distance"`
	LocalPlayers  []uint32          `json:"local_players,omitempty"`
	RemotePlayers []RemotePlayer    `json:"remote_players,omitempty"`
	BindPort      uint16            `json:"bind_port"`
	NativeSocket  bool              `json:"native_socket"`
	Endpoints     map[uint32]string `json:"endpoints,omitempty"`
}

// Builder defaults for a freshly reset settings record.
func DefaultSettings() Settings {
	def := rollback.DefaultConfig()
	return Settings{
		MaxPrediction: uint32(def.MaxPrediction),
		FPS:           uint32(def.FPS),
		NumPlayers:    uint32(def.NumPlayers),
		InputDelay:    uint32(def.InputDelay),
		CheckDistance: uint32(def.CheckDistance),
	}
}

// clone deep-copies the slices and map so a snapshot is independent of
// later setter calls.
func (s Settings) clone() Settings {
	out := s
	out.LocalPlayers = append([]uint32(nil), s.LocalPlayers...)
	out.RemotePlayers = append([]RemotePlayer(nil), s.RemotePlayers...)
	if s.Endpoints != nil {
		out.Endpoints = make(map[uint32]string, len(s.Endpoints))
		for k, v := range s.Endpoints {
			out.Endpoints[k] = v
		}
	}
	return out
}

// engineConfig maps the settings onto the engine. Check distance only
// applies to SyncTest sessions.
func (s Settings) engineConfig(mode Mode) rollback.Config {
	cfg := rollback.Config{
		NumPlayers:    int(s.NumPlayers),
		MaxPrediction: int(s.MaxPrediction),
		FPS:           int(s.FPS),
		InputDelay:    int(s.InputDelay),
		SparseSaving:  s.SparseSaving,
	}
	if mode == ModeSyncTest {
		cfg.CheckDistance = int(s.CheckDistance)
	}
	return cfg
}

// Validate checks the settings for mode. Player slots must be in range and
// unique in every mode; P2P sessions must also place every slot.
func (s Settings) Validate(mode Mode) error {
	if s.MaxPrediction == 0 {
		return ErrInvalidPrediction
	}
	if s.FPS == 0 {
		return ErrInvalidFPS
	}
	if s.NumPlayers == 0 {
		return ErrInvalidPlayers
	}
	if s.InputDelay > rollback.MaxInputDelay {
		return fmt.Errorf("%w: %d", ErrInvalidDelay, s.InputDelay)
	}
	switch mode {
	case ModeSyncTest:
		if s.CheckDistance >= s.MaxPrediction {
			return fmt.Errorf("%w: %d >= %d", ErrCheckDistance, s.CheckDistance, s.MaxPrediction)
		}
		_, err := s.placeSlots()
		return err
	case ModeP2P:
		return s.validatePlayers()
	default:
		return fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
}

// placeSlots returns the set of slots named by the local and remote lists,
// rejecting out of range and duplicate slots.
func (s Settings) placeSlots() (map[uint32]bool, error) {
	seen := make(map[uint32]bool, s.NumPlayers)
	place := func(slot uint32) error {
		if slot >= s.NumPlayers {
			return fmt.Errorf("%w: %d of %d", ErrPlayerOutOfRange, slot, s.NumPlayers)
		}
		if seen[slot] {
			return fmt.Errorf("%w: %d", ErrDuplicatePlayer, slot)
		}
		seen[slot] = true
		return nil
	}
	for _, slot := range s.LocalPlayers {
		if err := place(slot); err != nil {
			return nil, err
		}
	}
	for _, rp := range s.RemotePlayers {
		if err := place(rp.Player); err != nil {
			return nil, err
		}
	}
	return seen, nil
}

func (s Settings) validatePlayers() error {
	seen, err := s.placeSlots()
	if err != nil {
		return err
	}
	if s.NativeSocket {
		for _, rp := range s.RemotePlayers {
			hostport, ok := s.Endpoints[rp.Addr]
			if !ok {
				return fmt.Errorf("%w: no endpoint for address %d", ErrInvalidEndpoint, rp.Addr)
			}
			if _, _, err := net.SplitHostPort(hostport); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidEndpoint, hostport, err)
			}
		}
	}
	if uint32(len(seen)) != s.NumPlayers {
		return fmt.Errorf("%w: %d of %d placed", ErrMissingPlayers, len(seen), s.NumPlayers)
	}
	return nil
}

func (s Settings) players() []rollback.Player {
	out := make([]rollback.Player, 0, len(s.LocalPlayers)+len(s.RemotePlayers))
	for _, slot := range s.LocalPlayers {
		out = append(out, rollback.Player{Handle: rollback.PlayerHandle(slot), Kind: rollback.PlayerLocal})
	}
	for _, rp := range s.RemotePlayers {
		out = append(out, rollback.Player{
			Handle: rollback.PlayerHandle(rp.Player),
			Kind:   rollback.PlayerRemote,
			Addr:   rollback.AddressHandle(rp.Addr),
		})
	}
	return out
}

func (s Settings) endpointBook() map[rollback.AddressHandle]string {
	book := make(map[rollback.AddressHandle]string, len(s.Endpoints))
	for addr, hostport := range s.Endpoints {
		book[rollback.AddressHandle(addr)] = hostport
	}
	return book
}
