package rollback

import "errors"

// Frame numbers a simulation step. NullFrame marks "no frame".
type Frame int32

const NullFrame Frame = -1

// PlayerHandle is a player slot, 0..NumPlayers-1.
type PlayerHandle uint32

// Input is the fixed-width per-player input for one frame.
type Input uint32

// AddressHandle names a remote endpoint; its meaning belongs to the socket.
type AddressHandle uint32

type InputStatus uint8

const (
	InputConfirmed InputStatus = iota
	InputPredicted
	InputDisconnected
)

// PlayerInput is one player's input for a frame as handed to the game.
type PlayerInput struct {
	Input  Input
	Status InputStatus
}

type SessionState uint8

const (
	StateSynchronizing SessionState = iota
	StateRunning
)

func (s SessionState) String() string {
	switch s {
	case StateSynchronizing:
		return "synchronizing"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

type PlayerKind uint8

const (
	PlayerLocal PlayerKind = iota
	PlayerRemote
)

// Player places a slot either locally or behind a remote address.
type Player struct {
	Handle PlayerHandle
	Kind   PlayerKind
	Addr   AddressHandle
}

var (
	ErrInvalidConfig       = errors.New("rollback: invalid config")
	ErrInvalidPlayer       = errors.New("rollback: invalid player handle")
	ErrMissingInput        = errors.New("rollback: missing local input")
	ErrPredictionThreshold = errors.New("rollback: prediction threshold reached")
	ErrNotSynchronized     = errors.New("rollback: session not synchronized")
	ErrMismatchedChecksum  = errors.New("rollback: mismatched checksum")
	ErrNilSocket           = errors.New("rollback: nil socket")
)
