package rollback

import "fmt"

// SyncTestSession drives every player locally. With a CheckDistance it
// rolls back and resimulates each frame to surface nondeterminism.
type SyncTestSession struct {
	cfg       Config
	current   Frame
	pending   map[PlayerHandle]Input
	inputs    []*inputLog
	states    savedStates
	checksums map[Frame]uint64
}

func NewSyncTestSession(cfg Config) (*SyncTestSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &SyncTestSession{
		cfg:       cfg,
		pending:   make(map[PlayerHandle]Input),
		inputs:    make([]*inputLog, cfg.NumPlayers),
		states:    newSavedStates(cfg.ringSize()),
		checksums: make(map[Frame]uint64),
	}
	for i := range s.inputs {
		s.inputs[i] = newInputLog()
	}
	return s, nil
}

func (s *SyncTestSession) NumPlayers() int {
	return s.cfg.NumPlayers
}

func (s *SyncTestSession) CurrentFrame() Frame {
	return s.current
}

func (s *SyncTestSession) AddLocalInput(player PlayerHandle, input Input) error {
	if int(player) >= s.cfg.NumPlayers {
		return fmt.Errorf("%w: %d", ErrInvalidPlayer, player)
	}
	s.pending[player] = input
	return nil
}

// AdvanceFrame consumes the staged inputs and returns the batch for this
// frame. On error nothing is consumed.
func (s *SyncTestSession) AdvanceFrame() ([]Request, error) {
	for p := 0; p < s.cfg.NumPlayers; p++ {
		if _, ok := s.pending[PlayerHandle(p)]; !ok {
			return nil, fmt.Errorf("%w: player %d", ErrMissingInput, p)
		}
	}

	dist := Frame(s.cfg.CheckDistance)
	var reqs []Request
	if dist > 0 && s.current > dist {
		if err := s.verifyChecksums(); err != nil {
			return nil, err
		}
		reqs = s.resimulate(s.current-dist, reqs)
	}

	target := s.current + Frame(s.cfg.InputDelay)
	for p, in := range s.pending {
		s.inputs[p].set(target, in)
	}
	clear(s.pending)

	if dist > 0 {
		reqs = append(reqs, SaveGameState{Cell: s.states.cell(s.current), Frame: s.current})
	}
	reqs = append(reqs, AdvanceFrame{Frame: s.current, Inputs: s.inputsAt(s.current)})
	s.current++
	s.prune()
	return reqs, nil
}

func (s *SyncTestSession) resimulate(from Frame, reqs []Request) []Request {
	reqs = append(reqs, LoadGameState{Cell: s.states.cell(from), Frame: from})
	for f := from; f < s.current; f++ {
		if f > from {
			reqs = append(reqs, SaveGameState{Cell: s.states.cell(f), Frame: f})
		}
		reqs = append(reqs, AdvanceFrame{Frame: f, Inputs: s.inputsAt(f)})
	}
	return reqs
}

// verifyChecksums compares the checksum stored for each saved frame with the
// first checksum seen for that frame.
func (s *SyncTestSession) verifyChecksums() error {
	for _, c := range s.states.cells {
		f := c.Frame()
		if f == NullFrame {
			continue
		}
		sum, ok := c.Checksum()
		if !ok {
			continue
		}
		prev, seen := s.checksums[f]
		if !seen {
			s.checksums[f] = sum
			continue
		}
		if prev != sum {
			return fmt.Errorf("%w: frame %d", ErrMismatchedChecksum, f)
		}
	}
	return nil
}

func (s *SyncTestSession) inputsAt(f Frame) []PlayerInput {
	out := make([]PlayerInput, s.cfg.NumPlayers)
	for p := range out {
		in, _ := s.inputs[p].get(f)
		out[p] = PlayerInput{Input: in, Status: InputConfirmed}
	}
	return out
}

func (s *SyncTestSession) prune() {
	before := s.current - Frame(s.cfg.ringSize())
	if before <= 0 {
		return
	}
	for _, l := range s.inputs {
		l.prune(before)
	}
	for f := range s.checksums {
		if f < before {
			delete(s.checksums, f)
		}
	}
}
