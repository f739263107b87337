package rollback

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// NumSyncPackets is the number of sync round trips before an endpoint runs.
	NumSyncPackets = 5
	// MaxInputsPerMessage bounds the input values carried by one message.
	MaxInputsPerMessage = 40

	retryInterval = 200 * time.Millisecond
)

type endpoint struct {
	addr          AddressHandle
	players       []PlayerHandle
	state         SessionState
	syncRemaining int
	syncRandom    uint32
	remoteFrame   Frame
	ackedFrame    Frame
	retry         *rate.Limiter
}

// P2PSession synchronizes local and remote players over a NonBlockingSocket,
// predicting missing remote inputs and rolling back on mispredictions.
type P2PSession struct {
	cfg       Config
	socket    NonBlockingSocket
	local     []PlayerHandle
	remote    []PlayerHandle
	isLocal   []bool
	endpoints []*endpoint
	byAddr    map[AddressHandle]*endpoint

	current        Frame
	pending        map[PlayerHandle]Input
	inputs         []*inputLog
	used           []*inputLog
	lastConfirmed  []Frame
	firstIncorrect Frame
	lastSaved      Frame
	states         savedStates
}

func NewP2PSession(cfg Config, players []Player, socket NonBlockingSocket) (*P2PSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if socket == nil {
		return nil, ErrNilSocket
	}
	if len(players) != cfg.NumPlayers {
		return nil, fmt.Errorf("%w: got %d players, want %d", ErrInvalidPlayer, len(players), cfg.NumPlayers)
	}

	s := &P2PSession{
		cfg:            cfg,
		socket:         socket,
		isLocal:        make([]bool, cfg.NumPlayers),
		byAddr:         make(map[AddressHandle]*endpoint),
		pending:        make(map[PlayerHandle]Input),
		inputs:         make([]*inputLog, cfg.NumPlayers),
		used:           make([]*inputLog, cfg.NumPlayers),
		lastConfirmed:  make([]Frame, cfg.NumPlayers),
		firstIncorrect: NullFrame,
		lastSaved:      NullFrame,
		states:         newSavedStates(cfg.ringSize()),
	}

	seen := make([]bool, cfg.NumPlayers)
	for _, p := range players {
		if int(p.Handle) >= cfg.NumPlayers || seen[p.Handle] {
			return nil, fmt.Errorf("%w: %d", ErrInvalidPlayer, p.Handle)
		}
		seen[p.Handle] = true
		s.inputs[p.Handle] = newInputLog()
		s.used[p.Handle] = newInputLog()
		switch p.Kind {
		case PlayerLocal:
			s.local = append(s.local, p.Handle)
			s.isLocal[p.Handle] = true
			s.lastConfirmed[p.Handle] = Frame(cfg.InputDelay) - 1
		default:
			s.remote = append(s.remote, p.Handle)
			s.lastConfirmed[p.Handle] = NullFrame
			ep, ok := s.byAddr[p.Addr]
			if !ok {
				ep = &endpoint{
					addr:          p.Addr,
					syncRemaining: NumSyncPackets,
					ackedFrame:    NullFrame,
					retry:         rate.NewLimiter(rate.Every(retryInterval), 1),
				}
				s.byAddr[p.Addr] = ep
				s.endpoints = append(s.endpoints, ep)
			}
			ep.players = append(ep.players, p.Handle)
		}
	}
	if len(s.local) == 0 {
		return nil, fmt.Errorf("%w: no local players", ErrInvalidPlayer)
	}

	sortHandles(s.local)
	sortHandles(s.remote)
	sort.Slice(s.endpoints, func(i, j int) bool {
		return s.endpoints[i].addr < s.endpoints[j].addr
	})
	for _, ep := range s.endpoints {
		sortHandles(ep.players)
	}
	return s, nil
}

func (s *P2PSession) NumPlayers() int {
	return s.cfg.NumPlayers
}

func (s *P2PSession) CurrentFrame() Frame {
	return s.current
}

func (s *P2PSession) LocalPlayers() []PlayerHandle {
	return append([]PlayerHandle(nil), s.local...)
}

func (s *P2PSession) CurrentState() SessionState {
	for _, ep := range s.endpoints {
		if ep.state != StateRunning {
			return StateSynchronizing
		}
	}
	return StateRunning
}

// FramesAhead estimates how far the local simulation runs ahead of the
// slowest remote endpoint.
func (s *P2PSession) FramesAhead() int {
	if s.CurrentState() != StateRunning || len(s.endpoints) == 0 {
		return 0
	}
	slowest := s.endpoints[0].remoteFrame
	for _, ep := range s.endpoints[1:] {
		if ep.remoteFrame < slowest {
			slowest = ep.remoteFrame
		}
	}
	if ahead := int(s.current - slowest); ahead > 0 {
		return ahead
	}
	return 0
}

func (s *P2PSession) AddLocalInput(player PlayerHandle, input Input) error {
	if int(player) >= s.cfg.NumPlayers || !s.isLocal[player] {
		return fmt.Errorf("%w: %d is not local", ErrInvalidPlayer, player)
	}
	s.pending[player] = input
	return nil
}

// PollRemoteClients processes received messages and retries handshakes and
// unacknowledged inputs.
func (s *P2PSession) PollRemoteClients() {
	for _, m := range s.socket.ReceiveAllMessages() {
		ep, ok := s.byAddr[m.Addr]
		if !ok {
			log.Debug().Str("component", "rollback").Uint32("addr", uint32(m.Addr)).Msg("message from unknown address")
			continue
		}
		s.handleMessage(ep, m.Msg)
	}
	latest := s.latestLocalFrame()
	for _, ep := range s.endpoints {
		switch {
		case ep.state == StateSynchronizing:
			if ep.retry.Allow() {
				s.sendSyncRequest(ep)
			}
		case ep.ackedFrame < latest:
			if ep.retry.Allow() {
				s.sendInputs(ep)
			}
		}
	}
}

// AdvanceFrame consumes the staged local inputs and returns the batch for
// this frame, including any rollback. On error nothing is consumed.
func (s *P2PSession) AdvanceFrame() ([]Request, error) {
	if s.CurrentState() != StateRunning {
		return nil, ErrNotSynchronized
	}
	for _, p := range s.local {
		if _, ok := s.pending[p]; !ok {
			return nil, fmt.Errorf("%w: player %d", ErrMissingInput, p)
		}
	}
	confirmed := s.minConfirmedFrame()
	if s.current-confirmed > Frame(s.cfg.MaxPrediction) {
		return nil, fmt.Errorf("%w: frame %d confirmed %d", ErrPredictionThreshold, s.current, confirmed)
	}

	var reqs []Request
	switch {
	case s.firstIncorrect != NullFrame:
		reqs = s.rollback(reqs)
	case s.cfg.SparseSaving && s.lastSaved != NullFrame &&
		s.current-s.lastSaved >= Frame(s.cfg.MaxPrediction) && confirmed+1 > s.lastSaved:
		// Refresh the sparse save before it leaves the ring.
		reqs = s.rollback(reqs)
	}

	target := s.current + Frame(s.cfg.InputDelay)
	for _, p := range s.local {
		s.inputs[p].set(target, s.pending[p])
		s.lastConfirmed[p] = target
	}
	clear(s.pending)

	if s.shouldSave(s.current, false) {
		reqs = append(reqs, s.save(s.current))
	}
	reqs = append(reqs, AdvanceFrame{Frame: s.current, Inputs: s.inputsAt(s.current)})
	s.current++

	for _, ep := range s.endpoints {
		s.sendInputs(ep)
	}
	s.prune()
	return reqs, nil
}

func (s *P2PSession) rollback(reqs []Request) []Request {
	from := s.firstIncorrect
	if s.cfg.SparseSaving || from == NullFrame {
		from = s.lastSaved
	}
	log.Debug().Str("component", "rollback").Int32("from", int32(from)).Int32("to", int32(s.current)).Msg("rollback")

	reqs = append(reqs, LoadGameState{Cell: s.states.cell(from), Frame: from})
	for f := from; f < s.current; f++ {
		if f > from && s.shouldSave(f, true) {
			reqs = append(reqs, s.save(f))
		}
		reqs = append(reqs, AdvanceFrame{Frame: f, Inputs: s.inputsAt(f)})
	}
	s.firstIncorrect = NullFrame
	return reqs
}

// shouldSave reports whether the state before frame f is stored. Sparse
// saving keeps only states fully determined by confirmed inputs.
func (s *P2PSession) shouldSave(f Frame, resim bool) bool {
	if !s.cfg.SparseSaving {
		return true
	}
	confirmed := s.minConfirmedFrame()
	if f-1 > confirmed {
		return false
	}
	if resim {
		latest := confirmed + 1
		if latest > s.current {
			latest = s.current
		}
		return f == latest
	}
	return true
}

func (s *P2PSession) save(f Frame) Request {
	s.lastSaved = f
	return SaveGameState{Cell: s.states.cell(f), Frame: f}
}

func (s *P2PSession) inputsAt(f Frame) []PlayerInput {
	out := make([]PlayerInput, s.cfg.NumPlayers)
	for p := range out {
		if in, ok := s.inputs[p].get(f); ok {
			out[p] = PlayerInput{Input: in, Status: InputConfirmed}
			continue
		}
		if s.isLocal[p] {
			// Frames inside the input delay carry the zero input.
			out[p] = PlayerInput{Status: InputConfirmed}
			continue
		}
		predicted, _ := s.inputs[p].get(s.lastConfirmed[p])
		s.used[p].set(f, predicted)
		out[p] = PlayerInput{Input: predicted, Status: InputPredicted}
	}
	return out
}

func (s *P2PSession) minConfirmedFrame() Frame {
	if len(s.remote) == 0 {
		return s.current
	}
	lowest := s.lastConfirmed[s.remote[0]]
	for _, p := range s.remote[1:] {
		if s.lastConfirmed[p] < lowest {
			lowest = s.lastConfirmed[p]
		}
	}
	return lowest
}

func (s *P2PSession) latestLocalFrame() Frame {
	return s.current - 1 + Frame(s.cfg.InputDelay)
}

func (s *P2PSession) handleMessage(ep *endpoint, msg Message) {
	switch msg.Kind {
	case MsgSyncRequest:
		s.socket.SendTo(&Message{Kind: MsgSyncReply, Random: msg.Random}, ep.addr)
	case MsgSyncReply:
		if ep.state != StateSynchronizing || msg.Random != ep.syncRandom {
			return
		}
		ep.syncRemaining--
		if ep.syncRemaining > 0 {
			s.sendSyncRequest(ep)
			return
		}
		ep.state = StateRunning
		log.Info().Str("component", "rollback").Uint32("addr", uint32(ep.addr)).Msg("endpoint synchronized")
	case MsgInput:
		if ep.state != StateRunning {
			return
		}
		s.receiveInputs(ep, msg)
	case MsgInputAck:
		if msg.AckFrame > ep.ackedFrame {
			ep.ackedFrame = msg.AckFrame
		}
	}
}

func (s *P2PSession) receiveInputs(ep *endpoint, msg Message) {
	stride := len(ep.players)
	if stride == 0 || len(msg.Inputs)%stride != 0 {
		return
	}
	if msg.Frame > ep.remoteFrame {
		ep.remoteFrame = msg.Frame
	}
	if msg.AckFrame > ep.ackedFrame {
		ep.ackedFrame = msg.AckFrame
	}
	frames := len(msg.Inputs) / stride
	for i := 0; i < frames; i++ {
		f := msg.StartFrame + Frame(i)
		for j, p := range ep.players {
			s.confirmRemote(p, f, msg.Inputs[i*stride+j])
		}
	}
	ack := s.lastConfirmed[ep.players[0]]
	for _, p := range ep.players[1:] {
		if s.lastConfirmed[p] < ack {
			ack = s.lastConfirmed[p]
		}
	}
	s.socket.SendTo(&Message{Kind: MsgInputAck, AckFrame: ack}, ep.addr)
}

func (s *P2PSession) confirmRemote(p PlayerHandle, f Frame, in Input) {
	if f != s.lastConfirmed[p]+1 {
		return
	}
	s.inputs[p].set(f, in)
	s.lastConfirmed[p] = f
	if used, ok := s.used[p].get(f); ok && used != in && f < s.current {
		if s.firstIncorrect == NullFrame || f < s.firstIncorrect {
			s.firstIncorrect = f
		}
	}
}

func (s *P2PSession) sendSyncRequest(ep *endpoint) {
	ep.syncRandom = rand.Uint32()
	s.socket.SendTo(&Message{Kind: MsgSyncRequest, Random: ep.syncRandom}, ep.addr)
}

// sendInputs sends the local inputs the endpoint has not acknowledged,
// oldest first so the receiver can confirm them contiguously.
func (s *P2PSession) sendInputs(ep *endpoint) {
	latest := s.latestLocalFrame()
	start := ep.ackedFrame + 1
	if start > latest {
		return
	}
	stride := len(s.local)
	maxFrames := MaxInputsPerMessage / stride
	if maxFrames < 1 {
		maxFrames = 1
	}
	end := latest
	if end-start+1 > Frame(maxFrames) {
		end = start + Frame(maxFrames) - 1
	}

	values := make([]Input, 0, int(end-start+1)*stride)
	for f := start; f <= end; f++ {
		for _, p := range s.local {
			in, _ := s.inputs[p].get(f)
			values = append(values, in)
		}
	}
	ack := NullFrame
	if len(ep.players) > 0 {
		ack = s.lastConfirmed[ep.players[0]]
	}
	s.socket.SendTo(&Message{
		Kind:       MsgInput,
		Frame:      s.current,
		StartFrame: start,
		AckFrame:   ack,
		Inputs:     values,
	}, ep.addr)
}

func (s *P2PSession) prune() {
	before := s.current - Frame(2*s.cfg.ringSize())
	if s.cfg.SparseSaving && s.lastSaved != NullFrame && s.lastSaved < before {
		before = s.lastSaved
	}
	if before <= 0 {
		return
	}
	localBefore := before
	for _, ep := range s.endpoints {
		if ep.ackedFrame+1 < localBefore {
			localBefore = ep.ackedFrame + 1
		}
	}
	for p := range s.inputs {
		if s.isLocal[p] {
			s.inputs[p].prune(localBefore)
			continue
		}
		// The last confirmed input seeds predictions.
		keep := before
		if s.lastConfirmed[p] < keep {
			keep = s.lastConfirmed[p]
		}
		s.inputs[p].prune(keep)
		s.used[p].prune(keep)
	}
}

func sortHandles(hs []PlayerHandle) {
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
}
