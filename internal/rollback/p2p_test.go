package rollback

import (
	"errors"
	"testing"

	"github.com/danmuck/rollbridge/internal/testutil/testlog"
)

type memNet struct {
	boxes map[AddressHandle][]AddressedMessage
}

type memSocket struct {
	net  *memNet
	self AddressHandle
}

func newMemNet() *memNet {
	return &memNet{boxes: make(map[AddressHandle][]AddressedMessage)}
}

func (n *memNet) socket(self AddressHandle) *memSocket {
	return &memSocket{net: n, self: self}
}

func (s *memSocket) SendTo(msg *Message, addr AddressHandle) {
	m := *msg
	m.Inputs = append([]Input(nil), msg.Inputs...)
	s.net.boxes[addr] = append(s.net.boxes[addr], AddressedMessage{Addr: s.self, Msg: m})
}

func (s *memSocket) ReceiveAllMessages() []AddressedMessage {
	out := s.net.boxes[s.self]
	s.net.boxes[s.self] = nil
	return out
}

// newPair builds two sessions where A (address 1) owns player 0 and B
// (address 2) owns player 1.
func newPair(t *testing.T, cfg Config) (*P2PSession, *P2PSession) {
	t.Helper()
	n := newMemNet()
	a, err := NewP2PSession(cfg, []Player{
		{Handle: 0, Kind: PlayerLocal},
		{Handle: 1, Kind: PlayerRemote, Addr: 2},
	}, n.socket(1))
	if err != nil {
		t.Fatalf("new session a: %v", err)
	}
	b, err := NewP2PSession(cfg, []Player{
		{Handle: 0, Kind: PlayerRemote, Addr: 1},
		{Handle: 1, Kind: PlayerLocal},
	}, n.socket(2))
	if err != nil {
		t.Fatalf("new session b: %v", err)
	}
	return a, b
}

func synchronize(t *testing.T, a, b *P2PSession) {
	t.Helper()
	for i := 0; i < 100; i++ {
		a.PollRemoteClients()
		b.PollRemoteClients()
		if a.CurrentState() == StateRunning && b.CurrentState() == StateRunning {
			return
		}
	}
	t.Fatalf("sessions did not synchronize: a=%s b=%s", a.CurrentState(), b.CurrentState())
}

func TestP2PSynchronizes(t *testing.T) {
	testlog.Start(t)
	a, b := newPair(t, DefaultConfig())
	if a.CurrentState() != StateSynchronizing {
		t.Fatalf("expected synchronizing before handshake")
	}
	if _, err := a.AdvanceFrame(); !errors.Is(err, ErrNotSynchronized) {
		t.Fatalf("expected ErrNotSynchronized, got %v", err)
	}
	synchronize(t, a, b)
}

func TestP2PRollbackOnMisprediction(t *testing.T) {
	testlog.Start(t)
	a, b := newPair(t, DefaultConfig())
	synchronize(t, a, b)

	_ = a.AddLocalInput(0, 1)
	reqs, err := a.AdvanceFrame()
	if err != nil {
		t.Fatalf("advance a: %v", err)
	}
	adv := reqs[len(reqs)-1].(AdvanceFrame)
	if adv.Inputs[1].Status != InputPredicted || adv.Inputs[1].Input != 0 {
		t.Fatalf("expected predicted zero input for remote, got %+v", adv.Inputs[1])
	}

	_ = b.AddLocalInput(1, 5)
	if _, err := b.AdvanceFrame(); err != nil {
		t.Fatalf("advance b: %v", err)
	}
	a.PollRemoteClients()
	b.PollRemoteClients()

	_ = a.AddLocalInput(0, 2)
	reqs, err = a.AdvanceFrame()
	if err != nil {
		t.Fatalf("advance a: %v", err)
	}
	if len(reqs) != 4 {
		t.Fatalf("expected load/advance/save/advance, got %#v", reqs)
	}
	if load, ok := reqs[0].(LoadGameState); !ok || load.Frame != 0 {
		t.Fatalf("expected load of frame 0, got %#v", reqs[0])
	}
	redo := reqs[1].(AdvanceFrame)
	if redo.Frame != 0 || redo.Inputs[1].Input != 5 || redo.Inputs[1].Status != InputConfirmed {
		t.Fatalf("unexpected resimulated frame: %+v", redo)
	}
	if save, ok := reqs[2].(SaveGameState); !ok || save.Frame != 1 {
		t.Fatalf("expected save of frame 1, got %#v", reqs[2])
	}
	next := reqs[3].(AdvanceFrame)
	if next.Frame != 1 || next.Inputs[0].Input != 2 || next.Inputs[1].Input != 5 {
		t.Fatalf("unexpected frame 1 advance: %+v", next)
	}
}

func TestP2PPredictionThreshold(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.MaxPrediction = 2
	a, b := newPair(t, cfg)
	synchronize(t, a, b)

	for f := 0; f < 2; f++ {
		_ = a.AddLocalInput(0, 1)
		if _, err := a.AdvanceFrame(); err != nil {
			t.Fatalf("advance %d: %v", f, err)
		}
	}
	_ = a.AddLocalInput(0, 1)
	if _, err := a.AdvanceFrame(); !errors.Is(err, ErrPredictionThreshold) {
		t.Fatalf("expected ErrPredictionThreshold, got %v", err)
	}
	if a.CurrentFrame() != 2 {
		t.Fatalf("frame moved on failure: %d", a.CurrentFrame())
	}
}

func TestP2PInputDelay(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.InputDelay = 2
	a, b := newPair(t, cfg)
	synchronize(t, a, b)

	_ = a.AddLocalInput(0, 9)
	reqs, err := a.AdvanceFrame()
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	adv := reqs[len(reqs)-1].(AdvanceFrame)
	if adv.Inputs[0].Input != 0 || adv.Inputs[0].Status != InputConfirmed {
		t.Fatalf("delayed frame should carry zero input: %+v", adv.Inputs[0])
	}
}

func TestP2PSparseSavingSkipsUnconfirmedFrames(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SparseSaving = true
	a, b := newPair(t, cfg)
	synchronize(t, a, b)

	saves := 0
	for f := 0; f < 3; f++ {
		_ = a.AddLocalInput(0, 1)
		reqs, err := a.AdvanceFrame()
		if err != nil {
			t.Fatalf("advance %d: %v", f, err)
		}
		for _, r := range reqs {
			if _, ok := r.(SaveGameState); ok {
				saves++
			}
		}
	}
	// only frame 0 is fully determined by confirmed inputs
	if saves != 1 {
		t.Fatalf("expected one sparse save, got %d", saves)
	}
}

func TestNewP2PSessionRejectsBadPlayers(t *testing.T) {
	testlog.Start(t)
	n := newMemNet()
	cfg := DefaultConfig()
	if _, err := NewP2PSession(cfg, []Player{{Handle: 0}, {Handle: 0}}, n.socket(1)); !errors.Is(err, ErrInvalidPlayer) {
		t.Fatalf("expected ErrInvalidPlayer for duplicate, got %v", err)
	}
	if _, err := NewP2PSession(cfg, []Player{{Handle: 0, Kind: PlayerRemote, Addr: 1}, {Handle: 1, Kind: PlayerRemote, Addr: 2}}, n.socket(1)); !errors.Is(err, ErrInvalidPlayer) {
		t.Fatalf("expected ErrInvalidPlayer without locals, got %v", err)
	}
	if _, err := NewP2PSession(cfg, []Player{{Handle: 0}, {Handle: 1}}, nil); !errors.Is(err, ErrNilSocket) {
		t.Fatalf("expected ErrNilSocket, got %v", err)
	}
}
