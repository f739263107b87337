package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/registry"
	"github.com/danmuck/rollbridge/internal/rollback"
	"github.com/rs/zerolog/log"
)

var errStalled = errors.New("rollbridge: peers stopped advancing")

// game is the caller side of one session: it applies drained requests to
// a toy integer state and keeps the snapshots save requests ask for.
type game struct {
	state    int64
	inputs   map[uint32]uint32
	saved    map[int32]int64
	frame    int32
	applied  map[protocol.RequestTag]int
	rollback int
	// history holds the state reached after each frame. Resimulation
	// overwrites predicted entries.
	history map[int32]int64
}

func newGame() *game {
	return &game{
		inputs:  make(map[uint32]uint32),
		saved:   make(map[int32]int64),
		applied: make(map[protocol.RequestTag]int),
		history: make(map[int32]int64),
	}
}

func (g *game) apply(req protocol.Request) {
	g.applied[req.Tag]++
	switch req.Tag {
	case protocol.TagSetInput:
		g.inputs[req.Player] = req.Input
	case protocol.TagAdvanceFrame:
		var sum int64
		for _, in := range g.inputs {
			sum += int64(in)
		}
		g.state = g.state*31 + sum
		g.frame = req.Frame + 1
		g.history[g.frame] = g.state
	case protocol.TagSaveGameState:
		g.saved[req.Frame] = g.state
	case protocol.TagLoadGameState:
		g.state = g.saved[req.Frame]
		g.frame = req.Frame
		g.rollback++
	}
}

// pump drains every queued request for h into g.
func pump(b *bridge.Bridge, h registry.Handle, g *game) {
	for {
		req := b.SessionNextRequest(h)
		if req.IsNone() {
			return
		}
		g.apply(req)
	}
}

func inputFor(player uint32, frame int) uint32 {
	return uint32(frame%7) + player*3
}

type summary struct {
	Mode      string
	Frames    []int32
	States    []int64
	Rollbacks []int
	Requests  map[protocol.RequestTag]int
	History   []map[int32]int64
}

func (s summary) String() string {
	return fmt.Sprintf("mode=%s frames=%v states=%v rollbacks=%v requests=%v", s.Mode, s.Frames, s.States, s.Rollbacks, s.Requests)
}

func summarize(mode bridge.Mode, games ...*game) summary {
	out := summary{Mode: mode.String(), Requests: make(map[protocol.RequestTag]int)}
	for _, g := range games {
		out.Frames = append(out.Frames, g.frame)
		out.States = append(out.States, g.state)
		out.Rollbacks = append(out.Rollbacks, g.rollback)
		out.History = append(out.History, g.history)
		for tag, n := range g.applied {
			out.Requests[tag] += n
		}
	}
	return out
}

type ticker struct {
	t *time.Ticker
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	return ticker{t: time.NewTicker(d)}
}

func (t ticker) wait(ctx context.Context) error {
	if t.t == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.t.C:
		return nil
	}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}

func runSyncTest(ctx context.Context, b *bridge.Bridge, cfg runConfig) (summary, error) {
	cfg.Bridge.Session.Apply(b)
	h, err := b.Build(bridge.ModeSyncTest)
	if err != nil {
		return summary{}, err
	}
	defer b.SessionClose(h)

	g := newGame()
	tick := newTicker(cfg.Tick)
	defer tick.stop()
	players := cfg.Bridge.Session.NumPlayers
	for frame := 0; frame < cfg.Frames; frame++ {
		if err := tick.wait(ctx); err != nil {
			return summarize(bridge.ModeSyncTest, g), err
		}
		for p := uint32(0); p < players; p++ {
			b.SessionAddLocalInput(h, p, inputFor(p, frame))
		}
		b.SessionAdvanceFrame(h)
		pump(b, h, g)
		if err := b.LastError(h); err != nil {
			return summarize(bridge.ModeSyncTest, g), err
		}
	}
	return summarize(bridge.ModeSyncTest, g), nil
}

// runP2P drives two peers in one process. Without a native socket their
// messages are relayed through the caller queues.
func runP2P(ctx context.Context, b *bridge.Bridge, cfg runConfig) (summary, error) {
	peers := [2]struct {
		local, remote uint32
		port, other   uint16
	}{
		{local: 0, remote: 1, port: cfg.PortA, other: cfg.PortB},
		{local: 1, remote: 0, port: cfg.PortB, other: cfg.PortA},
	}
	var handles [2]registry.Handle
	for i, p := range peers {
		cfg.Bridge.Session.Apply(b)
		b.BuilderSetNumPlayers(2)
		b.BuilderAddLocalPlayer(p.local)
		b.BuilderAddRemotePlayer(p.remote, p.remote+1)
		if cfg.Native {
			b.BuilderSetNativeSocket(true)
			b.BuilderSetBindPort(p.port)
			b.BuilderSetRemoteEndpoint(p.remote+1, fmt.Sprintf("127.0.0.1:%d", p.other))
		}
		h, err := b.Build(bridge.ModeP2P)
		if err != nil {
			return summary{}, err
		}
		defer b.SessionClose(h)
		handles[i] = h
	}

	games := [2]*game{newGame(), newGame()}
	tick := newTicker(cfg.Tick)
	defer tick.stop()
	limit := cfg.Frames*20 + 2000
	for i := 0; i < limit; i++ {
		if games[0].frame >= int32(cfg.Frames) && games[1].frame >= int32(cfg.Frames) {
			return summarize(bridge.ModeP2P, games[0], games[1]), nil
		}
		if err := tick.wait(ctx); err != nil {
			return summarize(bridge.ModeP2P, games[0], games[1]), err
		}
		for _, h := range handles {
			b.SessionPollRemoteClients(h)
		}
		if !cfg.Native {
			relay(b, handles[0], handles[1], 1)
			relay(b, handles[1], handles[0], 2)
		}
		for j, h := range handles {
			if b.SessionCurrentState(h) != rollback.StateRunning || games[j].frame >= int32(cfg.Frames) {
				continue
			}
			if b.SessionFramesAhead(h) > int32(cfg.Bridge.Session.MaxPrediction)/2 {
				continue
			}
			b.SessionAddLocalInput(h, peers[j].local, inputFor(peers[j].local, int(games[j].frame)))
			b.SessionAdvanceFrame(h)
			pump(b, h, games[j])
		}
	}
	return summarize(bridge.ModeP2P, games[0], games[1]), errStalled
}

// relay moves from's outbound messages into to, addressed as fromAddr.
func relay(b *bridge.Bridge, from, to registry.Handle, fromAddr uint32) {
	for {
		msg, ok := b.TransportPullOutbound(from)
		if !ok {
			return
		}
		msg.Addr = fromAddr
		if err := b.TransportPushInbound(to, msg); err != nil {
			log.Warn().Err(err).Uint32("from", uint32(from)).Msg("relay rejected message")
		}
	}
}
