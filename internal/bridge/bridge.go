package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/rollbridge/internal/fifo"
	"github.com/danmuck/rollbridge/internal/observability"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/registry"
	"github.com/danmuck/rollbridge/internal/rollback"
	"github.com/danmuck/rollbridge/internal/transport"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownSession = errors.New("bridge: unknown session handle")
	ErrNoCallerQueues = errors.New("bridge: session has no caller transport")
	ErrPanic          = errors.New("bridge: recovered panic")
	ErrUnavailable    = errors.New("bridge: unavailable")
)

// Bridge owns the builder, the session registry, and the codec shared by
// every transport it wires. Every entry point is safe for concurrent use;
// unknown handles are no-ops that return the documented default.
type Bridge struct {
	builder  *Builder
	sessions *registry.Registry[*session]
	codec    *protocol.Codec
	logger   zerolog.Logger

	// disabled is set when the bridge could not be initialized. Builds
	// fail with it; every other entry point sees an empty registry.
	disabled error
}

func New(logger zerolog.Logger) (*Bridge, error) {
	codec, err := protocol.NewCodec()
	if err != nil {
		return nil, fmt.Errorf("bridge: codec: %w", err)
	}
	observability.RegisterMetrics()
	return &Bridge{
		builder:  NewBuilder(),
		sessions: registry.New[*session](),
		codec:    codec,
		logger:   logger.With().Str("component", "bridge").Logger(),
	}, nil
}

func (b *Bridge) recoverPanic(op string, h registry.Handle) {
	if r := recover(); r != nil {
		b.logger.Error().
			Str("op", op).
			Uint32("handle", uint32(h)).
			Interface("panic", r).
			Msg("recovered panic at boundary")
		if s, ok := b.sessions.Get(h); ok {
			s.setErr(fmt.Errorf("%w: %s: %v", ErrPanic, op, r))
		}
	}
}

func (b *Bridge) BuilderNew() {
	defer b.recoverPanic("builder_new", registry.Invalid)
	b.builder.Reset()
}

func (b *Bridge) BuilderSetFPS(fps uint32) {
	defer b.recoverPanic("builder_set_fps", registry.Invalid)
	b.builder.SetFPS(fps)
}

func (b *Bridge) BuilderSetMaxPredictionWindow(frames uint32) {
	defer b.recoverPanic("builder_set_max_prediction_window", registry.Invalid)
	b.builder.SetMaxPredictionWindow(frames)
}

func (b *Bridge) BuilderSetNumPlayers(n uint32) {
	defer b.recoverPanic("builder_set_num_players", registry.Invalid)
	b.builder.SetNumPlayers(n)
}

func (b *Bridge) BuilderSetSparseSaving(enabled bool) {
	defer b.recoverPanic("builder_set_sparse_saving", registry.Invalid)
	b.builder.SetSparseSaving(enabled)
}

func (b *Bridge) BuilderSetInputDelay(frames uint32) {
	defer b.recoverPanic("builder_set_input_delay", registry.Invalid)
	b.builder.SetInputDelay(frames)
}

func (b *Bridge) BuilderSetCheckDistance(frames uint32) {
	defer b.recoverPanic("builder_set_check_distance", registry.Invalid)
	b.builder.SetCheckDistance(frames)
}

func (b *Bridge) BuilderSetBindPort(port uint16) {
	defer b.recoverPanic("builder_set_bind_port", registry.Invalid)
	b.builder.SetBindPort(port)
}

func (b *Bridge) BuilderSetNativeSocket(enabled bool) {
	defer b.recoverPanic("builder_set_native_socket", registry.Invalid)
	b.builder.SetNativeSocket(enabled)
}

func (b *Bridge) BuilderSetRemoteEndpoint(addr uint32, hostport string) {
	defer b.recoverPanic("builder_set_remote_endpoint", registry.Invalid)
	b.builder.SetRemoteEndpoint(addr, hostport)
}

func (b *Bridge) BuilderAddLocalPlayer(slot uint32) {
	defer b.recoverPanic("builder_add_local_player", registry.Invalid)
	b.builder.AddLocalPlayer(slot)
}

func (b *Bridge) BuilderAddRemotePlayer(slot, addr uint32) {
	defer b.recoverPanic("builder_add_remote_player", registry.Invalid)
	b.builder.AddRemotePlayer(slot, addr)
}

// BuilderSettings returns a copy of the staged settings.
func (b *Bridge) BuilderSettings() Settings {
	return b.builder.Settings()
}

// BuilderStartSyncTestSession builds a SyncTest session, returning
// registry.Invalid on failure.
func (b *Bridge) BuilderStartSyncTestSession() registry.Handle {
	h, _ := b.Build(ModeSyncTest)
	return h
}

// BuilderStartP2PSession builds a P2P session, returning registry.Invalid
// on failure.
func (b *Bridge) BuilderStartP2PSession() registry.Handle {
	h, _ := b.Build(ModeP2P)
	return h
}

// Build consumes the staged settings. On failure nothing is registered and
// the staged settings are left as they were.
func (b *Bridge) Build(mode Mode) (handle registry.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			handle = registry.Invalid
			err = &BuildError{Mode: mode, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
		observability.RecordSessionBuild(mode.String(), err == nil)
		if err != nil {
			b.logger.Warn().Err(err).Str("mode", mode.String()).Msg("session build failed")
		}
	}()

	err = b.builder.finalize(mode, func(s Settings) error {
		if b.disabled != nil {
			return b.disabled
		}
		h, err := b.sessions.Allocate()
		if err != nil {
			return err
		}
		sess, err := b.construct(h, mode, s)
		if err != nil {
			return err
		}
		if err := b.sessions.Insert(h, sess); err != nil {
			_ = sess.close()
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return registry.Invalid, err
	}
	b.logger.Info().
		Uint32("handle", uint32(handle)).
		Str("mode", mode.String()).
		Msg("session built")
	return handle, nil
}

func (b *Bridge) construct(h registry.Handle, mode Mode, s Settings) (*session, error) {
	sess := &session{
		handle:   h,
		mode:     mode,
		settings: s,
		created:  time.Now(),
		requests: fifo.New[protocol.Request](),
	}
	cfg := s.engineConfig(mode)
	switch mode {
	case ModeSyncTest:
		st, err := rollback.NewSyncTestSession(cfg)
		if err != nil {
			return nil, err
		}
		sess.engine = st
	case ModeP2P:
		logger := b.logger.With().Uint32("handle", uint32(h)).Logger()
		var socket rollback.NonBlockingSocket
		if s.NativeSocket {
			udp, err := transport.ListenUDP(s.BindPort, s.endpointBook(), b.codec, logger)
			if err != nil {
				return nil, err
			}
			sess.udp = udp
			socket = udp
		} else {
			sess.queues = transport.NewBridge(b.codec, logger)
			socket = sess.queues
		}
		p2p, err := rollback.NewP2PSession(cfg, s.players(), socket)
		if err != nil {
			_ = sess.close()
			return nil, err
		}
		sess.engine = p2p
		sess.p2p = p2p
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
	return sess, nil
}

// SessionAddLocalInput stages one local player's input for the next
// advance.
func (b *Bridge) SessionAddLocalInput(h registry.Handle, player, input uint32) {
	defer b.recoverPanic("session_add_local_input", h)
	s, ok := b.sessions.Get(h)
	if !ok {
		return
	}
	if err := s.addLocalInput(player, input); err != nil {
		s.setErr(err)
		b.logger.Debug().Err(err).Uint32("handle", uint32(h)).Uint32("player", player).Msg("local input rejected")
	}
}

// SessionAdvanceFrame advances the engine and queues its requests. A
// failed advance queues nothing.
func (b *Bridge) SessionAdvanceFrame(h registry.Handle) {
	defer b.recoverPanic("session_advance_frame", h)
	s, ok := b.sessions.Get(h)
	if !ok {
		return
	}
	records, err := s.advance()
	if err != nil {
		s.setErr(err)
		observability.RecordAdvanceFailure(s.mode.String())
		b.logger.Debug().Err(err).Uint32("handle", uint32(h)).Msg("advance aborted")
		return
	}
	s.setErr(nil)
	for _, r := range records {
		observability.RecordRequestQueued(r.Tag.String())
	}
	b.logger.Trace().Uint32("handle", uint32(h)).Int("requests", len(records)).Msg("advanced")
}

// SessionNextRequest pops the next queued request, or the None record.
func (b *Bridge) SessionNextRequest(h registry.Handle) (req protocol.Request) {
	req = protocol.NoneRequest()
	defer b.recoverPanic("session_next_request", h)
	s, ok := b.sessions.Get(h)
	if !ok {
		return req
	}
	if next, ok := s.requests.Pop(); ok {
		return next
	}
	return req
}

// SessionPollRemoteClients drives network progress for P2P sessions.
func (b *Bridge) SessionPollRemoteClients(h registry.Handle) {
	defer b.recoverPanic("session_poll_remote_clients", h)
	if s, ok := b.sessions.Get(h); ok {
		s.poll()
	}
}

func (b *Bridge) SessionCurrentState(h registry.Handle) (state rollback.SessionState) {
	state = rollback.StateRunning
	defer b.recoverPanic("session_current_state", h)
	if s, ok := b.sessions.Get(h); ok {
		return s.state()
	}
	return state
}

func (b *Bridge) SessionFramesAhead(h registry.Handle) (frames int32) {
	defer b.recoverPanic("session_frames_ahead", h)
	if s, ok := b.sessions.Get(h); ok {
		return int32(s.framesAhead())
	}
	return 0
}

// SessionClose removes the session with its queues. It reports whether the
// handle was live.
func (b *Bridge) SessionClose(h registry.Handle) (closed bool) {
	defer b.recoverPanic("session_close", h)
	s, ok := b.sessions.Remove(h)
	if !ok {
		return false
	}
	if err := s.close(); err != nil {
		b.logger.Warn().Err(err).Uint32("handle", uint32(h)).Msg("close native socket")
	}
	observability.RecordSessionClosed()
	b.logger.Info().Uint32("handle", uint32(h)).Msg("session closed")
	return true
}

// TransportPushInbound hands a received message to a bridged P2P session.
// Native-socket and SyncTest sessions ignore it.
func (b *Bridge) TransportPushInbound(h registry.Handle, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: transport_push_inbound: %v", ErrPanic, r)
			b.logger.Error().Uint32("handle", uint32(h)).Interface("panic", r).Msg("recovered panic at boundary")
		}
	}()
	s, ok := b.sessions.Get(h)
	if !ok {
		return ErrUnknownSession
	}
	if s.queues == nil {
		return ErrNoCallerQueues
	}
	if err := s.queues.PushInbound(&msg); err != nil {
		s.setErr(err)
		return err
	}
	return nil
}

// TransportPullOutbound pops the next framed message to transmit.
func (b *Bridge) TransportPullOutbound(h registry.Handle) (msg protocol.Message, ok bool) {
	defer b.recoverPanic("transport_pull_outbound", h)
	s, found := b.sessions.Get(h)
	if !found || s.queues == nil {
		return protocol.Message{}, false
	}
	return s.queues.PullOutbound()
}

// LastError returns the most recent failure recorded for a session. A
// successful advance clears it.
func (b *Bridge) LastError(h registry.Handle) error {
	s, ok := b.sessions.Get(h)
	if !ok {
		return ErrUnknownSession
	}
	return s.err()
}

// Session returns a snapshot of one live session.
func (b *Bridge) Session(h registry.Handle) (SessionInfo, bool) {
	s, ok := b.sessions.Get(h)
	if !ok {
		return SessionInfo{}, false
	}
	return s.info(), true
}

// Sessions returns snapshots of every live session in handle order.
func (b *Bridge) Sessions() []SessionInfo {
	handles := b.sessions.Handles()
	out := make([]SessionInfo, 0, len(handles))
	for _, h := range handles {
		if s, ok := b.sessions.Get(h); ok {
			out = append(out, s.info())
		}
	}
	return out
}
