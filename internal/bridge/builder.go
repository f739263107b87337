package bridge

import "sync"

// Builder stages one Settings record. Setters and builds are mutually
// exclusive; a build snapshots, validates, constructs, and resets under
// the same lock.
type Builder struct {
	mu       sync.Mutex
	settings Settings
}

func NewBuilder() *Builder {
	return &Builder{settings: DefaultSettings()}
}

// Reset discards staged settings.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = DefaultSettings()
}

// Settings returns a copy of the staged record.
func (b *Builder) Settings() Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings.clone()
}

func (b *Builder) update(fn func(*Settings)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.settings)
}

func (b *Builder) SetFPS(fps uint32) {
	b.update(func(s *Settings) { s.FPS = fps })
}

func (b *Builder) SetMaxPredictionWindow(frames uint32) {
	b.update(func(s *Settings) { s.MaxPrediction = frames })
}

func (b *Builder) SetNumPlayers(n uint32) {
	b.update(func(s *Settings) { s.NumPlayers = n })
}

func (b *Builder) SetSparseSaving(enabled bool) {
	b.update(func(s *Settings) { s.SparseSaving = enabled })
}

func (b *Builder) SetInputDelay(frames uint32) {
	b.update(func(s *Settings) { s.InputDelay = frames })
}

func (b *Builder) SetCheckDistance(frames uint32) {
	b.update(func(s *Settings) { s.CheckDistance = frames })
}

func (b *Builder) SetBindPort(port uint16) {
	b.update(func(s *Settings) { s.BindPort = port })
}

// SetNativeSocket makes P2P builds bind a UDP socket instead of exposing
// caller-drained queues.
func (b *Builder) SetNativeSocket(enabled bool) {
	b.update(func(s *Settings) { s.NativeSocket = enabled })
}

// SetRemoteEndpoint maps an address handle to "host:port" for native
// socket sessions.
func (b *Builder) SetRemoteEndpoint(addr uint32, hostport string) {
	b.update(func(s *Settings) {
		if s.Endpoints == nil {
			s.Endpoints = make(map[uint32]string)
		}
		s.Endpoints[addr] = hostport
	})
}

func (b *Builder) AddLocalPlayer(slot uint32) {
	b.update(func(s *Settings) { s.LocalPlayers = append(s.LocalPlayers, slot) })
}

func (b *Builder) AddRemotePlayer(slot, addr uint32) {
	b.update(func(s *Settings) {
		s.RemotePlayers = append(s.RemotePlayers, RemotePlayer{Player: slot, Addr: addr})
	})
}

// finalize runs construct against a validated snapshot and resets the
// staged record only when construct succeeds.
func (b *Builder) finalize(mode Mode, construct func(Settings) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := b.settings.clone()
	if err := snapshot.Validate(mode); err != nil {
		return &BuildError{Mode: mode, Err: err}
	}
	if err := construct(snapshot); err != nil {
		return &BuildError{Mode: mode, Err: err}
	}
	b.settings = DefaultSettings()
	return nil
}
