package bridge

import (
	"sync"
	"time"

	"github.com/danmuck/rollbridge/internal/fifo"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/registry"
	"github.com/danmuck/rollbridge/internal/rollback"
	"github.com/danmuck/rollbridge/internal/transport"
)

// engine is the part of a rollback session the bridge drives on every
// tick. Both session kinds satisfy it.
type engine interface {
	NumPlayers() int
	CurrentFrame() rollback.Frame
	AddLocalInput(player rollback.PlayerHandle, input rollback.Input) error
	AdvanceFrame() ([]rollback.Request, error)
}

// session is one registry entry: the engine, its request queue, and for
// P2P its transport. All of it is created and removed together.
type session struct {
	handle   registry.Handle
	mode     Mode
	settings Settings
	created  time.Time

	requests *fifo.Queue[protocol.Request]
	queues   *transport.Bridge
	udp      *transport.UDPSocket

	// mu serializes engine calls for this session only.
	mu       sync.Mutex
	engine   engine
	p2p      *rollback.P2PSession
	advanced uint64

	errMu   sync.Mutex
	lastErr error
}

func (s *session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.lastErr = err
}

func (s *session) err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// advance runs one engine tick and queues its flattened records. The
// queue is only touched once the whole batch converted. Both engines attach
// a cell to every state request, so a flatten error after the engine
// committed the frame means an engine defect.
func (s *session) advance() ([]protocol.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, err := s.engine.AdvanceFrame()
	if err != nil {
		return nil, err
	}
	records, err := flatten(batch)
	if err != nil {
		return nil, err
	}
	s.requests.PushAll(records...)
	s.advanced++
	return records, nil
}

func (s *session) addLocalInput(player, input uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AddLocalInput(rollback.PlayerHandle(player), rollback.Input(input))
}

func (s *session) poll() {
	if s.p2p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p2p.PollRemoteClients()
}

func (s *session) state() rollback.SessionState {
	if s.p2p == nil {
		return rollback.StateRunning
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p2p.CurrentState()
}

func (s *session) framesAhead() int {
	if s.p2p == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p2p.FramesAhead()
}

func (s *session) close() error {
	if s.udp != nil {
		return s.udp.Close()
	}
	return nil
}

// SessionInfo is a point-in-time view of one live session.
type SessionInfo struct {
	Handle          uint32    `json:"handle"`
	Mode            string    `json:"mode"`
	State           string    `json:"state"`
	Frame           int32     `json:"frame"`
	FramesAhead     int       `json:"frames_ahead"`
	FramesAdvanced  uint64    `json:"frames_advanced"`
	QueuedRequests  int       `json:"queued_requests"`
	PendingOutbound int       `json:"pending_outbound"`
	PendingInbound  int       `json:"pending_inbound"`
	NativeSocket    bool      `json:"native_socket"`
	Settings        Settings  `json:"settings"`
	Created         time.Time `json:"created"`
	LastError       string    `json:"last_error,omitempty"`
}

func (s *session) info() SessionInfo {
	info := SessionInfo{
		Handle:         uint32(s.handle),
		Mode:           s.mode.String(),
		QueuedRequests: s.requests.Len(),
		NativeSocket:   s.udp != nil,
		Settings:       s.settings.clone(),
		Created:        s.created,
	}
	if s.queues != nil {
		info.PendingOutbound, info.PendingInbound = s.queues.Pending()
	}
	s.mu.Lock()
	info.Frame = int32(s.engine.CurrentFrame())
	info.FramesAdvanced = s.advanced
	info.State = rollback.StateRunning.String()
	if s.p2p != nil {
		info.State = s.p2p.CurrentState().String()
		info.FramesAhead = s.p2p.FramesAhead()
	}
	s.mu.Unlock()
	if err := s.err(); err != nil {
		info.LastError = err.Error()
	}
	return info
}
