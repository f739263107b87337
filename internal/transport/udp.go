package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/danmuck/rollbridge/internal/observability"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/protocol/frame"
	"github.com/danmuck/rollbridge/internal/rollback"
	"github.com/rs/zerolog"
)

// readPollTimeout bounds the final empty read of a drain.
const readPollTimeout = time.Millisecond

var ErrUnknownEndpoint = errors.New("transport: unknown endpoint")

// UDPSocket is a NonBlockingSocket over a bound UDP port. Address handles
// are mapped to endpoints through its book.
type UDPSocket struct {
	conn   *net.UDPConn
	codec  *protocol.Codec
	logger zerolog.Logger

	mu      sync.RWMutex
	book    map[rollback.AddressHandle]netip.AddrPort
	reverse map[netip.AddrPort]rollback.AddressHandle
}

var _ rollback.NonBlockingSocket = (*UDPSocket)(nil)

// ListenUDP binds port (0 picks one) and registers endpoints as
// "host:port" strings keyed by address handle.
func ListenUDP(port uint16, endpoints map[rollback.AddressHandle]string, codec *protocol.Codec, logger zerolog.Logger) (*UDPSocket, error) {
	s := &UDPSocket{
		codec:   codec,
		logger:  logger,
		book:    make(map[rollback.AddressHandle]netip.AddrPort),
		reverse: make(map[netip.AddrPort]rollback.AddressHandle),
	}
	for addr, hostport := range endpoints {
		if err := s.SetEndpoint(addr, hostport); err != nil {
			return nil, err
		}
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, fmt.Errorf("transport: bind udp port %d: %w", port, err)
	}
	s.conn = conn
	logger.Info().Str("local", conn.LocalAddr().String()).Msg("udp socket bound")
	return s, nil
}

// SetEndpoint maps addr to hostport, replacing any previous mapping.
func (s *UDPSocket) SetEndpoint(addr rollback.AddressHandle, hostport string) error {
	resolved, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnknownEndpoint, hostport, err)
	}
	ap := normalize(resolved.AddrPort())
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.book[addr]; ok {
		delete(s.reverse, old)
	}
	s.book[addr] = ap
	s.reverse[ap] = addr
	return nil
}

func (s *UDPSocket) LocalPort() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *UDPSocket) SendTo(msg *rollback.Message, addr rollback.AddressHandle) {
	s.mu.RLock()
	dst, ok := s.book[addr]
	s.mu.RUnlock()
	if !ok {
		s.logger.Warn().Uint32("addr", uint32(addr)).Msg("no endpoint for address")
		return
	}
	payload, err := s.codec.Encode(msg)
	if err == nil {
		payload, err = frame.Encode(payload, protocol.MaxMessageSize)
	}
	if err != nil {
		observability.RecordCodecReject("outbound")
		s.logger.Warn().Err(err).Uint32("addr", uint32(addr)).Msg("dropping outbound message")
		return
	}
	if _, err := s.conn.WriteToUDPAddrPort(payload, dst); err != nil {
		s.logger.Debug().Err(err).Str("dst", dst.String()).Msg("udp write failed")
		return
	}
	observability.RecordTransportMessage("outbound")
}

// ReceiveAllMessages reads every datagram already buffered by the kernel.
func (s *UDPSocket) ReceiveAllMessages() []rollback.AddressedMessage {
	var out []rollback.AddressedMessage
	buf := make([]byte, frame.HeaderLen+protocol.MaxMessageSize+1)
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(readPollTimeout)); err != nil {
			return out
		}
		n, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			var ne net.Error
			if !errors.As(err, &ne) || !ne.Timeout() {
				s.logger.Debug().Err(err).Msg("udp read failed")
			}
			return out
		}
		s.mu.RLock()
		addr, ok := s.reverse[normalize(from)]
		s.mu.RUnlock()
		if !ok {
			s.logger.Debug().Str("from", from.String()).Msg("datagram from unknown endpoint")
			continue
		}
		payload, err := frame.Decode(buf[:n], protocol.MaxMessageSize)
		if err != nil {
			observability.RecordCodecReject("inbound")
			s.logger.Debug().Err(err).Str("from", from.String()).Msg("rejected datagram")
			continue
		}
		msg, err := s.codec.Decode(payload)
		if err != nil {
			observability.RecordCodecReject("inbound")
			continue
		}
		out = append(out, rollback.AddressedMessage{Addr: addr, Msg: msg})
		observability.RecordTransportMessage("inbound")
	}
}

func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

func normalize(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
