package transport

import (
	"errors"

	"github.com/danmuck/rollbridge/internal/fifo"
	"github.com/danmuck/rollbridge/internal/observability"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/rollback"
	"github.com/rs/zerolog"
)

var ErrNilMessage = errors.New("transport: nil message")

// Bridge is a NonBlockingSocket whose packets are carried by the caller.
// Messages are encoded when the engine sends them and decoded when the
// caller pushes them in, so both queues only ever hold complete messages.
type Bridge struct {
	codec    *protocol.Codec
	outbound *fifo.Queue[protocol.Message]
	inbound  *fifo.Queue[rollback.AddressedMessage]
	logger   zerolog.Logger
}

var _ rollback.NonBlockingSocket = (*Bridge)(nil)

func NewBridge(codec *protocol.Codec, logger zerolog.Logger) *Bridge {
	return &Bridge{
		codec:    codec,
		outbound: fifo.New[protocol.Message](),
		inbound:  fifo.New[rollback.AddressedMessage](),
		logger:   logger,
	}
}

// SendTo frames msg for addr and queues it for the caller. A message the
// codec rejects is dropped.
func (b *Bridge) SendTo(msg *rollback.Message, addr rollback.AddressHandle) {
	wire, err := b.codec.EncodeTo(addr, msg)
	if err != nil {
		observability.RecordCodecReject("outbound")
		b.logger.Warn().Err(err).Uint32("addr", uint32(addr)).Msg("dropping outbound message")
		return
	}
	b.outbound.Push(wire)
	observability.RecordTransportMessage("outbound")
}

// ReceiveAllMessages drains the inbound queue in arrival order.
func (b *Bridge) ReceiveAllMessages() []rollback.AddressedMessage {
	return b.inbound.Drain()
}

// PullOutbound pops the next framed message for the caller to transmit.
func (b *Bridge) PullOutbound() (protocol.Message, bool) {
	return b.outbound.Pop()
}

// PushInbound decodes a received message and queues it for the engine.
// Rejected messages leave both queues untouched.
func (b *Bridge) PushInbound(msg *protocol.Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	decoded, err := b.codec.DecodeFrom(msg)
	if err != nil {
		observability.RecordCodecReject("inbound")
		b.logger.Debug().Err(err).Uint32("addr", msg.Addr).Msg("rejected inbound message")
		return err
	}
	b.inbound.Push(decoded)
	observability.RecordTransportMessage("inbound")
	return nil
}

// Pending reports the queued outbound and inbound message counts.
func (b *Bridge) Pending() (outbound, inbound int) {
	return b.outbound.Len(), b.inbound.Len()
}
