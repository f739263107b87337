package protocol

import (
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"

	"github.com/danmuck/rollbridge/internal/rollback"
)

// Codec serializes engine messages with deterministic CBOR, bounded to
// MaxMessageSize.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCodec() (*Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements:  1024,
		MaxMapPairs:       64,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	return &Codec{enc: em, dec: dm}, nil
}

func (c *Codec) Encode(msg *rollback.Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	buf, err := c.enc.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if len(buf) > MaxMessageSize {
		return nil, fmt.Errorf("%w: encoded %d bytes", ErrMessageTooLarge, len(buf))
	}
	return buf, nil
}

func (c *Codec) Decode(payload []byte) (rollback.Message, error) {
	if len(payload) == 0 {
		return rollback.Message{}, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}
	if len(payload) > MaxMessageSize {
		return rollback.Message{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}
	var msg rollback.Message
	if err := c.dec.Unmarshal(payload, &msg); err != nil {
		return rollback.Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := validate(&msg); err != nil {
		return rollback.Message{}, err
	}
	return msg, nil
}

// EncodeTo encodes msg straight into a boundary Message for addr.
func (c *Codec) EncodeTo(addr rollback.AddressHandle, msg *rollback.Message) (Message, error) {
	buf, err := c.Encode(msg)
	if err != nil {
		return Message{}, err
	}
	return NewMessage(uint32(addr), buf)
}

// DecodeFrom decodes a boundary Message into an addressed engine message.
func (c *Codec) DecodeFrom(m *Message) (rollback.AddressedMessage, error) {
	payload, err := m.Payload()
	if err != nil {
		return rollback.AddressedMessage{}, err
	}
	msg, err := c.Decode(payload)
	if err != nil {
		return rollback.AddressedMessage{}, err
	}
	return rollback.AddressedMessage{Addr: rollback.AddressHandle(m.Addr), Msg: msg}, nil
}

func validate(msg *rollback.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	switch msg.Kind {
	case rollback.MsgSyncRequest, rollback.MsgSyncReply, rollback.MsgInput, rollback.MsgInputAck:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, msg.Kind)
	}
	if len(msg.Inputs) > MaxMessageSize {
		return fmt.Errorf("%w: %d inputs", ErrInvalidLength, len(msg.Inputs))
	}
	return nil
}
