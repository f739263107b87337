package protocol

import "fmt"

// MaxMessageSize is the capacity of a Message buffer.
const MaxMessageSize = 255

// Message is one framed peer payload crossing the boundary: the opaque
// address it came from or goes to, a fixed buffer, and the used length.
type Message struct {
	Addr  uint32
	Bytes [MaxMessageSize]byte
	Len   uint32
}

// NewMessage copies payload into a fixed buffer.
func NewMessage(addr uint32, payload []byte) (Message, error) {
	if len(payload) > MaxMessageSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}
	msg := Message{Addr: addr, Len: uint32(len(payload))}
	copy(msg.Bytes[:], payload)
	return msg, nil
}

// Payload returns the used bytes, rejecting a length beyond capacity.
func (m *Message) Payload() ([]byte, error) {
	if m.Len > MaxMessageSize {
		return nil, fmt.Errorf("%w: length %d", ErrMessageTooLarge, m.Len)
	}
	return m.Bytes[:m.Len], nil
}
