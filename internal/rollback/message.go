package rollback

type MessageKind uint8

const (
	MsgSyncRequest MessageKind = iota + 1
	MsgSyncReply
	MsgInput
	MsgInputAck
)

func (k MessageKind) String() string {
	switch k {
	case MsgSyncRequest:
		return "sync_request"
	case MsgSyncReply:
		return "sync_reply"
	case MsgInput:
		return "input"
	case MsgInputAck:
		return "input_ack"
	default:
		return "unknown"
	}
}

// Message is the peer protocol payload. Field keys are integers so the
// encoded form stays small enough for a single fixed buffer.
type Message struct {
	Kind       MessageKind `cbor:"1,keyasint"`
	Random     uint32      `cbor:"2,keyasint,omitempty"`
	Frame      Frame       `cbor:"3,keyasint,omitempty"`
	StartFrame Frame       `cbor:"4,keyasint,omitempty"`
	AckFrame   Frame       `cbor:"5,keyasint,omitempty"`
	Inputs     []Input     `cbor:"6,keyasint,omitempty"`
}

// AddressedMessage pairs a message with its source address.
type AddressedMessage struct {
	Addr AddressHandle
	Msg  Message
}

// NonBlockingSocket is the transport capability a P2P session drives.
// SendTo must not block or fail; ReceiveAllMessages drains everything
// received since the last call.
type NonBlockingSocket interface {
	SendTo(msg *Message, addr AddressHandle)
	ReceiveAllMessages() []AddressedMessage
}
