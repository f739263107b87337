package protocol

import "errors"

var (
	ErrMessageTooLarge  = errors.New("protocol: message too large")
	ErrMalformedMessage = errors.New("protocol: malformed message")
	ErrUnknownKind      = errors.New("protocol: unknown message kind")
	ErrInvalidLength    = errors.New("protocol: invalid length")
)
