// Package frame wraps codec payloads in a fixed header for the native UDP
// socket so stray datagrams are rejected before decoding.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderLen        = 8
	Magic     uint32 = 0x52424731 // "RBG1"
	Version   uint16 = 1
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrBadMagic        = errors.New("frame: bad magic")
	ErrBadVersion      = errors.New("frame: unsupported version")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrLengthMismatch  = errors.New("frame: payload length mismatch")
)

// Header is the fixed datagram header.
type Header struct {
	Magic      uint32
	Version    uint16
	PayloadLen uint16
}

// Encode prefixes payload with a header. maxPayload bounds the payload.
func Encode(payload []byte, maxPayload int) ([]byte, error) {
	if len(payload) > maxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), maxPayload)
	}
	buf := make([]byte, HeaderLen+len(payload))
	putHeader(buf, Header{Magic: Magic, Version: Version, PayloadLen: uint16(len(payload))})
	copy(buf[HeaderLen:], payload)
	return buf, nil
}

// Decode validates the header of datagram and returns its payload, which
// aliases datagram.
func Decode(datagram []byte, maxPayload int) ([]byte, error) {
	h, err := DecodeHeader(datagram)
	if err != nil {
		return nil, err
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: %#08x", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}
	if int(h.PayloadLen) > maxPayload {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.PayloadLen, maxPayload)
	}
	if int(h.PayloadLen) != len(datagram)-HeaderLen {
		return nil, fmt.Errorf("%w: header=%d body=%d", ErrLengthMismatch, h.PayloadLen, len(datagram)-HeaderLen)
	}
	return datagram[HeaderLen:], nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	putHeader(buf, h)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		PayloadLen: binary.BigEndian.Uint16(b[6:8]),
	}, nil
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.PayloadLen)
}
