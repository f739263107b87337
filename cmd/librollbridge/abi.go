// Command librollbridge builds the flat C ABI over the process-wide
// bridge:
//
//	go build -buildmode=c-shared -o librollbridge.so ./cmd/librollbridge
//
// Every rb_* function routes through bridge.Default(). Handles are uint32
// with 0 meaning failure; unknown handles are no-ops.
package main

import (
	"errors"

	"github.com/danmuck/rollbridge/internal/bridge"
	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/rollback"
)

// Push result codes returned by rb_transport_push_inbound.
const (
	pushOK        int32 = 0
	pushUnknown   int32 = -1
	pushTooLarge  int32 = -2
	pushMalformed int32 = -3
	pushRejected  int32 = -4
)

func main() {}

func pushCode(err error) int32 {
	switch {
	case err == nil:
		return pushOK
	case errors.Is(err, bridge.ErrUnknownSession):
		return pushUnknown
	case errors.Is(err, protocol.ErrMessageTooLarge):
		return pushTooLarge
	case errors.Is(err, protocol.ErrMalformedMessage), errors.Is(err, protocol.ErrUnknownKind),
		errors.Is(err, protocol.ErrInvalidLength):
		return pushMalformed
	default:
		return pushRejected
	}
}

func stateCode(s rollback.SessionState) uint8 {
	if s == rollback.StateSynchronizing {
		return 0
	}
	return 1
}
