package bridge

import (
	"errors"
	"fmt"

	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/rollback"
)

var (
	ErrNilCell        = errors.New("bridge: state request without cell")
	ErrUnknownRequest = errors.New("bridge: unknown engine request")
)

// checkBatch reports the first request flatten could not resolve. No
// capability is touched.
func checkBatch(batch []rollback.Request) error {
	for _, req := range batch {
		switch r := req.(type) {
		case rollback.SaveGameState:
			if r.Cell == nil {
				return fmt.Errorf("%w: save frame %d", ErrNilCell, r.Frame)
			}
		case rollback.LoadGameState:
			if r.Cell == nil {
				return fmt.Errorf("%w: load frame %d", ErrNilCell, r.Frame)
			}
		case rollback.AdvanceFrame:
		default:
			return fmt.Errorf("%w: %T", ErrUnknownRequest, req)
		}
	}
	return nil
}

// flatten converts one engine batch into plain records, resolving state
// capabilities as it goes. Order follows the batch; an advance expands to
// one SetInput per player in slot order followed by AdvanceFrame. A batch
// that fails checkBatch resolves nothing.
func flatten(batch []rollback.Request) ([]protocol.Request, error) {
	if err := checkBatch(batch); err != nil {
		return nil, err
	}
	out := make([]protocol.Request, 0, len(batch)*3)
	for _, req := range batch {
		switch r := req.(type) {
		case rollback.SaveGameState:
			r.Cell.Save(r.Frame, nil, nil)
			out = append(out, protocol.SaveGameStateRequest(int32(r.Frame)))
		case rollback.LoadGameState:
			_ = r.Cell.Load()
			out = append(out, protocol.LoadGameStateRequest(int32(r.Frame)))
		case rollback.AdvanceFrame:
			for player, in := range r.Inputs {
				out = append(out, protocol.SetInputRequest(int32(r.Frame), uint32(player), uint32(in.Input)))
			}
			out = append(out, protocol.AdvanceFrameRequest(int32(r.Frame)))
		}
	}
	return out, nil
}
