package bridge

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/rollbridge/internal/protocol"
	"github.com/danmuck/rollbridge/internal/rollback"
	"github.com/danmuck/rollbridge/internal/testutil/testlog"
)

type bogusRequest struct {
	rollback.AdvanceFrame
}

func TestFlattenPreservesBatchOrder(t *testing.T) {
	testlog.Start(t)
	cell := &rollback.GameStateCell{}
	batch := []rollback.Request{
		rollback.LoadGameState{Cell: cell, Frame: 3},
		rollback.AdvanceFrame{Frame: 3, Inputs: []rollback.PlayerInput{{Input: 1}, {Input: 2}}},
		rollback.SaveGameState{Cell: cell, Frame: 4},
		rollback.AdvanceFrame{Frame: 4, Inputs: []rollback.PlayerInput{{Input: 5}, {Input: 6, Status: rollback.InputPredicted}}},
	}
	got, err := flatten(batch)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := []protocol.Request{
		protocol.LoadGameStateRequest(3),
		protocol.SetInputRequest(3, 0, 1),
		protocol.SetInputRequest(3, 1, 2),
		protocol.AdvanceFrameRequest(3),
		protocol.SaveGameStateRequest(4),
		protocol.SetInputRequest(4, 0, 5),
		protocol.SetInputRequest(4, 1, 6),
		protocol.AdvanceFrameRequest(4),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("flatten mismatch:\n got=%v\nwant=%v", got, want)
	}
	if cell.Frame() != 4 {
		t.Fatalf("expected save capability to run for frame 4, got %d", cell.Frame())
	}
}

func TestFlattenRejectsWholeBatch(t *testing.T) {
	testlog.Start(t)
	batch := []rollback.Request{
		rollback.AdvanceFrame{Frame: 0, Inputs: []rollback.PlayerInput{{Input: 1}}},
		rollback.SaveGameState{Frame: 1},
	}
	got, err := flatten(batch)
	if !errors.Is(err, ErrNilCell) || got != nil {
		t.Fatalf("expected ErrNilCell and no records, got %v %v", got, err)
	}

	_, err = flatten([]rollback.Request{bogusRequest{}})
	if !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("expected ErrUnknownRequest, got %v", err)
	}
}

func TestFlattenFailureLeavesCellsUntouched(t *testing.T) {
	testlog.Start(t)
	cell := &rollback.GameStateCell{}
	cell.Save(9, nil, nil)
	batch := []rollback.Request{
		rollback.SaveGameState{Cell: cell, Frame: 2},
		rollback.LoadGameState{Frame: 1},
	}
	if _, err := flatten(batch); !errors.Is(err, ErrNilCell) {
		t.Fatalf("expected ErrNilCell, got %v", err)
	}
	if cell.Frame() != 9 {
		t.Fatalf("expected cell to keep frame 9, got %d", cell.Frame())
	}
}

func TestEngineBatchesAlwaysResolve(t *testing.T) {
	testlog.Start(t)
	cfg := rollback.DefaultConfig()
	cfg.CheckDistance = 3
	st, err := rollback.NewSyncTestSession(cfg)
	if err != nil {
		t.Fatalf("new synctest: %v", err)
	}
	for frame := 0; frame < 40; frame++ {
		for p := 0; p < cfg.NumPlayers; p++ {
			if err := st.AddLocalInput(rollback.PlayerHandle(p), rollback.Input(frame+p)); err != nil {
				t.Fatalf("add input: %v", err)
			}
		}
		batch, err := st.AdvanceFrame()
		if err != nil {
			t.Fatalf("advance frame %d: %v", frame, err)
		}
		if err := checkBatch(batch); err != nil {
			t.Fatalf("frame %d: engine batch does not resolve: %v", frame, err)
		}
		if _, err := flatten(batch); err != nil {
			t.Fatalf("frame %d: flatten: %v", frame, err)
		}
	}
}
