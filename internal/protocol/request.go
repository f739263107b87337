package protocol

import "fmt"

// RequestTag identifies the kind of a Request record.
type RequestTag uint8

const (
	TagAdvanceFrame RequestTag = iota
	TagSetInput
	TagLoadGameState
	TagSaveGameState
	TagNone
)

func (t RequestTag) String() string {
	switch t {
	case TagAdvanceFrame:
		return "advance_frame"
	case TagSetInput:
		return "set_input"
	case TagLoadGameState:
		return "load_game_state"
	case TagSaveGameState:
		return "save_game_state"
	case TagNone:
		return "none"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Request is the plain record handed to the caller for one game action.
// Fields that do not apply to a tag are zero.
type Request struct {
	Tag    RequestTag
	Frame  int32
	Player uint32
	Input  uint32
}

// NoneRequest is returned when a queue is absent or empty.
func NoneRequest() Request {
	return Request{Tag: TagNone}
}

func AdvanceFrameRequest(frame int32) Request {
	return Request{Tag: TagAdvanceFrame, Frame: frame}
}

func SetInputRequest(frame int32, player, input uint32) Request {
	return Request{Tag: TagSetInput, Frame: frame, Player: player, Input: input}
}

func SaveGameStateRequest(frame int32) Request {
	return Request{Tag: TagSaveGameState, Frame: frame}
}

func LoadGameStateRequest(frame int32) Request {
	return Request{Tag: TagLoadGameState, Frame: frame}
}

func (r Request) IsNone() bool {
	return r.Tag == TagNone
}

func (r Request) String() string {
	switch r.Tag {
	case TagSetInput:
		return fmt.Sprintf("%s(frame=%d player=%d input=%d)", r.Tag, r.Frame, r.Player, r.Input)
	case TagNone:
		return r.Tag.String()
	default:
		return fmt.Sprintf("%s(frame=%d)", r.Tag, r.Frame)
	}
}
