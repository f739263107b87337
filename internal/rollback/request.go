package rollback

// Request is one event of an advance batch. The concrete types are
// SaveGameState, LoadGameState, and AdvanceFrame.
type Request interface {
	isRequest()
}

// SaveGameState asks the game to store its state for Frame into Cell.
type SaveGameState struct {
	Cell  *GameStateCell
	Frame Frame
}

// LoadGameState asks the game to restore the state held by Cell.
type LoadGameState struct {
	Cell  *GameStateCell
	Frame Frame
}

// AdvanceFrame asks the game to step Frame with one input per player,
// indexed by player handle.
type AdvanceFrame struct {
	Frame  Frame
	Inputs []PlayerInput
}

func (SaveGameState) isRequest() {}
func (LoadGameState) isRequest() {}
func (AdvanceFrame) isRequest()  {}
