package rollback

import "sync"

// GameStateCell is the save/load capability attached to state requests.
type GameStateCell struct {
	mu       sync.Mutex
	frame    Frame
	data     []byte
	checksum *uint64
}

func newGameStateCell() *GameStateCell {
	return &GameStateCell{frame: NullFrame}
}

// Save stores a copy of data for frame. A nil checksum skips desync checks.
func (c *GameStateCell) Save(frame Frame, data []byte, checksum *uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
	c.data = append(c.data[:0], data...)
	if checksum != nil {
		sum := *checksum
		c.checksum = &sum
	} else {
		c.checksum = nil
	}
}

// Load returns a copy of the stored state.
func (c *GameStateCell) Load() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out
}

func (c *GameStateCell) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

func (c *GameStateCell) Checksum() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checksum == nil {
		return 0, false
	}
	return *c.checksum, true
}

// savedStates is a ring of cells indexed by frame.
type savedStates struct {
	cells []*GameStateCell
}

func newSavedStates(n int) savedStates {
	cells := make([]*GameStateCell, n)
	for i := range cells {
		cells[i] = newGameStateCell()
	}
	return savedStates{cells: cells}
}

func (s savedStates) cell(f Frame) *GameStateCell {
	return s.cells[int(f)%len(s.cells)]
}
