package rollback

// inputLog records one player's inputs by frame.
type inputLog struct {
	inputs map[Frame]Input
}

func newInputLog() *inputLog {
	return &inputLog{inputs: make(map[Frame]Input)}
}

func (l *inputLog) set(f Frame, in Input) {
	l.inputs[f] = in
}

func (l *inputLog) get(f Frame) (Input, bool) {
	in, ok := l.inputs[f]
	return in, ok
}

func (l *inputLog) prune(before Frame) {
	for f := range l.inputs {
		if f < before {
			delete(l.inputs, f)
		}
	}
}
