package speech

// State is the turn-taking phase of one voice session
type State int

const (
	Idle State = iota
	Listening
	Processing
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Processing:
		return "processing"
	case Speaking:
		return "speaking"
	}
	return "unknown"
}
