package conversation

// State is a named phase of the turn-taking loop.
type State string

const (
	StateIdle        State = "IDLE"
	StateListening   State = "LISTENING"
	StateProcessing  State = "PROCESSING"
	StateSpeaking    State = "SPEAKING"
	StateTerminating State = "TERMINATING"
)

func (s State) String() string { return string(s) }
