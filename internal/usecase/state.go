package usecase

// TurnState is the position of a turn in the pipeline.
type TurnState int

const (
	StateAwaitingInput TurnState = iota
	StateCapturing
	StateTranscribed
	StateCompleting
	StateCompleted
	StateSynthesizing
	StatePlaying
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateAwaitingInput: "AWAITING_INPUT",
	StateCapturing:     "CAPTURING",
	StateTranscribed:   "TRANSCRIBED",
	StateCompleting:    "COMPLETING",
	StateCompleted:     "COMPLETED",
	StateSynthesizing:  "SYNTHESIZING",
	StatePlaying:       "PLAYING",
	StateDone:          "DONE",
	StateFailed:        "FAILED",
}

func (s TurnState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s TurnState) Terminal() bool {
	return s == StateDone || s == StateFailed
}
