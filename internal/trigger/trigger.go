// Package trigger turns user actions into turn events: a key that toggles
// voice capture, or typed lines submitted as text.
package trigger

import "context"

type Kind int

const (
	// Toggle starts a voice turn, or ends the capture of the running one.
	Toggle Kind = iota + 1
	// Text submits typed input.
	Text
	// Quit ends the session.
	Quit
)

func (k Kind) String() string {
	switch k {
	case Toggle:
		return "toggle"
	case Text:
		return "text"
	case Quit:
		return "quit"
	}
	return "unknown"
}

type Event struct {
	Kind Kind
	Text string
}

// Source emits events until ctx is done or the user quits. Run closes out
// before returning.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
