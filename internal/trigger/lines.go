package trigger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const quitCommand = "/quit"

// Lines submits each non-blank line of r as text. An empty line toggles voice
// capture; "/quit" or end of input quits.
type Lines struct {
	r io.Reader
}

func NewLines(r io.Reader) (*Lines, error) {
	if r == nil {
		return nil, errors.New("trigger: reader must not be nil")
	}
	return &Lines{r: r}, nil
}

func (l *Lines) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	sc := bufio.NewScanner(l.r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		ev := Event{Kind: Text, Text: line}
		switch line {
		case "":
			ev = Event{Kind: Toggle}
		case quitCommand:
			send(ctx, out, Event{Kind: Quit})
			return nil
		}
		if !send(ctx, out, ev) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("trigger: read input: %w", err)
	}
	send(ctx, out, Event{Kind: Quit})
	return nil
}
