// Package console prints the newest exchange of a conversation so a screen
// reader can pick it up.
package console

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"blv-assistant/handler"
	"blv-assistant/internal/domain"
	"blv-assistant/internal/usecase"
)

type Console struct {
	w io.Writer

	mu        sync.Mutex
	user      func(a ...interface{}) string
	assistant func(a ...interface{}) string
	notice    func(a ...interface{}) string
}

func New(w io.Writer) (*Console, error) {
	if w == nil {
		return nil, errors.New("console: writer must not be nil")
	}
	return &Console{
		w:         w,
		user:      color.New(color.FgGreen, color.Bold).SprintFunc(),
		assistant: color.New(color.FgCyan, color.Bold).SprintFunc(),
		notice:    color.New(color.FgYellow).SprintFunc(),
	}, nil
}

// ShowTurn prints the messages committed by the turn.
func (c *Console) ShowTurn(out usecase.TurnOutput) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range out.Committed {
		switch m.Role {
		case domain.RoleUser:
			label := "You:"
			if out.Recovered {
				label = "You (not understood):"
			}
			fmt.Fprintf(c.w, "%s %s\n", c.user(label), strings.TrimSpace(m.Content))
		case domain.RoleAssistant:
			fmt.Fprintf(c.w, "%s %s\n", c.assistant("Assistant:"), strings.TrimSpace(m.Content))
		}
	}
}

func (c *Console) ShowNotice(n handler.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, c.notice(n.Text))
}

// Banner prints the start-up help for the active input mode.
func (c *Console) Banner(lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		fmt.Fprintln(c.w, l)
	}
}
