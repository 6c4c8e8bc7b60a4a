package trigger

import (
	"context"
	"fmt"

	"github.com/eiannone/keyboard"
)

// Keyboard reads raw key presses: space toggles capture, Esc or Ctrl-C quits.
type Keyboard struct {
	open  func(bufferSize int) (<-chan keyboard.KeyEvent, error)
	close func() error
}

func NewKeyboard() *Keyboard {
	return &Keyboard{open: keyboard.GetKeys, close: keyboard.Close}
}

func (k *Keyboard) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)
	keys, err := k.open(10)
	if err != nil {
		return fmt.Errorf("trigger: open keyboard: %w", err)
	}
	defer func() { _ = k.close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-keys:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return fmt.Errorf("trigger: read key: %w", ev.Err)
			}
			switch {
			case ev.Key == keyboard.KeySpace || ev.Rune == ' ':
				if !send(ctx, out, Event{Kind: Toggle}) {
					return nil
				}
			case ev.Key == keyboard.KeyEsc || ev.Key == keyboard.KeyCtrlC:
				send(ctx, out, Event{Kind: Quit})
				return nil
			}
		}
	}
}
