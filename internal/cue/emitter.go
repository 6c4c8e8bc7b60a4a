package cue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"blv-assistant/internal/audio/playback"
	"blv-assistant/internal/domain"
)

type Player interface {
	Play(ctx context.Context, clip []byte) (playback.Playback, error)
}

// Emitter plays cues from a Library.
type Emitter struct {
	lib         *Library
	player      Player
	checkpoints Checkpoints
	waiter      playback.Waiter
	logger      *slog.Logger
}

type Option func(*Emitter)

func WithWaiter(w playback.Waiter) Option {
	return func(e *Emitter) { e.waiter = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEmitter(lib *Library, player Player, checkpoints Checkpoints, opts ...Option) (*Emitter, error) {
	if lib == nil {
		return nil, errors.New("cue: library must not be nil")
	}
	if player == nil {
		return nil, errors.New("cue: player must not be nil")
	}
	if checkpoints == nil {
		checkpoints = DefaultCheckpoints()
	}
	e := &Emitter{
		lib:         lib,
		player:      player,
		checkpoints: checkpoints,
		waiter:      playback.Waiter{Margin: playback.DefaultMargin},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Play starts the cue. With block set it returns only after the cue has
// finished, or its length plus the margin has elapsed.
func (e *Emitter) Play(ctx context.Context, id string, block bool) error {
	c, ok := e.lib.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCue, id)
	}
	pb, err := e.player.Play(ctx, c.Clip)
	if err != nil {
		return fmt.Errorf("cue: play %s: %w", id, err)
	}
	if pb.Duration <= 0 {
		pb.Duration = c.Duration
	}
	if !block {
		return nil
	}
	if err := e.waiter.Wait(ctx, pb); err != nil {
		return fmt.Errorf("cue: wait %s: %w", id, err)
	}
	return nil
}

// At plays the cue mapped to cp and waits for it. Unmapped checkpoints are
// a no-op.
func (e *Emitter) At(ctx context.Context, cp domain.Checkpoint) error {
	id := e.checkpoints[cp]
	if id == "" {
		return nil
	}
	e.logger.Debug("cue: playing", "checkpoint", string(cp), "cue", id)
	return e.Play(ctx, id, true)
}
