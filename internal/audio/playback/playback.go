// Package playback describes clips handed to a player and waits for them
// to finish. It has no device dependencies.
package playback

import (
	"context"
	"errors"
	"time"
)

// DefaultMargin is added to a clip's decoded length when waiting for it to
// finish, absorbing decode and device queueing latency.
const DefaultMargin = time.Second

// ErrPlaybackStalled is returned when a player promised a completion signal
// but did not deliver it within the clip length plus twice the margin.
var ErrPlaybackStalled = errors.New("playback: player did not signal completion")

// Playback describes a clip handed to a player.
// Done is closed when the device finishes the clip; players without a
// completion signal leave it nil and callers fall back to Duration.
type Playback struct {
	Duration time.Duration
	Done     <-chan struct{}
}

// Waiter blocks until a Playback has settled.
type Waiter struct {
	Margin time.Duration
	// After defaults to time.After; tests replace it to observe waits.
	After func(time.Duration) <-chan time.Time
}

// Budget is the fallback wait for pb: its length plus the margin.
func (w Waiter) Budget(pb Playback) time.Duration {
	return pb.Duration + w.margin()
}

// Wait returns once pb has finished. With a completion signal it waits for
// Done; without one it sleeps for Budget(pb).
func (w Waiter) Wait(ctx context.Context, pb Playback) error {
	after := w.After
	if after == nil {
		after = time.After
	}
	if pb.Done == nil {
		select {
		case <-after(w.Budget(pb)):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case <-pb.Done:
		return nil
	case <-after(w.Budget(pb) + w.margin()):
		return ErrPlaybackStalled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w Waiter) margin() time.Duration {
	if w.Margin <= 0 {
		return DefaultMargin
	}
	return w.Margin
}
