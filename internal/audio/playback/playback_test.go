package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingAfter struct {
	asked []time.Duration
	fire  bool
}

func (r *recordingAfter) after(d time.Duration) <-chan time.Time {
	r.asked = append(r.asked, d)
	ch := make(chan time.Time, 1)
	if r.fire {
		ch <- time.Time{}
	}
	return ch
}

func TestWaiter_FallsBackToDurationPlusMargin(t *testing.T) {
	rec := &recordingAfter{fire: true}
	w := Waiter{Margin: time.Second, After: rec.after}

	err := w.Wait(context.Background(), Playback{Duration: time.Second})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{2 * time.Second}, rec.asked)
}

func TestWaiter_DefaultMargin(t *testing.T) {
	require.Equal(t, 1500*time.Millisecond, Waiter{}.Budget(Playback{Duration: 500 * time.Millisecond}))
}

func TestWaiter_PrefersCompletionSignal(t *testing.T) {
	rec := &recordingAfter{}
	done := make(chan struct{})
	close(done)
	w := Waiter{Margin: time.Second, After: rec.after}

	require.NoError(t, w.Wait(context.Background(), Playback{Duration: 3 * time.Second, Done: done}))
}

func TestWaiter_StalledSignal(t *testing.T) {
	rec := &recordingAfter{fire: true}
	w := Waiter{Margin: time.Second, After: rec.after}

	err := w.Wait(context.Background(), Playback{Duration: time.Second, Done: make(chan struct{})})
	require.ErrorIs(t, err, ErrPlaybackStalled)
	require.Equal(t, []time.Duration{3 * time.Second}, rec.asked)
}

func TestWaiter_ContextCancelled(t *testing.T) {
	rec := &recordingAfter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Waiter{After: rec.after}.Wait(ctx, Playback{Duration: time.Hour})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProbeMP3_RejectsGarbage(t *testing.T) {
	_, err := ProbeMP3(nil)
	require.Error(t, err)

	_, err = ProbeMP3([]byte("definitely not an mp3 stream"))
	require.Error(t, err)
}
