package cue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blv-assistant/internal/audio/playback"
	"blv-assistant/internal/domain"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakePlayer struct {
	playback playback.Playback
	err      error
	clips    [][]byte
}

func (f *fakePlayer) Play(_ context.Context, clip []byte) (playback.Playback, error) {
	f.clips = append(f.clips, clip)
	return f.playback, f.err
}

type fakeClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

type fakeSynth struct {
	err   error
	texts []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return []byte("mp3:" + text), nil
}

func stubProbe(t *testing.T, d time.Duration) {
	t.Helper()
	orig := probeDuration
	probeDuration = func(data []byte) (time.Duration, error) {
		if string(data) == "corrupt" {
			return 0, errors.New("not an mp3")
		}
		return d, nil
	}
	t.Cleanup(func() { probeDuration = orig })
}

func testLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := NewLibrary(
		Cue{ID: StartTalking, Clip: []byte("start"), Duration: 1500 * time.Millisecond},
		Cue{ID: Working, Clip: []byte("working"), Duration: time.Second},
		Cue{ID: TurnFailed, Clip: []byte("failed"), Duration: 2 * time.Second},
	)
	require.NoError(t, err)
	return lib
}

// ---------------------------------------------------------------------------
// Library
// ---------------------------------------------------------------------------

func TestNewLibrary_Validation(t *testing.T) {
	_, err := NewLibrary(Cue{ID: " ", Clip: []byte("x")})
	require.ErrorContains(t, err, "id")
	_, err = NewLibrary(Cue{ID: "a"})
	require.ErrorContains(t, err, "clip")

	var nilLib *Library
	_, ok := nilLib.Get("a")
	require.False(t, ok)
	require.Nil(t, nilLib.IDs())
}

func TestLoadDir_ReadsMP3Assets(t *testing.T) {
	stubProbe(t, 1200*time.Millisecond)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "start-talking.mp3"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "working.MP3"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("c"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mp3"), 0o755))

	lib, err := LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"start-talking", "working"}, lib.IDs())

	c, ok := lib.Get("start-talking")
	require.True(t, ok)
	require.Equal(t, []byte("a"), c.Clip)
	require.Equal(t, 1200*time.Millisecond, c.Duration)
}

func TestLoadDir_Errors(t *testing.T) {
	stubProbe(t, time.Second)
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "read dir")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.mp3"), []byte("corrupt"), 0o644))
	_, err = LoadDir(dir)
	require.ErrorContains(t, err, "probe")
}

// ---------------------------------------------------------------------------
// Emitter
// ---------------------------------------------------------------------------

func TestEmitter_PlayBlockingWaitsDurationPlusMargin(t *testing.T) {
	player := &fakePlayer{}
	clock := &fakeClock{}
	e, err := NewEmitter(testLibrary(t), player, nil, WithWaiter(playback.Waiter{Margin: time.Second, After: clock.After}))
	require.NoError(t, err)

	require.NoError(t, e.Play(context.Background(), StartTalking, true))
	require.Equal(t, [][]byte{[]byte("start")}, player.clips)
	require.Equal(t, []time.Duration{2500 * time.Millisecond}, clock.waits)
}

func TestEmitter_PlayerReportedDurationWins(t *testing.T) {
	player := &fakePlayer{playback: playback.Playback{Duration: 3 * time.Second}}
	clock := &fakeClock{}
	e, err := NewEmitter(testLibrary(t), player, nil, WithWaiter(playback.Waiter{Margin: time.Second, After: clock.After}))
	require.NoError(t, err)

	require.NoError(t, e.Play(context.Background(), Working, true))
	require.Equal(t, []time.Duration{4 * time.Second}, clock.waits)
}

func TestEmitter_PlayNonBlockingDoesNotWait(t *testing.T) {
	player := &fakePlayer{}
	clock := &fakeClock{}
	e, err := NewEmitter(testLibrary(t), player, nil, WithWaiter(playback.Waiter{After: clock.After}))
	require.NoError(t, err)

	require.NoError(t, e.Play(context.Background(), Working, false))
	require.Len(t, player.clips, 1)
	require.Empty(t, clock.waits)
}

func TestEmitter_PlayErrors(t *testing.T) {
	e, err := NewEmitter(testLibrary(t), &fakePlayer{err: errors.New("device gone")}, nil)
	require.NoError(t, err)

	err = e.Play(context.Background(), "nope", true)
	require.ErrorIs(t, err, ErrUnknownCue)

	err = e.Play(context.Background(), Working, true)
	require.ErrorContains(t, err, "device gone")
}

func TestEmitter_PlayCanceled(t *testing.T) {
	e, err := NewEmitter(testLibrary(t), &fakePlayer{}, nil, WithWaiter(playback.Waiter{
		After: func(time.Duration) <-chan time.Time { return make(chan time.Time) },
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Play(ctx, Working, true), context.Canceled)
}

func TestEmitter_AtUsesCheckpointMapping(t *testing.T) {
	player := &fakePlayer{}
	clock := &fakeClock{}
	e, err := NewEmitter(testLibrary(t), player, DefaultCheckpoints(), WithWaiter(playback.Waiter{After: clock.After}))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.At(ctx, domain.CheckpointBeforeCapture))
	require.NoError(t, e.At(ctx, domain.CheckpointAfterCapture))
	require.NoError(t, e.At(ctx, domain.CheckpointBeforePlayback))
	require.NoError(t, e.At(ctx, domain.CheckpointTurnFailed))

	require.Equal(t, [][]byte{[]byte("start"), []byte("working"), []byte("failed")}, player.clips)
	require.Len(t, clock.waits, 3, "checkpoint cues always block")
}

func TestNewEmitter_Validation(t *testing.T) {
	_, err := NewEmitter(nil, &fakePlayer{}, nil)
	require.Error(t, err)
	_, err = NewEmitter(testLibrary(t), nil, nil)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Checkpoints
// ---------------------------------------------------------------------------

func TestParseCheckpoints(t *testing.T) {
	cps, err := ParseCheckpoints(" before_capture=start-talking, after_playback = working ,turn_failed=,")
	require.NoError(t, err)
	require.Equal(t, Checkpoints{
		domain.CheckpointBeforeCapture: StartTalking,
		domain.CheckpointAfterPlayback: Working,
		domain.CheckpointTurnFailed:    "",
	}, cps)

	_, err = ParseCheckpoints("before_capture")
	require.ErrorContains(t, err, "missing '='")
	_, err = ParseCheckpoints("mid_turn=working")
	require.ErrorContains(t, err, "unknown checkpoint")

	cps, err = ParseCheckpoints("")
	require.NoError(t, err)
	require.Empty(t, cps)
}

func TestCheckpoints_Missing(t *testing.T) {
	lib, err := NewLibrary(Cue{ID: StartTalking, Clip: []byte("a")})
	require.NoError(t, err)
	require.Equal(t, []string{TurnFailed, Working}, DefaultCheckpoints().Missing(lib))
	require.Empty(t, Checkpoints{domain.CheckpointBeforeCapture: StartTalking}.Missing(lib))
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate_WritesOneAssetPerPhrase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cues")
	synth := &fakeSynth{}

	paths, err := Generate(context.Background(), synth, dir, DefaultPhrases)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "start-talking.mp3"),
		filepath.Join(dir, "turn-failed.mp3"),
		filepath.Join(dir, "working.mp3"),
	}, paths)
	require.Len(t, synth.texts, 3)

	data, err := os.ReadFile(filepath.Join(dir, "start-talking.mp3"))
	require.NoError(t, err)
	require.Equal(t, "mp3:Please start talking now.", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3, "no temp files left behind")
}

func TestGenerate_ThenLoadDir(t *testing.T) {
	stubProbe(t, 900*time.Millisecond)
	dir := t.TempDir()
	_, err := Generate(context.Background(), &fakeSynth{}, dir, map[string]string{Working: "One moment."})
	require.NoError(t, err)

	lib, err := LoadDir(dir)
	require.NoError(t, err)
	c, ok := lib.Get(Working)
	require.True(t, ok)
	require.Equal(t, 900*time.Millisecond, c.Duration)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(context.Background(), nil, t.TempDir(), DefaultPhrases)
	require.Error(t, err)

	_, err = Generate(context.Background(), &fakeSynth{}, " ", DefaultPhrases)
	require.Error(t, err)

	_, err = Generate(context.Background(), &fakeSynth{}, t.TempDir(), map[string]string{"../escape": "x"})
	require.ErrorContains(t, err, "invalid id")

	_, err = Generate(context.Background(), &fakeSynth{err: errors.New("quota")}, t.TempDir(), DefaultPhrases)
	require.ErrorContains(t, err, "quota")
}
