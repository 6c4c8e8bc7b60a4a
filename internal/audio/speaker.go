// Package audio adapts the local sound devices: mp3 playback through the
// speaker and microphone capture.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"blv-assistant/internal/audio/playback"
)

const resampleQuality = 4

// SpeakerPlayer plays mp3 clips on the default output device. The device is
// opened on first use at a fixed rate; clips at other rates are resampled.
type SpeakerPlayer struct {
	rate beep.SampleRate

	mu      sync.Mutex
	started bool
}

// NewSpeakerPlayer returns a player that drives the speaker at sampleRate Hz.
func NewSpeakerPlayer(sampleRate int) (*SpeakerPlayer, error) {
	if sampleRate <= 0 {
		return nil, errors.New("audio: sample rate must be positive")
	}
	return &SpeakerPlayer{rate: beep.SampleRate(sampleRate)}, nil
}

// Play starts the clip and returns immediately. The returned Done channel is
// closed by the speaker once the last sample has been mixed.
func (p *SpeakerPlayer) Play(ctx context.Context, clip []byte) (playback.Playback, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip)))
	if err != nil {
		return playback.Playback{}, fmt.Errorf("audio: decode mp3: %w", err)
	}
	if err := p.open(); err != nil {
		_ = streamer.Close()
		return playback.Playback{}, err
	}

	var src beep.Streamer = streamer
	if format.SampleRate != p.rate {
		src = beep.Resample(resampleQuality, format.SampleRate, p.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(src, beep.Callback(func() {
		_ = streamer.Close()
		close(done)
	})))

	go func() {
		select {
		case <-ctx.Done():
			speaker.Clear()
			_ = streamer.Close()
		case <-done:
		}
	}()

	return playback.Playback{Duration: format.SampleRate.D(streamer.Len()), Done: done}, nil
}

func (p *SpeakerPlayer) open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := speaker.Init(p.rate, p.rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("audio: init speaker: %w", err)
	}
	p.started = true
	return nil
}

// Close stops any clip still playing.
func (p *SpeakerPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		speaker.Clear()
	}
}
