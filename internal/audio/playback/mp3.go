package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep/mp3"
)

// ProbeMP3 returns the playing time of an mp3 clip.
func ProbeMP3(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, errors.New("playback: empty mp3 clip")
	}
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return 0, fmt.Errorf("playback: decode mp3: %w", err)
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}
