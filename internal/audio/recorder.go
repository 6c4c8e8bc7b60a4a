package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// ErrNoAudio is returned by Stop when nothing was captured.
var ErrNoAudio = errors.New("audio: no audio captured")

// Recorder captures mono 16-bit audio from the default input device.
// portaudio.Initialize must have been called by the process.
type Recorder struct {
	SampleRate      int
	FramesPerBuffer int

	mu      sync.Mutex
	stream  *portaudio.Stream
	stop    chan struct{}
	done    chan struct{}
	samples []int16
	readErr error
}

// NewRecorder returns a Recorder at sampleRate Hz reading 50ms buffers.
func NewRecorder(sampleRate int) *Recorder {
	return &Recorder{SampleRate: sampleRate, FramesPerBuffer: sampleRate / 20}
}

// Start opens the microphone and begins buffering samples.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return errors.New("audio: recorder already started")
	}

	buf := make([]int16, r.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.SampleRate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("audio: start input stream: %w", err)
	}

	r.stream = stream
	r.samples = r.samples[:0]
	r.readErr = nil
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.read(stream, buf, r.stop, r.done)
	return nil
}

func (r *Recorder) read(stream *portaudio.Stream, buf []int16, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if err := stream.Read(); err != nil && err != portaudio.InputOverflowed {
			r.mu.Lock()
			r.readErr = err
			r.mu.Unlock()
			return
		}
		r.mu.Lock()
		r.samples = append(r.samples, buf...)
		r.mu.Unlock()
	}
}

// Stop closes the microphone and returns the capture as a WAV clip.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	stream, stop, done := r.stream, r.stop, r.done
	r.mu.Unlock()
	if stream == nil {
		return nil, errors.New("audio: recorder not started")
	}

	close(stop)
	<-done
	stopErr := stream.Stop()
	closeErr := stream.Close()

	r.mu.Lock()
	samples := make([]int16, len(r.samples))
	copy(samples, r.samples)
	readErr := r.readErr
	r.stream = nil
	r.mu.Unlock()

	if readErr != nil {
		return nil, fmt.Errorf("audio: read input stream: %w", readErr)
	}
	if err := errors.Join(stopErr, closeErr); err != nil {
		return nil, fmt.Errorf("audio: close input stream: %w", err)
	}
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}
	return EncodeWAV(samples, r.SampleRate, 1)
}
