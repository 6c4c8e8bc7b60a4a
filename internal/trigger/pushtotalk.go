package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultMaxCapture = 60 * time.Second

// ErrCaptureActive is returned when Capture is called while another capture
// is still recording.
var ErrCaptureActive = errors.New("trigger: capture already active")

// ErrReleasedEarly is returned when the capture was released before
// recording started.
var ErrReleasedEarly = errors.New("trigger: capture released before recording started")

type recorder interface {
	Start() error
	Stop() ([]byte, error)
}

// PushToTalk records from the microphone until Release is called, the
// maximum capture length passes, or the context ends.
type PushToTalk struct {
	rec        recorder
	maxCapture time.Duration

	mu sync.Mutex
	// release is set from Arm or Capture until the capture ends; it is
	// closed by Release.
	release   chan struct{}
	recording bool
}

func NewPushToTalk(rec recorder, maxCapture time.Duration) (*PushToTalk, error) {
	if rec == nil {
		return nil, errors.New("trigger: recorder must not be nil")
	}
	if maxCapture <= 0 {
		maxCapture = defaultMaxCapture
	}
	return &PushToTalk{rec: rec, maxCapture: maxCapture}, nil
}

// Arm prepares the next capture so a Release that arrives before recording
// starts ends it. The returned func drops the arm if no capture took it.
func (p *PushToTalk) Arm() (disarm func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.release == nil {
		p.release = make(chan struct{})
	}
	armed := p.release
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.release == armed && !p.recording {
			p.release = nil
		}
	}
}

func (p *PushToTalk) Capture(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	if p.recording {
		p.mu.Unlock()
		return nil, ErrCaptureActive
	}
	if p.release == nil {
		p.release = make(chan struct{})
	}
	release := p.release
	select {
	case <-release:
		p.release = nil
		p.mu.Unlock()
		return nil, ErrReleasedEarly
	default:
	}
	if err := p.rec.Start(); err != nil {
		p.release = nil
		p.mu.Unlock()
		return nil, fmt.Errorf("trigger: start recording: %w", err)
	}
	p.recording = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.recording = false
		if p.release == release {
			p.release = nil
		}
		p.mu.Unlock()
	}()

	timer := time.NewTimer(p.maxCapture)
	defer timer.Stop()
	select {
	case <-release:
	case <-timer.C:
	case <-ctx.Done():
		_, _ = p.rec.Stop()
		return nil, ctx.Err()
	}
	return p.rec.Stop()
}

// Release ends the active or armed capture. It reports false when there was
// nothing to release.
func (p *PushToTalk) Release() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.release == nil {
		return false
	}
	select {
	case <-p.release:
		return false
	default:
	}
	close(p.release)
	return true
}

// Active reports whether a capture is recording.
func (p *PushToTalk) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}
