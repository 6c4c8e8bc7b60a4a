// Package activitylog appends committed user/assistant pairs to a
// line-oriented JSON log. The log is write-only; nothing reads it back.
package activitylog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	"blv-assistant/internal/domain"
)

// Recorder receives every committed turn.
type Recorder interface {
	RecordTurn(ctx context.Context, rec domain.TurnRecord) error
}

// Log writes one JSON object per line.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// New wraps w. If w is also an io.Closer, Close closes it.
func New(w io.Writer) (*Log, error) {
	if w == nil {
		return nil, errors.New("activitylog: writer must not be nil")
	}
	l := &Log{w: w}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l, nil
}

// Open appends to the file at path, creating it and its directory if needed.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, errors.New("activitylog: path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("activitylog: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("activitylog: open %s: %w", path, err)
	}
	return New(f)
}

func (l *Log) RecordTurn(_ context.Context, rec domain.TurnRecord) error {
	line, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("activitylog: marshal: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		return fmt.Errorf("activitylog: write: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// Multi fans a turn out to every recorder and joins their errors.
type Multi []Recorder

func (m Multi) RecordTurn(ctx context.Context, rec domain.TurnRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordTurn(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
