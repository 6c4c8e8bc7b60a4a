package cue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Generate renders each phrase once and writes it to dir as <id>.mp3,
// replacing any existing asset. It returns the written paths in id order.
func Generate(ctx context.Context, synth Synthesizer, dir string, phrases map[string]string) ([]string, error) {
	if synth == nil {
		return nil, errors.New("cue: synthesizer must not be nil")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cue: output dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cue: create dir: %w", err)
	}

	ids := make([]string, 0, len(phrases))
	for id := range phrases {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	written := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) {
			return written, fmt.Errorf("cue: invalid id %q", id)
		}
		clip, err := synth.Synthesize(ctx, phrases[id])
		if err != nil {
			return written, fmt.Errorf("cue: synthesize %s: %w", id, err)
		}
		path := filepath.Join(dir, id+assetExt)
		if err := writeAtomic(path, clip); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cue-*")
	if err != nil {
		return fmt.Errorf("cue: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cue: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cue: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cue: rename %s: %w", path, err)
	}
	return nil
}
