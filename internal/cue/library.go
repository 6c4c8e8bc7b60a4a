// Package cue plays short pre-rendered acknowledgement clips at turn
// checkpoints so the user can hear that the assistant is working.
package cue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"blv-assistant/internal/audio/playback"
)

const assetExt = ".mp3"

// ErrUnknownCue is returned when a cue id has no loaded asset.
var ErrUnknownCue = errors.New("cue: unknown cue")

// probeDuration decodes an asset to learn its length. Tests replace it.
var probeDuration = playback.ProbeMP3

// Cue is one pre-rendered clip and its decoded length.
type Cue struct {
	ID       string
	Clip     []byte
	Duration time.Duration
}

// Library maps cue ids to assets. It is read-only after construction.
type Library struct {
	cues map[string]Cue
}

func NewLibrary(cues ...Cue) (*Library, error) {
	lib := &Library{cues: make(map[string]Cue, len(cues))}
	for _, c := range cues {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" {
			return nil, errors.New("cue: id must not be empty")
		}
		if len(c.Clip) == 0 {
			return nil, fmt.Errorf("cue: %s: clip must not be empty", c.ID)
		}
		lib.cues[c.ID] = c
	}
	return lib, nil
}

// LoadDir reads every <id>.mp3 in dir.
func LoadDir(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cue: read dir: %w", err)
	}
	var cues []Cue
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), assetExt) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		clip, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cue: read %s: %w", path, err)
		}
		d, err := probeDuration(clip)
		if err != nil {
			return nil, fmt.Errorf("cue: probe %s: %w", path, err)
		}
		cues = append(cues, Cue{
			ID:       strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
			Clip:     clip,
			Duration: d,
		})
	}
	return NewLibrary(cues...)
}

func (l *Library) Get(id string) (Cue, bool) {
	if l == nil {
		return Cue{}, false
	}
	c, ok := l.cues[id]
	return c, ok
}

// IDs returns the loaded cue ids in sorted order.
func (l *Library) IDs() []string {
	if l == nil {
		return nil
	}
	ids := make([]string, 0, len(l.cues))
	for id := range l.cues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
