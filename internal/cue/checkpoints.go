package cue

import (
	"fmt"
	"sort"
	"strings"

	"blv-assistant/internal/domain"
)

const (
	StartTalking = "start-talking"
	Working      = "working"
	TurnFailed   = "turn-failed"
)

// DefaultPhrases are the canned texts rendered into cue assets.
var DefaultPhrases = map[string]string{
	StartTalking: "Please start talking now.",
	Working:      "Got it. Give me a moment.",
	TurnFailed:   "Sorry, something went wrong. Please try again.",
}

// Checkpoints maps pipeline checkpoints to cue ids. Checkpoints without an
// entry play nothing.
type Checkpoints map[domain.Checkpoint]string

func DefaultCheckpoints() Checkpoints {
	return Checkpoints{
		domain.CheckpointBeforeCapture: StartTalking,
		domain.CheckpointAfterCapture:  Working,
		domain.CheckpointTurnFailed:    TurnFailed,
	}
}

// ParseCheckpoints reads "checkpoint=cue,checkpoint=cue". An empty cue id
// silences that checkpoint.
func ParseCheckpoints(s string) (Checkpoints, error) {
	out := Checkpoints{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("cue: checkpoint mapping %q: missing '='", pair)
		}
		cp := domain.Checkpoint(strings.TrimSpace(k))
		if !knownCheckpoint(cp) {
			return nil, fmt.Errorf("cue: unknown checkpoint %q", cp)
		}
		out[cp] = strings.TrimSpace(v)
	}
	return out, nil
}

// Missing returns the mapped cue ids that lib does not contain.
func (c Checkpoints) Missing(lib *Library) []string {
	seen := map[string]bool{}
	var missing []string
	for _, id := range c {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := lib.Get(id); !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

func knownCheckpoint(cp domain.Checkpoint) bool {
	for _, k := range domain.Checkpoints {
		if k == cp {
			return true
		}
	}
	return false
}
