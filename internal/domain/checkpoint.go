package domain

// Checkpoint names a point in the turn pipeline where a feedback cue may play.
type Checkpoint string

const (
	CheckpointBeforeCapture  Checkpoint = "before_capture"
	CheckpointAfterCapture   Checkpoint = "after_capture"
	CheckpointBeforePlayback Checkpoint = "before_playback"
	CheckpointAfterPlayback  Checkpoint = "after_playback"
	CheckpointTurnFailed     Checkpoint = "turn_failed"
)

// Checkpoints lists every checkpoint in pipeline order.
var Checkpoints = []Checkpoint{
	CheckpointBeforeCapture,
	CheckpointAfterCapture,
	CheckpointBeforePlayback,
	CheckpointAfterPlayback,
	CheckpointTurnFailed,
}
