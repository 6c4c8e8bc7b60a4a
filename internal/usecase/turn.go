package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"blv-assistant/internal/audio/playback"
	"blv-assistant/internal/conversation"
	"blv-assistant/internal/domain"
)

const (
	defaultMaxInput             = 2000
	defaultCompletionTimeout    = 30 * time.Second
	defaultSynthesisTimeout     = 30 * time.Second
	defaultTranscriptionTimeout = 30 * time.Second
	defaultMaxRetries           = 2
	defaultRetryBase            = 500 * time.Millisecond
	defaultActivityTimeout      = 5 * time.Second
)

var errEmptyReply = errors.New("usecase: completion returned no text")

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

type CompletionClient interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Player interface {
	Play(ctx context.Context, clip []byte) (playback.Playback, error)
}

// Capturer records one utterance and returns it as WAV.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// CueEmitter plays the feedback cue mapped to a checkpoint, if any, and
// returns once it has finished.
type CueEmitter interface {
	At(ctx context.Context, cp domain.Checkpoint) error
}

type ActivityRecorder interface {
	RecordTurn(ctx context.Context, rec domain.TurnRecord) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Dependencies are the collaborators of a Controller. Completion, Synthesizer
// and Player are required. Voice turns also need Capturer and Transcriber.
type Dependencies struct {
	Completion  CompletionClient
	Synthesizer Synthesizer
	Player      Player
	Transcriber Transcriber
	Capturer    Capturer
	Cues        CueEmitter
	Activity    ActivityRecorder
}

// TurnInput starts a turn. Blank Text means the input is captured from the
// microphone.
type TurnInput struct {
	Text string
}

type TurnOutput struct {
	State         TurnState
	UserText      string
	AssistantText string
	// Marker is the index of the last message before this turn; pass it to
	// Store.TailSince to get the messages the turn committed.
	Marker int
	// Committed holds the messages the turn appended, read before the next
	// turn could start.
	Committed    []domain.Message
	PlaybackWait time.Duration
	Recovered    bool
}

// Controller runs conversation turns against a single Store, one at a time.
type Controller struct {
	store       *conversation.Store
	completion  CompletionClient
	synthesizer Synthesizer
	player      Player
	transcriber Transcriber
	capturer    Capturer
	cues        CueEmitter
	activity    ActivityRecorder

	logger               *slog.Logger
	waiter               playback.Waiter
	sessionID            string
	maxInputLen          int
	completionTimeout    time.Duration
	synthesisTimeout     time.Duration
	transcriptionTimeout time.Duration
	activityTimeout      time.Duration
	maxRetries           int
	retryBase            time.Duration
	observer             func(TurnState)
	now                  func() time.Time

	busy  atomic.Bool
	mu    sync.Mutex
	state TurnState
	turns int
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithWaiter(w playback.Waiter) Option {
	return func(c *Controller) { c.waiter = w }
}

func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id = strings.TrimSpace(id); id != "" {
			c.sessionID = id
		}
	}
}

func WithMaxInputLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxInputLen = n
		}
	}
}

// WithTimeouts bounds each attempt of the network steps. Zero keeps the default.
func WithTimeouts(completion, synthesis, transcription time.Duration) Option {
	return func(c *Controller) {
		if completion > 0 {
			c.completionTimeout = completion
		}
		if synthesis > 0 {
			c.synthesisTimeout = synthesis
		}
		if transcription > 0 {
			c.transcriptionTimeout = transcription
		}
	}
}

// WithActivityTimeout bounds the write of each committed turn to the
// activity recorder.
func WithActivityTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.activityTimeout = d
		}
	}
}

// WithRetries sets how many times a retryable completion or synthesis error
// is retried, with exponential backoff starting at base.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxRetries = n
		}
		if base > 0 {
			c.retryBase = base
		}
	}
}

// WithStateObserver registers fn to be called on every state change.
func WithStateObserver(fn func(TurnState)) Option {
	return func(c *Controller) { c.observer = fn }
}

func NewController(store *conversation.Store, deps Dependencies, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if store.Len() == 0 {
		return nil, errors.New("usecase: conversation store must be initialized")
	}
	if deps.Completion == nil {
		return nil, errors.New("usecase: completion client must not be nil")
	}
	if deps.Synthesizer == nil {
		return nil, errors.New("usecase: synthesizer must not be nil")
	}
	if deps.Player == nil {
		return nil, errors.New("usecase: player must not be nil")
	}
	c := &Controller{
		store:                store,
		completion:           deps.Completion,
		synthesizer:          deps.Synthesizer,
		player:               deps.Player,
		transcriber:          deps.Transcriber,
		capturer:             deps.Capturer,
		cues:                 deps.Cues,
		activity:             deps.Activity,
		logger:               slog.Default(),
		waiter:               playback.Waiter{Margin: playback.DefaultMargin},
		sessionID:            newUUID(),
		maxInputLen:          defaultMaxInput,
		completionTimeout:    defaultCompletionTimeout,
		synthesisTimeout:     defaultSynthesisTimeout,
		transcriptionTimeout: defaultTranscriptionTimeout,
		activityTimeout:      defaultActivityTimeout,
		maxRetries:           defaultMaxRetries,
		retryBase:            defaultRetryBase,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) SessionID() string { return c.sessionID }

// State returns the state of the current or most recent turn.
func (c *Controller) State() TurnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Turns returns the number of turns that committed an assistant reply.
func (c *Controller) Turns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns
}

// RunTurn acquires user input, completes it against the full history, and
// speaks the reply. A call made while another turn is running fails with
// ErrorTurnInProgress without touching the conversation.
func (c *Controller) RunTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return TurnOutput{State: c.State()}, newError(ErrorTurnInProgress, "turn_in_progress", nil)
	}
	defer c.busy.Store(false)

	out, err := c.runTurn(ctx, in)
	out.Committed = c.store.TailSince(out.Marker)
	return out, err
}

func (c *Controller) runTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	out := TurnOutput{Marker: c.store.Len() - 1}
	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) > c.maxInputLen {
		return c.fail(ctx, out, newError(ErrorInvalidInput, "input_too_long", nil))
	}
	c.setState(StateAwaitingInput)

	if text == "" {
		var err error
		text, out.Recovered, err = c.listen(ctx)
		if err != nil {
			return c.fail(ctx, out, err)
		}
	}
	c.setState(StateTranscribed)
	out.UserText = text

	if err := c.store.Append(domain.RoleUser, text); err != nil {
		return c.fail(ctx, out, newError(ErrorInternal, "append_user", err))
	}

	c.setState(StateCompleting)
	reply, err := c.complete(ctx)
	if err != nil {
		return c.fail(ctx, out, newError(ErrorCompletionFailure, failureReason("completion", err), err))
	}
	if err := c.store.Append(domain.RoleAssistant, reply); err != nil {
		return c.fail(ctx, out, newError(ErrorInternal, "append_assistant", err))
	}
	out.AssistantText = reply
	c.setState(StateCompleted)
	c.record(ctx, out)

	c.setState(StateSynthesizing)
	clip, err := c.synthesize(ctx, reply)
	if err != nil {
		return c.fail(ctx, out, newError(ErrorSynthesisFailure, failureReason("synthesis", err), err))
	}

	c.setState(StatePlaying)
	out.PlaybackWait = c.play(ctx, clip)

	c.setState(StateDone)
	out.State = StateDone
	return out, nil
}

// listen captures and transcribes one utterance. Recognition problems are
// replaced by FallbackUtterance; only a failed capture is an error.
func (c *Controller) listen(ctx context.Context) (string, bool, error) {
	if c.capturer == nil || c.transcriber == nil {
		return "", false, newError(ErrorCaptureFailure, "capture_unavailable", nil)
	}

	c.cue(ctx, domain.CheckpointBeforeCapture)
	c.setState(StateCapturing)
	wav, err := c.capturer.Capture(ctx)
	if err != nil {
		return "", false, newError(ErrorCaptureFailure, "capture_error", err)
	}
	c.cue(ctx, domain.CheckpointAfterCapture)

	tctx, cancel := context.WithTimeout(ctx, c.transcriptionTimeout)
	text, err := c.transcriber.Transcribe(tctx, wav)
	cancel()
	if ctx.Err() != nil {
		return "", false, newError(ErrorCaptureFailure, "capture_canceled", ctx.Err())
	}
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		c.logger.Warn("usecase: speech not recognized, asking user to repeat", "err", err)
		return FallbackUtterance, true, nil
	}
	return text, false, nil
}

func (c *Controller) complete(ctx context.Context) (string, error) {
	var reply string
	err := c.withRetry(ctx, "completion", c.completionTimeout, func(ctx context.Context) error {
		r, err := c.completion.Complete(ctx, c.store.Snapshot())
		if err != nil {
			return err
		}
		if strings.TrimSpace(r) == "" {
			return errEmptyReply
		}
		reply = r
		return nil
	})
	return reply, err
}

func (c *Controller) synthesize(ctx context.Context, text string) ([]byte, error) {
	var clip []byte
	err := c.withRetry(ctx, "synthesis", c.synthesisTimeout, func(ctx context.Context) error {
		b, err := c.synthesizer.Synthesize(ctx, text)
		if err != nil {
			return err
		}
		clip = b
		return nil
	})
	return clip, err
}

// play hands the clip to the player and blocks until it has finished. Player
// problems are logged and never fail the turn.
func (c *Controller) play(ctx context.Context, clip []byte) time.Duration {
	c.cue(ctx, domain.CheckpointBeforePlayback)
	pb, err := c.player.Play(ctx, clip)
	if err != nil {
		c.logger.Error("usecase: playback failed", "code", ErrorPlaybackFailure, "err", err)
		return 0
	}
	wait := c.waiter.Budget(pb)
	if err := c.waiter.Wait(ctx, pb); err != nil {
		c.logger.Warn("usecase: playback wait ended early", "code", ErrorPlaybackFailure, "err", err)
	}
	c.cue(ctx, domain.CheckpointAfterPlayback)
	return wait
}

func (c *Controller) withRetry(ctx context.Context, step string, timeout time.Duration, fn func(context.Context) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := fn(actx)
		if err == nil {
			return nil
		}
		if ctx.Err() == nil && isRetryable(err) {
			c.logger.Warn("usecase: retrying "+step, "attempt", attempt, "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Controller) record(ctx context.Context, out TurnOutput) {
	c.mu.Lock()
	c.turns++
	turn := c.turns
	c.mu.Unlock()

	if c.activity == nil {
		return
	}
	rec := domain.TurnRecord{
		SessionID: c.sessionID,
		Turn:      turn,
		User:      out.UserText,
		Assistant: out.AssistantText,
		Recovered: out.Recovered,
		At:        c.now().UTC(),
	}
	rctx, cancel := context.WithTimeout(ctx, c.activityTimeout)
	defer cancel()
	if err := c.activity.RecordTurn(rctx, rec); err != nil {
		c.logger.Warn("usecase: activity record failed", "turn", turn, "err", err)
	}
}

func (c *Controller) fail(ctx context.Context, out TurnOutput, err error) (TurnOutput, error) {
	c.setState(StateFailed)
	out.State = StateFailed
	c.logger.Error("usecase: turn failed", "code", CodeOf(err), "session", c.sessionID, "err", err)
	if ctx.Err() == nil {
		c.cue(ctx, domain.CheckpointTurnFailed)
	}
	return out, err
}

func (c *Controller) cue(ctx context.Context, cp domain.Checkpoint) {
	if c.cues == nil {
		return
	}
	if err := c.cues.At(ctx, cp); err != nil {
		c.logger.Warn("usecase: cue failed", "checkpoint", string(cp), "err", err)
	}
}

func (c *Controller) setState(s TurnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.observer != nil {
		c.observer(s)
	}
}

func isRetryable(err error) bool {
	if status, ok := upstreamStatusCode(err); ok {
		return status == 429 || status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func failureReason(step string, err error) string {
	if status, ok := upstreamStatusCode(err); ok {
		if status == 429 {
			return step + "_rate_limited"
		}
		return step + "_upstream_error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return step + "_timeout"
	}
	if errors.Is(err, context.Canceled) {
		return step + "_canceled"
	}
	return step + "_error"
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
