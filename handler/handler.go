// Package handler routes trigger events to the turn controller and reports
// each outcome to the console.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"blv-assistant/internal/trigger"
	"blv-assistant/internal/usecase"
)

// ErrQuit is returned by Handle when the user asks to end the session.
var ErrQuit = errors.New("handler: quit requested")

type TurnRunner interface {
	RunTurn(ctx context.Context, in usecase.TurnInput) (usecase.TurnOutput, error)
}

// Releaser ends microphone captures. Arm makes a Release that arrives
// before recording starts, for example while the start cue plays, end the
// next capture.
type Releaser interface {
	Arm() (disarm func())
	Release() bool
}

type Renderer interface {
	ShowTurn(out usecase.TurnOutput)
	ShowNotice(n Notice)
}

// Notice is a short message shown to the user when a turn does not complete.
type Notice struct {
	Code usecase.ErrorCode
	Text string
}

type Handler struct {
	runner  TurnRunner
	capture Releaser
	view    Renderer
	logger  *slog.Logger

	wg sync.WaitGroup
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithReleaser lets a Toggle event end the capture of a running voice turn.
func WithReleaser(r Releaser) Option {
	return func(h *Handler) { h.capture = r }
}

func NewHandler(runner TurnRunner, view Renderer, opts ...Option) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("handler: runner must not be nil")
	}
	if view == nil {
		return nil, errors.New("handler: view must not be nil")
	}
	h := &Handler{runner: runner, view: view, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle reacts to one event. Turns run in the background so a later Toggle
// can end their capture; call Wait to block until they finish.
func (h *Handler) Handle(ctx context.Context, ev trigger.Event) error {
	switch ev.Kind {
	case trigger.Quit:
		return ErrQuit
	case trigger.Toggle:
		if h.capture != nil && h.capture.Release() {
			h.logger.Debug("handler: capture released")
			return nil
		}
		disarm := func() {}
		if h.capture != nil {
			disarm = h.capture.Arm()
		}
		h.start(ctx, usecase.TurnInput{}, disarm)
	case trigger.Text:
		if ev.Text == "" {
			return nil
		}
		h.start(ctx, usecase.TurnInput{Text: ev.Text}, func() {})
	default:
		h.logger.Warn("handler: unknown event", "kind", ev.Kind.String())
	}
	return nil
}

// Run handles events until the user quits, the source closes or ctx ends.
// In-flight turns are canceled and awaited before it returns.
func (h *Handler) Run(ctx context.Context, events <-chan trigger.Event) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		h.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := h.Handle(turnCtx, ev); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) start(ctx context.Context, in usecase.TurnInput, done func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer done()
		h.runTurn(ctx, in)
	}()
}

func (h *Handler) runTurn(ctx context.Context, in usecase.TurnInput) {
	out, err := h.runner.RunTurn(ctx, in)
	if len(out.Committed) > 0 {
		h.view.ShowTurn(out)
	}
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		h.logger.Debug("handler: turn canceled", "err", err)
		return
	}
	n := noticeFor(err)
	h.logger.Info("handler: turn not completed", "code", string(n.Code), "err", err)
	h.view.ShowNotice(n)
}

func noticeFor(err error) Notice {
	code := usecase.CodeOf(err)
	switch code {
	case usecase.ErrorInvalidInput:
		return Notice{Code: code, Text: "That message is too long. Please say it in fewer words."}
	case usecase.ErrorCaptureFailure:
		return Notice{Code: code, Text: "I could not hear you. Please try again."}
	case usecase.ErrorCompletionFailure:
		return Notice{Code: code, Text: "I could not get an answer right now. Please try again."}
	case usecase.ErrorSynthesisFailure:
		return Notice{Code: code, Text: "I have an answer but could not speak it. It is shown above."}
	case usecase.ErrorTurnInProgress:
		return Notice{Code: code, Text: "I am still working on your last request."}
	}
	return Notice{Code: usecase.ErrorInternal, Text: "Something went wrong. Please try again."}
}
