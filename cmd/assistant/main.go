package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	"blv-assistant/handler"
	"blv-assistant/internal/activitylog"
	"blv-assistant/internal/audio"
	"blv-assistant/internal/audio/playback"
	"blv-assistant/internal/config"
	"blv-assistant/internal/console"
	"blv-assistant/internal/conversation"
	"blv-assistant/internal/cue"
	"blv-assistant/internal/integrations/openai"
	"blv-assistant/internal/integrations/paramstore"
	"blv-assistant/internal/repository"
	"blv-assistant/internal/trigger"
	"blv-assistant/internal/usecase"
)

// tts-1 returns 24kHz mp3; the speaker runs at that rate so speech is not resampled.
const speakerRate = 24000

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	// ---- API key lookup ----
	keys := paramstore.Chain{paramstore.Env{Vars: map[string]string{
		cfg.ParamPrefix + "/open-ai-token": "OPENAI_API_KEY",
	}}}
	var repo *repository.Client
	if cfg.UsesAWS() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		if cfg.KeySource == config.KeyFromSSM {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				logger.Error("failed to create SSM client", "err", err)
				os.Exit(1)
			}
			keys = append(paramstore.Chain{ssmClient}, keys...)
		}
		if cfg.ActivityTable != "" {
			repo, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.ActivityTable)
			if err != nil {
				logger.Error("failed to create activity table client", "err", err)
				os.Exit(1)
			}
		}
	}

	// ---- OpenAI ----
	opts := []openai.Option{
		openai.WithModels(cfg.ChatModel, cfg.SpeechModel, cfg.TranscriptionModel),
		openai.WithVoice(cfg.Voice),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.AzureEndpoint != "" {
		opts = append(opts, openai.WithAzure(cfg.AzureEndpoint, cfg.AzureVersion))
	}
	openaiClient, err := openai.NewClient(keys, cfg.ParamPrefix, opts...)
	if err != nil {
		logger.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Audio ----
	speaker, err := audio.NewSpeakerPlayer(speakerRate)
	if err != nil {
		logger.Error("failed to create speaker", "err", err)
		os.Exit(1)
	}
	defer speaker.Close()

	var ptt *trigger.PushToTalk
	if err := portaudio.Initialize(); err != nil {
		logger.Warn("microphone unavailable, voice input disabled", "err", err)
	} else {
		defer func() { _ = portaudio.Terminate() }()
		ptt, err = trigger.NewPushToTalk(audio.NewRecorder(cfg.SampleRate), cfg.MaxCapture)
		if err != nil {
			logger.Error("failed to create capture", "err", err)
			os.Exit(1)
		}
	}

	waiter := playback.Waiter{Margin: cfg.PlaybackMargin}
	cues := loadCues(cfg, speaker, waiter, logger)

	// ---- Activity ----
	activity, err := activitylog.Open(cfg.ActivityLog)
	if err != nil {
		logger.Error("failed to open activity log", "path", cfg.ActivityLog, "err", err)
		os.Exit(1)
	}
	defer func() { _ = activity.Close() }()
	recorders := activitylog.Multi{activity}
	if repo != nil {
		recorders = append(recorders, repo)
	}

	// ---- Conversation ----
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = usecase.DefaultSystemPrompt
	}
	store, err := conversation.New(prompt)
	if err != nil {
		logger.Error("failed to initialize conversation", "err", err)
		os.Exit(1)
	}

	deps := usecase.Dependencies{
		Completion:  openaiClient,
		Synthesizer: openaiClient,
		Player:      speaker,
		Cues:        cues,
		Activity:    recorders,
	}
	if ptt != nil {
		deps.Capturer = ptt
		deps.Transcriber = openaiClient
	}
	controller, err := usecase.NewController(store, deps,
		usecase.WithLogger(logger),
		usecase.WithWaiter(waiter),
		usecase.WithSessionID(uuid.NewString()),
		usecase.WithMaxInputLength(cfg.MaxInputLength),
		usecase.WithTimeouts(cfg.CompletionTimeout, cfg.SynthesisTimeout, cfg.TranscriptionTimeout),
		usecase.WithRetries(cfg.MaxRetries, cfg.RetryBase),
		usecase.WithActivityTimeout(cfg.ActivityTimeout),
	)
	if err != nil {
		logger.Error("failed to create turn controller", "err", err)
		os.Exit(1)
	}

	// ---- Console + triggers ----
	view, err := console.New(os.Stdout)
	if err != nil {
		logger.Error("failed to create console", "err", err)
		os.Exit(1)
	}
	hopts := []handler.Option{handler.WithLogger(logger)}
	if ptt != nil {
		hopts = append(hopts, handler.WithReleaser(ptt))
	}
	h, err := handler.NewHandler(controller, view, hopts...)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	var source trigger.Source
	switch cfg.InputMode {
	case config.InputLines:
		source, err = trigger.NewLines(os.Stdin)
		if err != nil {
			logger.Error("failed to read input", "err", err)
			os.Exit(1)
		}
		view.Banner("Type a question and press Enter.", "Press Enter on an empty line to start or stop talking.", "Type /quit to leave.")
	default:
		source = trigger.NewKeyboard()
		view.Banner("Press space to start talking and space again when you are done.", "Press Esc to leave.")
	}

	logger.Info("session started", "session", controller.SessionID(), "input", cfg.InputMode)
	runCtx, cancel := context.WithCancel(ctx)
	events := make(chan trigger.Event)
	go func() {
		if err := source.Run(runCtx, events); err != nil {
			logger.Error("input source stopped", "err", err)
		}
	}()
	if err := h.Run(runCtx, events); err != nil {
		logger.Error("session ended with error", "err", err)
	}
	cancel()

	if repo != nil {
		endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := repo.EndSession(endCtx, controller.SessionID(), controller.Turns()); err != nil {
			logger.Warn("failed to close session record", "err", err)
		}
		endCancel()
	}
	logger.Info("session ended", "session", controller.SessionID(), "turns", controller.Turns())
}

// loadCues returns nil when no cue assets are available; turns then run
// without audible checkpoints.
func loadCues(cfg config.Config, player cue.Player, waiter playback.Waiter, logger *slog.Logger) usecase.CueEmitter {
	checkpoints := cue.DefaultCheckpoints()
	if cfg.CueCheckpoints != "" {
		parsed, err := cue.ParseCheckpoints(cfg.CueCheckpoints)
		if err != nil {
			logger.Error("invalid cue checkpoints", "err", err)
			os.Exit(1)
		}
		checkpoints = parsed
	}

	lib, err := cue.LoadDir(cfg.CueDir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("cue directory not found, cues disabled; run cuegen to create it", "dir", cfg.CueDir)
		return nil
	}
	if err != nil {
		logger.Error("failed to load cues", "dir", cfg.CueDir, "err", err)
		os.Exit(1)
	}
	if missing := checkpoints.Missing(lib); len(missing) > 0 {
		logger.Warn("cues missing from library", "ids", missing)
	}

	emitter, err := cue.NewEmitter(lib, player, checkpoints, cue.WithWaiter(waiter), cue.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create cue emitter", "err", err)
		os.Exit(1)
	}
	return emitter
}
