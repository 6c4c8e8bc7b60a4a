// Package config reads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	InputKeyboard = "keyboard"
	InputLines    = "lines"

	KeyFromEnv = "env"
	KeyFromSSM = "ssm"
)

type Config struct {
	// ParamPrefix names the API key parameter "<prefix>/open-ai-token".
	ParamPrefix string
	// KeySource is "env" (OPENAI_API_KEY) or "ssm" (Parameter Store, then env).
	KeySource     string
	OpenAIBaseURL string
	AzureEndpoint string
	AzureVersion  string

	ChatModel          string
	SpeechModel        string
	TranscriptionModel string
	Voice              string
	SystemPrompt       string

	CompletionTimeout    time.Duration
	SynthesisTimeout     time.Duration
	TranscriptionTimeout time.Duration
	MaxRetries           int
	RetryBase            time.Duration
	MaxInputLength       int
	PlaybackMargin       time.Duration

	CueDir         string
	CueCheckpoints string

	ActivityLog     string
	ActivityTable   string
	ActivityTimeout time.Duration

	SampleRate int
	MaxCapture time.Duration
	InputMode  string

	LogFormat string
	LogLevel  slog.Level
}

// Load reads .env (or the given files) when present and then the environment.
// Unparsable numbers and durations fall back to their defaults.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := Config{
		ParamPrefix:   strings.TrimSuffix(envString("PARAM_PREFIX", "/blv-assistant"), "/"),
		KeySource:     strings.ToLower(envString("KEY_SOURCE", KeyFromEnv)),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		AzureEndpoint: os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureVersion:  os.Getenv("AZURE_API_VERSION"),

		ChatModel:          os.Getenv("CHAT_MODEL"),
		SpeechModel:        os.Getenv("TTS_MODEL"),
		TranscriptionModel: os.Getenv("STT_MODEL"),
		Voice:              os.Getenv("TTS_VOICE"),
		SystemPrompt:       os.Getenv("SYSTEM_PROMPT"),

		CompletionTimeout:    envDuration("COMPLETION_TIMEOUT", 30*time.Second),
		SynthesisTimeout:     envDuration("SYNTHESIS_TIMEOUT", 30*time.Second),
		TranscriptionTimeout: envDuration("TRANSCRIPTION_TIMEOUT", 30*time.Second),
		MaxRetries:           envInt("MAX_RETRIES", 2),
		RetryBase:            envDuration("RETRY_BASE", 500*time.Millisecond),
		MaxInputLength:       envInt("MAX_INPUT_LENGTH", 2000),
		PlaybackMargin:       envDuration("PLAYBACK_MARGIN", time.Second),

		CueDir:         envString("CUE_DIR", "cues"),
		CueCheckpoints: os.Getenv("CUE_CHECKPOINTS"),

		ActivityLog:     envString("ACTIVITY_LOG", "activity.jsonl"),
		ActivityTable:   os.Getenv("ACTIVITY_TABLE"),
		ActivityTimeout: envDuration("ACTIVITY_TIMEOUT", 5*time.Second),

		SampleRate: envInt("SAMPLE_RATE", 16000),
		MaxCapture: envDuration("MAX_CAPTURE", 60*time.Second),
		InputMode:  strings.ToLower(envString("INPUT_MODE", InputKeyboard)),

		LogFormat: strings.ToLower(envString("LOG_FORMAT", "text")),
	}

	if cfg.InputMode != InputKeyboard && cfg.InputMode != InputLines {
		return Config{}, fmt.Errorf("config: INPUT_MODE must be %q or %q, got %q", InputKeyboard, InputLines, cfg.InputMode)
	}
	if cfg.KeySource != KeyFromEnv && cfg.KeySource != KeyFromSSM {
		return Config{}, fmt.Errorf("config: KEY_SOURCE must be %q or %q, got %q", KeyFromEnv, KeyFromSSM, cfg.KeySource)
	}
	if cfg.ParamPrefix == "" {
		return Config{}, errors.New("config: PARAM_PREFIX must not be empty")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
		}
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("config: SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	return cfg, nil
}

// Logger builds the process logger described by the config.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// UsesAWS reports whether any AWS service is configured.
func (c Config) UsesAWS() bool {
	return c.KeySource == KeyFromSSM || c.ActivityTable != ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envDuration accepts Go durations ("45s") or a bare number of seconds.
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
