// Command cuegen renders the spoken cue phrases to mp3 files once, so the
// assistant can play them without a network call.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"blv-assistant/internal/config"
	"blv-assistant/internal/cue"
	"blv-assistant/internal/integrations/openai"
	"blv-assistant/internal/integrations/paramstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	dir := flag.String("dir", cfg.CueDir, "directory to write <id>.mp3 cues into")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall time limit")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	keys := paramstore.Chain{paramstore.Env{Vars: map[string]string{
		cfg.ParamPrefix + "/open-ai-token": "OPENAI_API_KEY",
	}}}
	if cfg.KeySource == config.KeyFromSSM {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			logger.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		keys = append(paramstore.Chain{ssmClient}, keys...)
	}

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
	client, err := openai.NewClient(keys, cfg.ParamPrefix, opts...)
	if err != nil {
		logger.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	written, err := cue.Generate(ctx, client, *dir, cue.DefaultPhrases)
	for _, path := range written {
		logger.Info("cue written", "path", path)
	}
	if err != nil {
		logger.Error("cue generation failed", "err", err)
		os.Exit(1)
	}
}
