package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"blv-assistant/internal/domain"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultChatModel = "gpt-4o"
	defaultVoice     = goopenai.VoiceAlloy
	transcribeName   = "capture.wav"
	maxSpeechBytes   = 16 << 20
)

// ErrNotUnderstood is returned by Transcribe when the recognizer produced no text.
var ErrNotUnderstood = errors.New("openai: speech not understood")

// tokenPayload is the JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type azureConfig struct {
	endpoint   string
	apiVersion string
}

// Client talks to OpenAI-compatible chat, speech and transcription endpoints.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	chatModel   string
	speechModel goopenai.SpeechModel
	voice       goopenai.SpeechVoice
	sttModel    string
	azure       *azureConfig

	keyMu sync.Mutex
	api   *goopenai.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithModels overrides the chat, speech and transcription models. Empty values
// keep the defaults.
func WithModels(chat, speech, transcription string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(chat); s != "" {
			c.chatModel = s
		}
		if s := strings.TrimSpace(speech); s != "" {
			c.speechModel = goopenai.SpeechModel(s)
		}
		if s := strings.TrimSpace(transcription); s != "" {
			c.sttModel = s
		}
	}
}

func WithVoice(voice string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(voice); s != "" {
			c.voice = goopenai.SpeechVoice(s)
		}
	}
}

// WithAzure targets an Azure OpenAI resource. Model names are used as
// deployment names and the key is sent in the api-key header.
func WithAzure(endpoint, apiVersion string) Option {
	return func(c *Client) {
		c.azure = &azureConfig{
			endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
			apiVersion: strings.TrimSpace(apiVersion),
		}
	}
}

// NewClient creates a new Client backed by the given Getter for API key
// retrieval. The key is fetched on the first request and reused for the
// lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
		chatModel:   defaultChatModel,
		speechModel: goopenai.TTSModel1,
		voice:       defaultVoice,
		sttModel:    goopenai.Whisper1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TokenParameterName is the parameter the API key is read from.
func (c *Client) TokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

// resolveAPI fetches the API key and builds the upstream client. Only a
// successful lookup is cached; a failed one is retried on the next call.
func (c *Client) resolveAPI(ctx context.Context) (*goopenai.Client, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.api != nil {
		return c.api, nil
	}
	key, err := fetchAPIKeyFromParamStore(ctx, c.getter, c.TokenParameterName())
	if err != nil {
		return nil, err
	}
	c.api = goopenai.NewClientWithConfig(c.config(key))
	return c.api, nil
}

func (c *Client) config(key string) goopenai.ClientConfig {
	var cfg goopenai.ClientConfig
	if c.azure != nil {
		cfg = goopenai.DefaultAzureConfig(key, c.azure.endpoint)
		if c.azure.apiVersion != "" {
			cfg.APIVersion = c.azure.apiVersion
		}
		cfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		cfg = goopenai.DefaultConfig(key)
		cfg.BaseURL = normalizeBaseURL(c.baseURL)
	}
	cfg.HTTPClient = c.resolvedHTTPClient()
	return cfg
}

// resolvedHTTPClient returns the configured HTTP client, or a default with a
// 30s timeout if none was set.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func normalizeBaseURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		return defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// Complete sends the full ordered history and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("openai: messages must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	req := goopenai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", translateError("/chat/completions", err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai: empty completion")
	}
	return content, nil
}

// Synthesize converts text to mp3 audio.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("openai: speech input must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          c.speechModel,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech request failed: %w", translateError("/audio/speech", err))
	}
	defer func() { _ = raw.Close() }()

	buf, err := io.ReadAll(io.LimitReader(raw, maxSpeechBytes))
	if err != nil {
		return nil, fmt.Errorf("openai: read speech body: %w", err)
	}
	if len(buf) == 0 {
		return nil, errors.New("openai: empty speech response")
	}
	return buf, nil
}

// Transcribe converts WAV audio to text. An empty result is ErrNotUnderstood.
func (c *Client) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", errors.New("openai: audio must not be empty")
	}
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    c.sttModel,
		FilePath: transcribeName,
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcription request failed: %w", translateError("/audio/transcriptions", err))
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNotUnderstood
	}
	return text, nil
}

// translateError maps go-openai's error types onto HTTPStatusError so callers
// can branch on the upstream status without importing the SDK.
func translateError(path string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &HTTPStatusError{StatusCode: apiErr.HTTPStatusCode, URL: path, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &HTTPStatusError{StatusCode: reqErr.HTTPStatusCode, URL: path, Body: body}
	}
	return err
}

// fetchAPIKeyFromParamStore accepts either {"token": "..."} or a bare token.
func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", errors.New("openai: API token is empty")
		}
		return raw, nil
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("openai: API token is empty")
	}
	return tp.Token, nil
}
