package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Vovarama1992/ebeef-copilot/internal/metrics"
)

type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type OpenAIOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string // tests only
}

// NewOpenAIClient returns a client; with an empty API key it reports
// Available() == false and never calls out.
func NewOpenAIClient(opts OpenAIOptions, logger *slog.Logger, m *metrics.Metrics) *OpenAIClient {
	c := &OpenAIClient{
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  logger.With("module", "ai"),
		metrics: m,
	}
	if c.model == "" {
		c.model = openai.GPT4oMini
	}
	if c.timeout <= 0 {
		c.timeout = 15 * time.Second
	}

	if opts.APIKey == "" {
		c.logger.Warn("OPENAI_API_KEY not set, AI features disabled")
		return c
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	c.logger.Info("OpenAI client initialised", "model", c.model)
	return c
}

func (c *OpenAIClient) Available() bool {
	return c != nil && c.client != nil
}

func (c *OpenAIClient) GetReply(ctx context.Context, req Request) (reply string, err error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	defer func() { c.metrics.ObserveAI(req.Purpose, started, err) }()

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.History {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	creq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		c.logger.Error("completion failed", "purpose", req.Purpose, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn("empty choices", "purpose", req.Purpose)
		return "", fmt.Errorf("%w: empty choices", ErrUnavailable)
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return "", fmt.Errorf("%w: empty content", ErrUnavailable)
	}

	c.logger.Debug("completion", "purpose", req.Purpose, "response_length", len(raw))
	return raw, nil
}
