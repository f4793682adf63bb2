package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"PaperDigest/internal/ports"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5"

const defaultAnthropicMaxTokens = 1024

// AnthropicConfig defines how to contact the Anthropic messages API.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// AnthropicClient implements ports.Completer backed by the messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       anthropic.Model
	temperature float64
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client with SDK retries disabled; callers own retries.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client:      &client,
		model:       anthropic.Model(model),
		temperature: cfg.Temperature,
	}
}

// Complete sends one prompt and joins the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(c.temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(apiErr.StatusCode, err)
		}
		return "", classifyTransport(fmt.Errorf("anthropic request: %w", err))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
