package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-20241022"

// AnthropicClient polishes replies with Anthropic models.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic client. Suggestions are latency
// bound, so a failed call is retried at most once.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  firstNonEmpty(cfg.Model, defaultAnthropicModel),
	}, nil
}

func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// anthropicMessages converts req to message params. The instructions ride
// on the first user turn.
func anthropicMessages(req *CompletionRequest) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(req.Messages))
	for i, msg := range req.Messages {
		text := msg.Content
		if i == 0 && req.System != "" {
			text = req.System + "\n\n" + text
		}
		out = append(out, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(text),
				},
			}),
		})
	}
	return out
}

// Complete sends one rewrite request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	model := firstNonEmpty(req.Model, c.model)

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokensOf(req))),
		Messages:  anthropic.F(anthropicMessages(req)),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    text.String(),
		Model:      firstNonEmpty(resp.Model, model),
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
