package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/anandkrs/careercompanion/internal/reliability"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds a client for the Anthropic Messages API.
func NewAnthropic(apiKey, model string) Client {
	return &anthropicClient{
		client: anthropic.NewClient(anthropicopt.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *anthropicClient) Provider() string { return ProviderAnthropic }
func (c *anthropicClient) Model() string    { return c.model }

func (c *anthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	if _, err := lastUserMessage(req); err != nil {
		return "", err
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		TopP:        anthropic.Float(float64(req.TopP)),
		Messages:    anthropicMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	rsp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.wrapError(err)
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%s: empty completion", ProviderAnthropic)
	}
	return b.String(), nil
}

// GenerateStream delivers the full completion as a single chunk.
func (c *anthropicClient) GenerateStream(ctx context.Context, req Request, emit func(string) error) error {
	text, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	return emit(text)
}

func anthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (c *anthropicClient) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && reliability.IsRetryableHTTPStatus(apiErr.StatusCode) {
		return fmt.Errorf("%s: %w: %v", ProviderAnthropic, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w", ProviderAnthropic, err)
}
