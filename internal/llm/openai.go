package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/anandkrs/careercompanion/internal/reliability"
)

// openAIClient serves both the OpenAI API and Azure OpenAI deployments; the
// two differ only in client configuration and the model identifier.
type openAIClient struct {
	client   *openai.Client
	provider string
	model    string
}

// NewOpenAI builds a client against the public OpenAI API.
func NewOpenAI(apiKey, model string) Client {
	return &openAIClient{
		client:   openai.NewClient(apiKey),
		provider: ProviderOpenAI,
		model:    model,
	}
}

// NewAzure builds a client against an Azure OpenAI deployment. The deployment
// name doubles as the model identifier.
func NewAzure(apiKey, endpoint, deployment string) Client {
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	return &openAIClient{
		client:   openai.NewClientWithConfig(cfg),
		provider: ProviderAzure,
		model:    deployment,
	}
}

func (c *openAIClient) Provider() string { return c.provider }
func (c *openAIClient) Model() string    { return c.model }

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	if _, err := lastUserMessage(req); err != nil {
		return "", err
	}

	rsp, err := c.client.CreateChatCompletion(ctx, c.completionRequest(req))
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(rsp.Choices) == 0 || rsp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: empty completion", c.provider)
	}
	return rsp.Choices[0].Message.Content, nil
}

func (c *openAIClient) GenerateStream(ctx context.Context, req Request, emit func(string) error) error {
	if _, err := lastUserMessage(req); err != nil {
		return err
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, c.completionRequest(req))
	if err != nil {
		return c.wrapError(err)
	}
	defer stream.Close()

	for {
		rsp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.wrapError(err)
		}
		if len(rsp.Choices) == 0 {
			continue
		}
		if chunk := rsp.Choices[0].Delta.Content; chunk != "" {
			if err := emit(chunk); err != nil {
				return err
			}
		}
	}
}

func (c *openAIClient) completionRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}
}

func (c *openAIClient) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && reliability.IsRetryableHTTPStatus(apiErr.HTTPStatusCode) {
		return fmt.Errorf("%s: %w: %v", c.provider, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w", c.provider, err)
}
