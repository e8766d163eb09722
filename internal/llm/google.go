package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/anandkrs/careercompanion/internal/reliability"
)

type googleClient struct {
	client *genai.Client
	model  string
}

// NewGoogle builds a client for the Gemini API.
func NewGoogle(ctx context.Context, apiKey, model string) (Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("google client: %w", err)
	}
	return &googleClient{client: client, model: model}, nil
}

func (c *googleClient) Provider() string { return ProviderGoogle }
func (c *googleClient) Model() string    { return c.model }

func (c *googleClient) Generate(ctx context.Context, req Request) (string, error) {
	chat, last, err := c.chatSession(req)
	if err != nil {
		return "", err
	}

	rsp, err := chat.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", c.wrapError(err)
	}

	text := responseText(rsp)
	if text == "" {
		return "", fmt.Errorf("%s: empty completion", ProviderGoogle)
	}
	return text, nil
}

func (c *googleClient) GenerateStream(ctx context.Context, req Request, emit func(string) error) error {
	chat, last, err := c.chatSession(req)
	if err != nil {
		return err
	}

	iter := chat.SendMessageStream(ctx, genai.Text(last.Content))
	for {
		rsp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return c.wrapError(err)
		}
		if chunk := responseText(rsp); chunk != "" {
			if err := emit(chunk); err != nil {
				return err
			}
		}
	}
}

// chatSession maps prior messages onto the Gemini chat history and returns
// the final user message to send.
func (c *googleClient) chatSession(req Request) (*genai.ChatSession, Message, error) {
	last, err := lastUserMessage(req)
	if err != nil {
		return nil, Message{}, err
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(req.Temperature)
	model.SetTopP(req.TopP)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	chat := model.StartChat()
	for _, m := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return chat, last, nil
}

func responseText(rsp *genai.GenerateContentResponse) string {
	if rsp == nil || len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

func (c *googleClient) wrapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && reliability.IsRetryableHTTPStatus(apiErr.Code) {
		return fmt.Errorf("%s: %w: %v", ProviderGoogle, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w", ProviderGoogle, err)
}
