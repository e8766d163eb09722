// Package llm wraps the supported text-generation providers behind a single
// client interface and a retrying gateway.
package llm

import (
	"context"
	"errors"

	"github.com/anandkrs/careercompanion/internal/config"
)

// Provider names as reported by Client.Provider and metric labels.
const (
	ProviderAzure     = "azure_openai"
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Message roles on the provider wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrRateLimited marks provider errors caused by rate limiting or
	// quota exhaustion. Only these are retried.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrStructuredParse marks a successful generation whose output could
	// not be parsed as a JSON object.
	ErrStructuredParse = errors.New("structured response is not valid JSON")

	// ErrNoProvider is returned when no provider credentials are configured.
	ErrNoProvider = errors.New("no text-generation provider configured")
)

// Message is one turn of provider-bound conversation.
type Message struct {
	Role    string
	Content string
}

// Request carries everything a provider needs for one completion. The last
// message must be from the user.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Temperature  float32
	MaxTokens    int
	TopP         float32
}

// Client is one concrete provider binding.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	// GenerateStream calls emit once per text chunk, in order. A non-nil
	// error from emit aborts the stream.
	GenerateStream(ctx context.Context, req Request, emit func(chunk string) error) error
	Provider() string
	Model() string
}

// New selects the highest-priority provider with usable credentials:
// Azure OpenAI, then Google, then OpenAI, then Anthropic.
func New(ctx context.Context, cfg config.Config) (Client, error) {
	switch {
	case cfg.AzureOpenAIKey != "" && cfg.AzureOpenAIEndpoint != "" && cfg.AzureOpenAIDeployment != "":
		return NewAzure(cfg.AzureOpenAIKey, cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIDeployment), nil
	case cfg.GoogleAPIKey != "":
		return NewGoogle(ctx, cfg.GoogleAPIKey, cfg.GoogleModel)
	case cfg.OpenAIAPIKey != "":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case cfg.AnthropicAPIKey != "":
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	}
	return nil, ErrNoProvider
}

func lastUserMessage(req Request) (Message, error) {
	if len(req.Messages) == 0 {
		return Message{}, errors.New("llm: request has no messages")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != RoleUser {
		return Message{}, errors.New("llm: last message must be from the user")
	}
	return last, nil
}
