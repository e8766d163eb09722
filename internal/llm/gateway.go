package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anandkrs/careercompanion/internal/observability"
	"github.com/anandkrs/careercompanion/internal/reliability"
)

// RetryPolicy bounds the rate-limit retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

const structuredInstruction = "\n\nRespond with valid JSON only. Do not include any text outside the JSON object."

// Gateway fronts a provider client with retry on rate limits, structured
// JSON generation, and error accounting. Streams are never retried; a broken
// stream surfaces to the caller.
type Gateway struct {
	client  Client
	policy  RetryPolicy
	metrics *observability.Metrics
	logger  *log.Logger
}

func NewGateway(client Client, policy RetryPolicy, metrics *observability.Metrics, logger *log.Logger) *Gateway {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gateway{client: client, policy: policy, metrics: metrics, logger: logger}
}

func (g *Gateway) Provider() string { return g.client.Provider() }
func (g *Gateway) Model() string    { return g.client.Model() }

// Generate calls the provider, retrying with exponential backoff while the
// error is a rate limit. Any other error returns immediately.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		text, err := g.client.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			g.countError("generate")
			return "", err
		}
		lastErr = err
		if attempt == g.policy.MaxAttempts {
			break
		}
		g.countRetry()
		backoff := reliability.ExponentialBackoff(attempt, g.policy.BaseBackoff, g.policy.MaxBackoff)
		g.logger.Printf("llm: %s rate limited, retrying in %s (attempt %d/%d)",
			g.client.Provider(), backoff, attempt, g.policy.MaxAttempts)
		if err := g.wait(ctx, backoff); err != nil {
			return "", err
		}
	}
	g.countError("rate_limited")
	return "", fmt.Errorf("rate limit retries exhausted after %d attempts: %w", g.policy.MaxAttempts, lastErr)
}

func (g *Gateway) GenerateStream(ctx context.Context, req Request, emit func(string) error) error {
	if err := g.client.GenerateStream(ctx, req, emit); err != nil {
		g.countError("stream")
		return err
	}
	return nil
}

// GenerateStructured asks the provider for a JSON object and parses it. When
// the raw output is not valid JSON the region between the first '{' and the
// last '}' is reparsed before giving up with ErrStructuredParse.
func (g *Gateway) GenerateStructured(ctx context.Context, prompt, systemPrompt string) (map[string]any, error) {
	req := Request{
		SystemPrompt: systemPrompt,
		Messages:     []Message{{Role: RoleUser, Content: prompt + structuredInstruction}},
		Temperature:  0.2,
		MaxTokens:    500,
		TopP:         1,
	}

	raw, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	parsed, err := parseJSONObject(raw)
	if err != nil {
		g.countError("structured_parse")
		return nil, err
	}
	return parsed, nil
}

func parseJSONObject(raw string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrStructuredParse, truncate(raw, 120))
}

func (g *Gateway) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *Gateway) countError(kind string) {
	if g.metrics != nil {
		g.metrics.ProviderErrors.WithLabelValues(g.client.Provider(), kind).Inc()
	}
}

func (g *Gateway) countRetry() {
	if g.metrics != nil {
		g.metrics.ProviderRetries.Inc()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
