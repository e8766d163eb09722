package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the career companion service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	HistoryWindow int
	RetrievalTopK int
	MaxMessageLen int

	// Escalation re-classifies low-confidence turns through the provider.
	EscalationEnabled   bool
	EscalationThreshold float64

	// Provider retry policy for rate-limit errors.
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration
	RetryMaxBackoff  time.Duration

	Temperature float32
	MaxTokens   int
	TopP        float32

	AzureOpenAIKey        string
	AzureOpenAIEndpoint   string
	AzureOpenAIDeployment string
	GoogleAPIKey          string
	GoogleModel           string
	OpenAIAPIKey          string
	OpenAIModel           string
	AnthropicAPIKey       string
	AnthropicModel        string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "companion"),
		ShutdownTimeout:       15 * time.Second,
		SessionTTL:            60 * time.Minute,
		SessionSweepInterval:  5 * time.Minute,
		HistoryWindow:         10,
		RetrievalTopK:         3,
		MaxMessageLen:         8192,
		EscalationThreshold:   0.7,
		RetryMaxAttempts:      5,
		RetryBaseBackoff:      2 * time.Second,
		RetryMaxBackoff:       20 * time.Second,
		Temperature:           0.7,
		MaxTokens:             1500,
		TopP:                  0.9,
		AzureOpenAIKey:        trimmedEnv("AZURE_OPENAI_API_KEY"),
		AzureOpenAIEndpoint:   trimmedEnv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIDeployment: trimmedEnv("AZURE_OPENAI_DEPLOYMENT"),
		GoogleAPIKey:          trimmedEnv("GOOGLE_API_KEY"),
		GoogleModel:           envOrDefault("GOOGLE_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey:          trimmedEnv("OPENAI_API_KEY"),
		OpenAIModel:           envOrDefault("OPENAI_MODEL", "gpt-4-turbo-preview"),
		AnthropicAPIKey:       trimmedEnv("ANTHROPIC_API_KEY"),
		AnthropicModel:        envOrDefault("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		DatabaseURL:           trimmedEnv("DATABASE_URL"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionSweepInterval, err = durationFromEnv("SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("CHAT_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMessageLen, err = intFromEnv("CHAT_MAX_MESSAGE_LEN", cfg.MaxMessageLen)
	if err != nil {
		return Config{}, err
	}
	cfg.EscalationThreshold, err = floatFromEnv("INTENT_ESCALATION_THRESHOLD", cfg.EscalationThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.EscalationEnabled, err = boolFromEnv("INTENT_ESCALATION_ENABLED", cfg.EscalationEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryMaxAttempts, err = intFromEnv("PROVIDER_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBaseBackoff, err = durationFromEnv("PROVIDER_RETRY_BASE_BACKOFF", cfg.RetryBaseBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryMaxBackoff, err = durationFromEnv("PROVIDER_RETRY_MAX_BACKOFF", cfg.RetryMaxBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionTTL < 5*time.Second {
		return Config{}, fmt.Errorf("SESSION_TTL must be at least 5s")
	}
	if cfg.SessionSweepInterval <= 0 {
		return Config{}, fmt.Errorf("SESSION_SWEEP_INTERVAL must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_WINDOW must be positive")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if cfg.MaxMessageLen <= 0 {
		return Config{}, fmt.Errorf("CHAT_MAX_MESSAGE_LEN must be positive")
	}
	if cfg.EscalationThreshold < 0 || cfg.EscalationThreshold > 1 {
		return Config{}, fmt.Errorf("INTENT_ESCALATION_THRESHOLD must be in [0,1]")
	}
	if cfg.RetryMaxAttempts < 1 {
		return Config{}, fmt.Errorf("PROVIDER_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.RetryBaseBackoff <= 0 || cfg.RetryMaxBackoff < cfg.RetryBaseBackoff {
		return Config{}, fmt.Errorf("provider retry backoff bounds are invalid")
	}
	if cfg.MaxTokens <= 0 {
		return Config{}, fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s parse error: %w", key, err)
	}
	return b, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}
