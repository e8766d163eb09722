package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

type fakeClient struct {
	responses []string
	errs      []error
	calls     int
	lastReq   Request
}

func (f *fakeClient) Generate(ctx context.Context, req Request) (string, error) {
	f.lastReq = req
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return "", errors.New("no scripted response")
}

func (f *fakeClient) GenerateStream(ctx context.Context, req Request, emit func(string) error) error {
	text, err := f.Generate(ctx, req)
	if err != nil {
		return err
	}
	for _, chunk := range strings.SplitAfter(text, " ") {
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClient) Provider() string { return "fake" }
func (f *fakeClient) Model() string    { return "fake-model" }

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func rateLimitErr() error {
	return fmt.Errorf("fake: %w: too many requests", ErrRateLimited)
}

func TestGenerateRetriesRateLimits(t *testing.T) {
	client := &fakeClient{
		errs:      []error{rateLimitErr(), rateLimitErr(), nil},
		responses: []string{"", "", "finally"},
	}
	g := NewGateway(client, testPolicy(), nil, testLogger())

	got, err := g.Generate(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "finally" {
		t.Fatalf("Generate() = %q, want %q", got, "finally")
	}
	if client.calls != 3 {
		t.Fatalf("provider calls = %d, want 3", client.calls)
	}
}

func TestGenerateExhaustsRetries(t *testing.T) {
	client := &fakeClient{
		errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr(), rateLimitErr()},
	}
	g := NewGateway(client, testPolicy(), nil, testLogger())

	_, err := g.Generate(context.Background(), userRequest("hi"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Generate() error = %v, want ErrRateLimited", err)
	}
	if client.calls != 3 {
		t.Fatalf("provider calls = %d, want exactly MaxAttempts", client.calls)
	}
}

func TestGenerateDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("invalid request")
	client := &fakeClient{errs: []error{boom}}
	g := NewGateway(client, testPolicy(), nil, testLogger())

	_, err := g.Generate(context.Background(), userRequest("hi"))
	if !errors.Is(err, boom) {
		t.Fatalf("Generate() error = %v, want %v", err, boom)
	}
	if client.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", client.calls)
	}
}

func TestGenerateStopsOnContextCancel(t *testing.T) {
	client := &fakeClient{errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr()}}
	policy := RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Hour, MaxBackoff: time.Hour}
	g := NewGateway(client, policy, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, userRequest("hi"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if client.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", client.calls)
	}
}

func TestGenerateStructured(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantDomain string
		wantErr    bool
	}{
		{
			name:       "clean json",
			raw:        `{"domain": "vlsi", "confidence": 0.9}`,
			wantDomain: "vlsi",
		},
		{
			name:       "json wrapped in prose",
			raw:        "Sure, here is the classification:\n```json\n{\"domain\": \"ai_ml\"}\n```\nHope this helps!",
			wantDomain: "ai_ml",
		},
		{
			name:    "no json at all",
			raw:     "I cannot classify this query.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{responses: []string{tt.raw}}
			g := NewGateway(client, testPolicy(), nil, testLogger())

			got, err := g.GenerateStructured(context.Background(), "classify this", "system")
			if tt.wantErr {
				if !errors.Is(err, ErrStructuredParse) {
					t.Fatalf("GenerateStructured() error = %v, want ErrStructuredParse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateStructured() error = %v", err)
			}
			if got["domain"] != tt.wantDomain {
				t.Fatalf("GenerateStructured() domain = %v, want %q", got["domain"], tt.wantDomain)
			}
		})
	}
}

func TestGenerateStructuredAppendsInstruction(t *testing.T) {
	client := &fakeClient{responses: []string{`{}`}}
	g := NewGateway(client, testPolicy(), nil, testLogger())

	if _, err := g.GenerateStructured(context.Background(), "classify this", "system"); err != nil {
		t.Fatalf("GenerateStructured() error = %v", err)
	}
	if client.lastReq.SystemPrompt != "system" {
		t.Fatalf("system prompt = %q, want %q", client.lastReq.SystemPrompt, "system")
	}
	content := client.lastReq.Messages[0].Content
	if !strings.HasPrefix(content, "classify this") || !strings.Contains(content, "valid JSON only") {
		t.Fatalf("prompt = %q, want original prompt plus JSON instruction", content)
	}
}

func TestGenerateStreamEmitsChunksInOrder(t *testing.T) {
	client := &fakeClient{responses: []string{"hello brave new world"}}
	g := NewGateway(client, testPolicy(), nil, testLogger())

	var chunks []string
	err := g.GenerateStream(context.Background(), userRequest("hi"), func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if got := strings.Join(chunks, ""); got != "hello brave new world" {
		t.Fatalf("streamed text = %q, want %q", got, "hello brave new world")
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want multiple", len(chunks))
	}
}

func TestLastUserMessageValidation(t *testing.T) {
	if _, err := lastUserMessage(Request{}); err == nil {
		t.Fatalf("lastUserMessage() with no messages: want error")
	}
	req := Request{Messages: []Message{{Role: RoleAssistant, Content: "hi"}}}
	if _, err := lastUserMessage(req); err == nil {
		t.Fatalf("lastUserMessage() ending on assistant: want error")
	}
}

func userRequest(text string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Content: text}}}
}
