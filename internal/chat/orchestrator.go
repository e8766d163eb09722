// Package chat drives a full conversational turn: session bookkeeping,
// intent routing, knowledge retrieval, prompt assembly, generation, and
// deferred analytics.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/anandkrs/careercompanion/internal/analytics"
	"github.com/anandkrs/careercompanion/internal/intent"
	"github.com/anandkrs/careercompanion/internal/knowledge"
	"github.com/anandkrs/careercompanion/internal/llm"
	"github.com/anandkrs/careercompanion/internal/observability"
	"github.com/anandkrs/careercompanion/internal/prompts"
	"github.com/anandkrs/careercompanion/internal/session"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds the maximum length")
)

// Generator is the slice of the llm gateway the orchestrator needs.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
	GenerateStream(ctx context.Context, req llm.Request, emit func(chunk string) error) error
}

// Classifier routes a query to domain, intent, and persona.
type Classifier interface {
	Classify(ctx context.Context, query string, escalate bool) intent.Classification
}

// Searcher is the slice of the knowledge index the orchestrator needs.
type Searcher interface {
	Search(query string, topK int, filter map[string]string) []knowledge.Result
}

// Options bound per-turn behavior.
type Options struct {
	HistoryWindow  int
	RetrievalTopK  int
	MaxMessageLen  int
	EscalateIntent bool
	Temperature    float32
	MaxTokens      int
	TopP           float32
}

// TurnRequest is one inbound user message. SessionID may be empty or stale;
// a fresh session is created in either case.
type TurnRequest struct {
	SessionID string
	Message   string
	Profile   *session.Profile
}

// TurnResult is the reply for one turn.
type TurnResult struct {
	SessionID        string   `json:"session_id"`
	Response         string   `json:"response"`
	Domain           string   `json:"domain"`
	Intent           string   `json:"intent"`
	Persona          string   `json:"persona"`
	Confidence       float64  `json:"confidence"`
	SuggestedActions []string `json:"suggested_actions"`
	Sources          []string `json:"sources,omitempty"`
}

type deferredTask struct {
	name string
	fn   func(ctx context.Context) error
}

// Orchestrator wires the turn pipeline together. Post-turn work (chat
// logging, session sweeps) runs on a single background worker so a slow or
// failing database never delays a reply.
type Orchestrator struct {
	sessions   *session.Store
	classifier Classifier
	index      Searcher
	generator  Generator
	analytics  analytics.Store
	metrics    *observability.Metrics
	logger     *log.Logger
	opts       Options
	tasks      chan deferredTask
}

func NewOrchestrator(
	sessions *session.Store,
	classifier Classifier,
	index Searcher,
	generator Generator,
	store analytics.Store,
	metrics *observability.Metrics,
	logger *log.Logger,
	opts Options,
) *Orchestrator {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.RetrievalTopK <= 0 {
		opts.RetrievalTopK = 3
	}
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = 8192
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		sessions:   sessions,
		classifier: classifier,
		index:      index,
		generator:  generator,
		analytics:  store,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
		tasks:      make(chan deferredTask, 64),
	}
}

// Start launches the deferred-task worker. It exits when ctx is done.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-o.tasks:
				o.runDeferred(ctx, task)
			}
		}
	}()
}

// RunTurn executes one turn end to end. The user message is committed to the
// session before generation, so a failed turn leaves it in history.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	return o.runTurn(ctx, req, nil)
}

// RunTurnStream behaves like RunTurn but forwards response chunks through
// emit as they arrive. The returned result carries the assembled response.
func (o *Orchestrator) RunTurnStream(ctx context.Context, req TurnRequest, emit func(chunk string) error) (TurnResult, error) {
	if emit == nil {
		return TurnResult{}, errors.New("chat: emit must not be nil")
	}
	return o.runTurn(ctx, req, emit)
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, emit func(string) error) (TurnResult, error) {
	started := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if len(message) > o.opts.MaxMessageLen {
		return TurnResult{}, ErrMessageTooLong
	}

	sess := o.resolveSession(req)
	if err := o.sessions.AppendMessage(sess.ID, session.RoleUser, message, nil); err != nil {
		return TurnResult{}, fmt.Errorf("append user message: %w", err)
	}

	classification := o.classifier.Classify(ctx, message, o.opts.EscalateIntent)

	var filter map[string]string
	if classification.Domain != intent.DomainGeneral {
		filter = map[string]string{"domain": classification.Domain}
	}
	retrieved := o.index.Search(message, o.opts.RetrievalTopK, filter)

	systemPrompt := prompts.BuildSystemPrompt(classification.Domain, classification.Persona, sess.Profile, retrieved)

	history, err := o.sessions.History(sess.ID, o.opts.HistoryWindow)
	if err != nil {
		return TurnResult{}, fmt.Errorf("load history: %w", err)
	}

	llmReq := llm.Request{
		SystemPrompt: systemPrompt,
		Messages:     toProviderMessages(history),
		Temperature:  o.opts.Temperature,
		MaxTokens:    o.opts.MaxTokens,
		TopP:         o.opts.TopP,
	}

	response, err := o.generate(ctx, llmReq, emit)
	if err != nil {
		o.countTurn("error", classification.Domain)
		return TurnResult{}, fmt.Errorf("generate response: %w", err)
	}

	metadata := map[string]string{
		"domain":     classification.Domain,
		"confidence": strconv.FormatFloat(classification.Confidence, 'f', 2, 64),
		"intent":     classification.Intent,
	}
	if err := o.sessions.AppendMessage(sess.ID, session.RoleAssistant, response, metadata); err != nil {
		// The session expired mid-turn; the reply is still worth returning.
		o.logger.Printf("chat: append assistant message: %v", err)
	}

	o.deferPostTurn(sess, message, response, classification)

	o.countTurn("success", classification.Domain)
	if o.metrics != nil {
		o.metrics.ObserveTurnLatency(time.Since(started))
	}

	return TurnResult{
		SessionID:        sess.ID,
		Response:         response,
		Domain:           classification.Domain,
		Intent:           classification.Intent,
		Persona:          classification.Persona,
		Confidence:       classification.Confidence,
		SuggestedActions: prompts.SuggestedActions(classification.Domain),
		Sources:          sources(retrieved),
	}, nil
}

// resolveSession loads the referenced session, creating a fresh one when the
// id is absent, unknown, or expired. Profile fields merge into either case.
func (o *Orchestrator) resolveSession(req TurnRequest) *session.Session {
	if req.SessionID != "" {
		sess, err := o.sessions.Get(req.SessionID)
		if err == nil {
			if req.Profile != nil {
				if err := o.sessions.UpdateProfile(sess.ID, *req.Profile); err == nil {
					sess, _ = o.sessions.Get(sess.ID)
				}
			}
			return sess
		}
	}
	return o.sessions.Create(req.Profile)
}

func (o *Orchestrator) generate(ctx context.Context, req llm.Request, emit func(string) error) (string, error) {
	if emit == nil {
		return o.generator.Generate(ctx, req)
	}

	var b strings.Builder
	err := o.generator.GenerateStream(ctx, req, func(chunk string) error {
		b.WriteString(chunk)
		return emit(chunk)
	})
	if err != nil {
		return "", err
	}
	if b.Len() == 0 {
		return "", errors.New("stream produced no content")
	}
	return b.String(), nil
}

// deferPostTurn queues the chat log write and a session sweep. When the queue
// is saturated the work is dropped and counted rather than blocking the turn.
func (o *Orchestrator) deferPostTurn(sess *session.Session, message, response string, classification intent.Classification) {
	entry := analytics.ChatLog{
		StudentID:   sess.Profile.StudentID,
		SessionID:   sess.ID,
		UserMessage: message,
		BotResponse: response,
		Sentiment:   analytics.DetectSentiment(message),
		Persona:     classification.Persona,
		Domain:      classification.Domain,
		Intent:      classification.Intent,
	}

	o.enqueue(deferredTask{name: "log_chat", fn: func(ctx context.Context) error {
		return o.analytics.LogChat(ctx, entry)
	}})
	o.enqueue(deferredTask{name: "sweep_sessions", fn: func(ctx context.Context) error {
		o.sessions.SweepExpired()
		return nil
	}})
}

func (o *Orchestrator) enqueue(task deferredTask) {
	select {
	case o.tasks <- task:
	default:
		o.logger.Printf("chat: deferred task queue full, dropping %s", task.name)
		o.countDeferredFailure(task.name)
	}
}

func (o *Orchestrator) runDeferred(ctx context.Context, task deferredTask) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("chat: deferred task %s panicked: %v", task.name, r)
			o.countDeferredFailure(task.name)
		}
	}()

	taskCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := task.fn(taskCtx); err != nil {
		o.logger.Printf("chat: deferred task %s failed: %v", task.name, err)
		o.countDeferredFailure(task.name)
	}
}

func (o *Orchestrator) countTurn(outcome, domain string) {
	if o.metrics != nil {
		o.metrics.Turns.WithLabelValues(outcome, domain).Inc()
	}
}

func (o *Orchestrator) countDeferredFailure(task string) {
	if o.metrics != nil {
		o.metrics.DeferredFailures.WithLabelValues(task).Inc()
	}
}

func toProviderMessages(history []session.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case session.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return out
}

func sources(results []knowledge.Result) []string {
	if len(results) == 0 {
		return nil
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Source)
	}
	return out
}
