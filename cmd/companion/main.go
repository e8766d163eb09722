package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anandkrs/careercompanion/internal/analytics"
	"github.com/anandkrs/careercompanion/internal/chat"
	"github.com/anandkrs/careercompanion/internal/config"
	"github.com/anandkrs/careercompanion/internal/httpapi"
	"github.com/anandkrs/careercompanion/internal/intent"
	"github.com/anandkrs/careercompanion/internal/knowledge"
	"github.com/anandkrs/careercompanion/internal/llm"
	"github.com/anandkrs/careercompanion/internal/observability"
	"github.com/anandkrs/careercompanion/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	client, err := llm.New(ctx, cfg)
	if err != nil {
		log.Fatalf("provider init failed: %v", err)
	}
	log.Printf("text provider: %s (%s)", client.Provider(), client.Model())

	gateway := llm.NewGateway(client, llm.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseBackoff: cfg.RetryBaseBackoff,
		MaxBackoff:  cfg.RetryMaxBackoff,
	}, metrics, log.Default())

	store, err := analytics.NewStore(ctx, cfg.DatabaseURL, log.Default())
	if err != nil {
		log.Fatalf("analytics store init failed: %v", err)
	}
	defer store.Close()

	index := knowledge.NewIndex()
	index.AddBatch(knowledge.SeedDocuments())
	log.Printf("knowledge base seeded with %d documents", index.Stats().Count)

	sessions := session.NewStore(cfg.SessionTTL)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.Count()))
	})

	classifier := intent.NewClassifier(gateway, cfg.EscalationThreshold, log.Default())
	classifier.SetMetrics(metrics)

	orchestrator := chat.NewOrchestrator(sessions, classifier, index, gateway, store, metrics, log.Default(), chat.Options{
		HistoryWindow:  cfg.HistoryWindow,
		RetrievalTopK:  cfg.RetrievalTopK,
		MaxMessageLen:  cfg.MaxMessageLen,
		EscalateIntent: cfg.EscalationEnabled,
		Temperature:    cfg.Temperature,
		MaxTokens:      cfg.MaxTokens,
		TopP:           cfg.TopP,
	})

	api := httpapi.New(cfg, sessions, orchestrator, index, store, metrics, client.Provider())
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, cfg.SessionSweepInterval)
	orchestrator.Start(runCtx)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
