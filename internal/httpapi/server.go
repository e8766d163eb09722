// Package httpapi exposes the chat, session, knowledge, student, and
// analytics endpoints over chi, plus a websocket for streamed replies.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/anandkrs/careercompanion/internal/analytics"
	"github.com/anandkrs/careercompanion/internal/chat"
	"github.com/anandkrs/careercompanion/internal/config"
	"github.com/anandkrs/careercompanion/internal/knowledge"
	"github.com/anandkrs/careercompanion/internal/observability"
	"github.com/anandkrs/careercompanion/internal/session"
)

// TurnRunner is the slice of the chat orchestrator the server needs.
type TurnRunner interface {
	RunTurn(ctx context.Context, req chat.TurnRequest) (chat.TurnResult, error)
	RunTurnStream(ctx context.Context, req chat.TurnRequest, emit func(chunk string) error) (chat.TurnResult, error)
}

type Server struct {
	cfg       config.Config
	sessions  *session.Store
	turns     TurnRunner
	index     *knowledge.Index
	analytics analytics.Store
	metrics   *observability.Metrics
	provider  string
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Store, turns TurnRunner, index *knowledge.Index, store analytics.Store, metrics *observability.Metrics, provider string) *Server {
	return &Server{
		cfg:       cfg,
		sessions:  sessions,
		turns:     turns,
		index:     index,
		analytics: store,
		metrics:   metrics,
		provider:  provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/ws", s.handleChatWS)

	r.Get("/api/session/{id}", s.handleGetSession)
	r.Get("/api/session/{id}/history", s.handleSessionHistory)
	r.Delete("/api/session/{id}", s.handleDeleteSession)

	r.Get("/api/knowledge/stats", s.handleKnowledgeStats)
	r.Post("/api/knowledge/search", s.handleKnowledgeSearch)
	r.Post("/api/knowledge/documents", s.handleAddDocument)
	r.Delete("/api/knowledge/documents/{id}", s.handleDeleteDocument)

	r.Post("/api/students", s.handleCreateStudent)
	r.Get("/api/students", s.handleListStudents)
	r.Get("/api/students/{id}", s.handleGetStudent)
	r.Put("/api/students/{id}", s.handleUpdateStudent)
	r.Delete("/api/students/{id}", s.handleDeleteStudent)

	r.Get("/api/analytics/chat-history", s.handleChatHistory)
	r.Get("/api/analytics/sentiment-stats", s.handleSentimentStats)
	r.Get("/api/analytics/persona-usage", s.handlePersonaUsage)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.provider,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"provider":  s.provider,
		"documents": s.index.Stats().Count,
	})
}

type chatRequest struct {
	Message   string           `json:"message"`
	SessionID string           `json:"session_id,omitempty"`
	Profile   *session.Profile `json:"profile,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.turns.RunTurn(r.Context(), chat.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		Profile:   req.Profile,
	})
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	s.syncSessionGauge()
	respondJSON(w, http.StatusOK, result)
}

type wsEvent struct {
	Type    string           `json:"type"`
	Content string           `json:"content,omitempty"`
	Result  *chat.TurnResult `json:"result,omitempty"`
	Code    string           `json:"code,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

// handleChatWS serves streamed turns over a websocket. Each inbound JSON
// message is one turn; chunks go out as they arrive, followed by a turn_end
// event carrying the full result.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
		defer s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}

	conn.SetReadLimit(1 << 20)
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.SessionID == "" {
			req.SessionID = sessionID
		}

		result, err := s.turns.RunTurnStream(r.Context(), chat.TurnRequest{
			SessionID: req.SessionID,
			Message:   req.Message,
			Profile:   req.Profile,
		}, func(chunk string) error {
			return conn.WriteJSON(wsEvent{Type: "chunk", Content: chunk})
		})
		if err != nil {
			code := "chat_failed"
			if errors.Is(err, chat.ErrEmptyMessage) || errors.Is(err, chat.ErrMessageTooLong) {
				code = "invalid_request"
			}
			if writeErr := conn.WriteJSON(wsEvent{Type: "error", Code: code, Detail: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		// Later turns on this connection stick to the same session.
		sessionID = result.SessionID
		s.syncSessionGauge()
		if err := conn.WriteJSON(wsEvent{Type: "turn_end", Result: &result}); err != nil {
			return
		}
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":       sess.ID,
		"profile":          sess.Profile,
		"message_count":    len(sess.Messages),
		"created_at":       sess.CreatedAt,
		"last_activity_at": sess.LastActivityAt,
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}

	id := chi.URLParam(r, "id")
	messages, err := s.sessions.History(id, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   messages,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("deleted").Inc()
	}
	s.syncSessionGauge()
	respondJSON(w, http.StatusOK, map[string]any{"message": "session deleted"})
}

func (s *Server) handleKnowledgeStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.index.Stats())
}

type knowledgeSearchRequest struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
	Domain string `json:"domain,omitempty"`
}

func (s *Server) handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	var req knowledgeSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	var filter map[string]string
	if req.Domain != "" {
		filter = map[string]string{"domain": req.Domain}
	}
	results := s.index.Search(req.Query, req.TopK, filter)
	respondJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"results": results,
	})
}

type addDocumentRequest struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Source) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content and source are required")
		return
	}

	id := s.index.Add(req.Content, req.Source, req.Metadata, "")
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.index.Delete(chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, "document_not_found", "document not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "document deleted"})
}

type studentRequest struct {
	StudentID       string   `json:"student_id"`
	Name            string   `json:"name"`
	Department      string   `json:"department"`
	CGPA            float64  `json:"cgpa,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	ArrearsCount    int      `json:"arrears_count,omitempty"`
	Year            int      `json:"year,omitempty"`
	TargetCompanies []string `json:"target_companies,omitempty"`
}

func (r studentRequest) student() analytics.Student {
	return analytics.Student{
		ID:              r.StudentID,
		Name:            r.Name,
		Department:      r.Department,
		CGPA:            r.CGPA,
		Skills:          r.Skills,
		ArrearsCount:    r.ArrearsCount,
		Year:            r.Year,
		TargetCompanies: r.TargetCompanies,
	}
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.StudentID) == "" || strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Department) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "student_id, name, and department are required")
		return
	}

	student, err := s.analytics.CreateStudent(r.Context(), req.student())
	if err != nil {
		respondError(w, http.StatusBadRequest, "create_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, student)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := s.analytics.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStudentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, student)
}

func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req studentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	student, err := s.analytics.UpdateStudent(r.Context(), chi.URLParam(r, "id"), req.student())
	if err != nil {
		s.respondStudentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, student)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.analytics.DeleteStudent(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStudentError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "student deleted"})
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	students, err := s.analytics.ListStudents(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(students),
		"students": students,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	filter := analytics.ChatFilter{
		StudentID: strings.TrimSpace(r.URL.Query().Get("student_id")),
		SessionID: strings.TrimSpace(r.URL.Query().Get("session_id")),
		Limit:     queryInt(r, "limit", 50),
	}

	logs, err := s.analytics.ChatHistory(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(logs),
		"chats": logs,
	})
}

func (s *Server) handleSentimentStats(w http.ResponseWriter, r *http.Request) {
	studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
	stats, err := s.analytics.SentimentStats(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"student_id":      studentID,
		"sentiment_stats": stats,
	})
}

func (s *Server) handlePersonaUsage(w http.ResponseWriter, r *http.Request) {
	studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
	stats, err := s.analytics.PersonaUsage(r.Context(), studentID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"student_id":    studentID,
		"persona_usage": stats,
	})
}

func (s *Server) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "chat_failed", err.Error())
	}
}

func (s *Server) respondStudentError(w http.ResponseWriter, err error) {
	if errors.Is(err, analytics.ErrStudentNotFound) {
		respondError(w, http.StatusNotFound, "student_not_found", err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, "student_store_failed", err.Error())
}

func (s *Server) syncSessionGauge() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.sessions.Count()))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
