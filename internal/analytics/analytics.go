// Package analytics persists student profiles and per-turn chat logs, and
// derives usage statistics from them. A Postgres store is used when a
// database URL is configured; otherwise everything stays in memory.
package analytics

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrStudentNotFound is returned for lookups of unknown student IDs.
var ErrStudentNotFound = errors.New("student not found")

// Student is one tracked student profile.
type Student struct {
	ID              string    `json:"student_id"`
	Name            string    `json:"name"`
	Department      string    `json:"department"`
	CGPA            float64   `json:"cgpa,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	ArrearsCount    int       `json:"arrears_count"`
	Year            int       `json:"year,omitempty"`
	TargetCompanies []string  `json:"target_companies,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ChatLog is one recorded turn.
type ChatLog struct {
	ID          int64     `json:"id"`
	StudentID   string    `json:"student_id,omitempty"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Timestamp   time.Time `json:"timestamp"`
	Sentiment   string    `json:"sentiment,omitempty"`
	Persona     string    `json:"persona,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Intent      string    `json:"intent,omitempty"`
}

// ChatFilter narrows history queries. Zero values mean "any".
type ChatFilter struct {
	StudentID string
	SessionID string
	Limit     int
}

// Store is the persistence boundary for profiles and chat logs.
type Store interface {
	CreateStudent(ctx context.Context, student Student) (Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	// UpdateStudent merges non-zero fields of update into the stored profile.
	UpdateStudent(ctx context.Context, id string, update Student) (Student, error)
	DeleteStudent(ctx context.Context, id string) error
	ListStudents(ctx context.Context, limit, offset int) ([]Student, error)

	LogChat(ctx context.Context, entry ChatLog) error
	// ChatHistory returns the most recent matching logs, newest first.
	ChatHistory(ctx context.Context, filter ChatFilter) ([]ChatLog, error)
	SentimentStats(ctx context.Context, studentID string) (map[string]int, error)
	PersonaUsage(ctx context.Context, studentID string) (map[string]int, error)

	Close() error
}

// NewStore picks Postgres when a database URL is configured and falls back
// to the in-memory store otherwise.
func NewStore(ctx context.Context, databaseURL string, logger *log.Logger) (Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	if databaseURL == "" {
		logger.Printf("analytics: no DATABASE_URL set, using in-memory store")
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

func mergeStudent(dst *Student, update Student) {
	if update.Name != "" {
		dst.Name = update.Name
	}
	if update.Department != "" {
		dst.Department = update.Department
	}
	if update.CGPA != 0 {
		dst.CGPA = update.CGPA
	}
	if len(update.Skills) > 0 {
		dst.Skills = append([]string(nil), update.Skills...)
	}
	if update.ArrearsCount != 0 {
		dst.ArrearsCount = update.ArrearsCount
	}
	if update.Year != 0 {
		dst.Year = update.Year
	}
	if len(update.TargetCompanies) > 0 {
		dst.TargetCompanies = append([]string(nil), update.TargetCompanies...)
	}
	dst.UpdatedAt = time.Now().UTC()
}
