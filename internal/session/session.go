package session

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's conversation history. History is
// append-only; messages are never reordered or edited in place.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Profile holds the optional student fields attached to a session.
// Every field is independently settable; zero values are "not provided".
type Profile struct {
	StudentID       string   `json:"student_id,omitempty"`
	Name            string   `json:"name,omitempty"`
	Major           string   `json:"major,omitempty"`
	Year            int      `json:"year,omitempty"`
	TargetCompanies []string `json:"target_companies,omitempty"`
	TargetRoles     []string `json:"target_roles,omitempty"`
}

// Session is the bounded-lifetime conversational context for one student.
type Session struct {
	ID             string    `json:"session_id"`
	Profile        Profile   `json:"profile"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
