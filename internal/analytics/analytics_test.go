package analytics

import (
	"context"
	"errors"
	"testing"
)

func TestDetectSentiment(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"I'm so worried about the placement season", "anxious"},
		{"I feel ready and prepared for the interview", "confident"},
		{"Can you give me a data structure problem to solve?", "technical"},
		{"Tell me about the placement process", "neutral"},
		// Anxious wins over technical when both fire.
		{"I'm nervous about this algorithm question", "anxious"},
	}

	for _, tt := range tests {
		if got := DetectSentiment(tt.message); got != tt.want {
			t.Fatalf("DetectSentiment(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestInMemoryStudentCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	created, err := store.CreateStudent(ctx, Student{
		ID:         "s1",
		Name:       "Asha",
		Department: "CSE",
		CGPA:       8.2,
		Skills:     []string{"go", "python"},
	})
	if err != nil {
		t.Fatalf("CreateStudent() error = %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("CreateStudent() timestamps not set: %+v", created)
	}

	got, err := store.GetStudent(ctx, "s1")
	if err != nil {
		t.Fatalf("GetStudent() error = %v", err)
	}
	if got.Name != "Asha" || got.CGPA != 8.2 {
		t.Fatalf("GetStudent() = %+v", got)
	}

	updated, err := store.UpdateStudent(ctx, "s1", Student{CGPA: 8.5, Year: 4})
	if err != nil {
		t.Fatalf("UpdateStudent() error = %v", err)
	}
	if updated.CGPA != 8.5 || updated.Year != 4 {
		t.Fatalf("UpdateStudent() = %+v", updated)
	}
	if updated.Name != "Asha" || len(updated.Skills) != 2 {
		t.Fatalf("UpdateStudent() clobbered unset fields: %+v", updated)
	}

	if err := store.DeleteStudent(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStudent() error = %v", err)
	}
	if _, err := store.GetStudent(ctx, "s1"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("GetStudent() after delete error = %v, want ErrStudentNotFound", err)
	}
	if err := store.DeleteStudent(ctx, "s1"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("DeleteStudent() twice error = %v, want ErrStudentNotFound", err)
	}
}

func TestInMemoryListStudentsPagination(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	for _, id := range []string{"s3", "s1", "s2"} {
		if _, err := store.CreateStudent(ctx, Student{ID: id, Name: "n", Department: "d"}); err != nil {
			t.Fatalf("CreateStudent(%s) error = %v", id, err)
		}
	}

	page, err := store.ListStudents(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListStudents() error = %v", err)
	}
	if len(page) != 2 || page[0].ID != "s1" || page[1].ID != "s2" {
		t.Fatalf("ListStudents(2, 0) = %+v", page)
	}

	page, err = store.ListStudents(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListStudents() error = %v", err)
	}
	if len(page) != 1 || page[0].ID != "s3" {
		t.Fatalf("ListStudents(2, 2) = %+v", page)
	}

	page, err = store.ListStudents(ctx, 10, 99)
	if err != nil {
		t.Fatalf("ListStudents() error = %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("ListStudents() past end = %+v", page)
	}
}

func TestInMemoryChatHistoryAndStats(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	entries := []ChatLog{
		{StudentID: "s1", SessionID: "a", UserMessage: "u1", BotResponse: "b1", Sentiment: "anxious", Persona: "supportive_mentor"},
		{StudentID: "s1", SessionID: "a", UserMessage: "u2", BotResponse: "b2", Sentiment: "technical", Persona: "strict_recruiter"},
		{StudentID: "s2", SessionID: "b", UserMessage: "u3", BotResponse: "b3", Persona: "strict_recruiter"},
	}
	for _, e := range entries {
		if err := store.LogChat(ctx, e); err != nil {
			t.Fatalf("LogChat() error = %v", err)
		}
	}

	history, err := store.ChatHistory(ctx, ChatFilter{StudentID: "s1"})
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	if len(history) != 2 || history[0].UserMessage != "u2" || history[1].UserMessage != "u1" {
		t.Fatalf("ChatHistory() = %+v, want newest first for s1", history)
	}

	history, err = store.ChatHistory(ctx, ChatFilter{SessionID: "b", Limit: 10})
	if err != nil {
		t.Fatalf("ChatHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].UserMessage != "u3" {
		t.Fatalf("ChatHistory() by session = %+v", history)
	}

	sentiments, err := store.SentimentStats(ctx, "")
	if err != nil {
		t.Fatalf("SentimentStats() error = %v", err)
	}
	if sentiments["anxious"] != 1 || sentiments["technical"] != 1 || sentiments["neutral"] != 1 {
		t.Fatalf("SentimentStats() = %v", sentiments)
	}

	personas, err := store.PersonaUsage(ctx, "s1")
	if err != nil {
		t.Fatalf("PersonaUsage() error = %v", err)
	}
	if personas["supportive_mentor"] != 1 || personas["strict_recruiter"] != 1 {
		t.Fatalf("PersonaUsage() = %v", personas)
	}
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("NewStore(\"\") = %T, want *InMemoryStore", store)
	}
}
