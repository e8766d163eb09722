package analytics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore keeps profiles and chat logs in process memory. Suitable for
// development and tests; nothing survives a restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	students map[string]*Student
	logs     []ChatLog
	nextID   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{students: make(map[string]*Student)}
}

func (s *InMemoryStore) CreateStudent(ctx context.Context, student Student) (Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	copied := student
	s.students[student.ID] = &copied
	return student, nil
}

func (s *InMemoryStore) GetStudent(ctx context.Context, id string) (Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	student, ok := s.students[id]
	if !ok {
		return Student{}, ErrStudentNotFound
	}
	return *student, nil
}

func (s *InMemoryStore) UpdateStudent(ctx context.Context, id string, update Student) (Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student, ok := s.students[id]
	if !ok {
		return Student{}, ErrStudentNotFound
	}
	mergeStudent(student, update)
	return *student, nil
}

func (s *InMemoryStore) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[id]; !ok {
		return ErrStudentNotFound
	}
	delete(s.students, id)
	return nil
}

func (s *InMemoryStore) ListStudents(ctx context.Context, limit, offset int) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Student, 0, len(s.students))
	for _, student := range s.students {
		all = append(all, *student)
	}
	sortStudentsByID(all)

	if offset >= len(all) {
		return []Student{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemoryStore) LogChat(ctx context.Context, entry ChatLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	entry.ID = s.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.logs = append(s.logs, entry)
	return nil
}

func (s *InMemoryStore) ChatHistory(ctx context.Context, filter ChatFilter) ([]ChatLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	// Logs are appended in order, so walk backwards for newest first.
	out := make([]ChatLog, 0, limit)
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.logs[i]
		if filter.StudentID != "" && entry.StudentID != filter.StudentID {
			continue
		}
		if filter.SessionID != "" && entry.SessionID != filter.SessionID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *InMemoryStore) SentimentStats(ctx context.Context, studentID string) (map[string]int, error) {
	return s.countBy(studentID, func(entry ChatLog) string {
		if entry.Sentiment == "" {
			return "neutral"
		}
		return entry.Sentiment
	}), nil
}

func (s *InMemoryStore) PersonaUsage(ctx context.Context, studentID string) (map[string]int, error) {
	return s.countBy(studentID, func(entry ChatLog) string {
		if entry.Persona == "" {
			return "unknown"
		}
		return entry.Persona
	}), nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) countBy(studentID string, key func(ChatLog) string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, entry := range s.logs {
		if studentID != "" && entry.StudentID != studentID {
			continue
		}
		stats[key(entry)]++
	}
	return stats
}

func sortStudentsByID(students []Student) {
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
}
