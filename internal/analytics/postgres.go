package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists profiles and chat logs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS student_profiles (
			student_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			department TEXT NOT NULL,
			current_cgpa DOUBLE PRECISION,
			skills TEXT,
			arrears_count INTEGER NOT NULL DEFAULT 0,
			year INTEGER,
			target_companies TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS chat_logs (
			id BIGSERIAL PRIMARY KEY,
			student_id TEXT,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			bot_response TEXT NOT NULL,
			sentiment TEXT,
			persona TEXT,
			domain TEXT,
			intent TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_logs_student ON chat_logs (student_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_logs_session ON chat_logs (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateStudent(ctx context.Context, student Student) (Student, error) {
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO student_profiles
		 (student_id, name, department, current_cgpa, skills, arrears_count, year, target_companies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		student.ID,
		student.Name,
		student.Department,
		student.CGPA,
		joinList(student.Skills),
		student.ArrearsCount,
		student.Year,
		joinList(student.TargetCompanies),
		student.CreatedAt,
		student.UpdatedAt,
	)
	if err != nil {
		return Student{}, fmt.Errorf("create student: %w", err)
	}
	return student, nil
}

func (s *PostgresStore) GetStudent(ctx context.Context, id string) (Student, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT student_id, name, department, current_cgpa, COALESCE(skills, ''), arrears_count, year, COALESCE(target_companies, ''), created_at, updated_at
		 FROM student_profiles WHERE student_id=$1`, id)
	return scanStudent(row)
}

func (s *PostgresStore) UpdateStudent(ctx context.Context, id string, update Student) (Student, error) {
	student, err := s.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	mergeStudent(&student, update)

	_, err = s.pool.Exec(ctx,
		`UPDATE student_profiles
		 SET name=$2, department=$3, current_cgpa=$4, skills=$5, arrears_count=$6, year=$7, target_companies=$8, updated_at=$9
		 WHERE student_id=$1`,
		id,
		student.Name,
		student.Department,
		student.CGPA,
		joinList(student.Skills),
		student.ArrearsCount,
		student.Year,
		joinList(student.TargetCompanies),
		student.UpdatedAt,
	)
	if err != nil {
		return Student{}, fmt.Errorf("update student: %w", err)
	}
	return student, nil
}

func (s *PostgresStore) DeleteStudent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM student_profiles WHERE student_id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (s *PostgresStore) ListStudents(ctx context.Context, limit, offset int) ([]Student, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT student_id, name, department, current_cgpa, COALESCE(skills, ''), arrears_count, year, COALESCE(target_companies, ''), created_at, updated_at
		 FROM student_profiles ORDER BY student_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	students := make([]Student, 0, limit)
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student rows: %w", err)
	}
	return students, nil
}

func (s *PostgresStore) LogChat(ctx context.Context, entry ChatLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_logs (student_id, session_id, user_message, bot_response, sentiment, persona, domain, intent, created_at)
		 VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.StudentID,
		entry.SessionID,
		entry.UserMessage,
		entry.BotResponse,
		entry.Sentiment,
		entry.Persona,
		entry.Domain,
		entry.Intent,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("log chat: %w", err)
	}
	return nil
}

func (s *PostgresStore) ChatHistory(ctx context.Context, filter ChatFilter) ([]ChatLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(student_id, ''), session_id, user_message, bot_response,
		        COALESCE(sentiment, ''), COALESCE(persona, ''), COALESCE(domain, ''), COALESCE(intent, ''), created_at
		 FROM chat_logs
		 WHERE ($1 = '' OR student_id = $1) AND ($2 = '' OR session_id = $2)
		 ORDER BY created_at DESC LIMIT $3`,
		filter.StudentID, filter.SessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	logs := make([]ChatLog, 0, limit)
	for rows.Next() {
		var entry ChatLog
		if err := rows.Scan(&entry.ID, &entry.StudentID, &entry.SessionID, &entry.UserMessage, &entry.BotResponse,
			&entry.Sentiment, &entry.Persona, &entry.Domain, &entry.Intent, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return logs, nil
}

func (s *PostgresStore) SentimentStats(ctx context.Context, studentID string) (map[string]int, error) {
	return s.groupCount(ctx, `COALESCE(NULLIF(sentiment, ''), 'neutral')`, studentID)
}

func (s *PostgresStore) PersonaUsage(ctx context.Context, studentID string) (map[string]int, error) {
	return s.groupCount(ctx, `COALESCE(NULLIF(persona, ''), 'unknown')`, studentID)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) groupCount(ctx context.Context, keyExpr, studentID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+keyExpr+` AS key, COUNT(*)
		 FROM chat_logs WHERE ($1 = '' OR student_id = $1) GROUP BY key`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (Student, error) {
	var student Student
	var cgpa *float64
	var year *int
	var skills, companies string
	err := row.Scan(&student.ID, &student.Name, &student.Department, &cgpa, &skills,
		&student.ArrearsCount, &year, &companies, &student.CreatedAt, &student.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Student{}, ErrStudentNotFound
	}
	if err != nil {
		return Student{}, fmt.Errorf("scan student row: %w", err)
	}
	if cgpa != nil {
		student.CGPA = *cgpa
	}
	if year != nil {
		student.Year = *year
	}
	student.Skills = splitList(skills)
	student.TargetCompanies = splitList(companies)
	return student, nil
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
