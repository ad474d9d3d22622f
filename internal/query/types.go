package query

import (
	"context"
	"database/sql"
)

// Querier runs read statements with ? placeholders. *storage.Session
// satisfies it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type StudentAverage struct {
	StudentID int64   `json:"student_id"`
	FullName  string  `json:"full_name"`
	AvgGrade  float64 `json:"avg_grade"`
}

type GroupAverage struct {
	GroupID  int64   `json:"group_id"`
	Name     string  `json:"name"`
	AvgGrade float64 `json:"avg_grade"`
}

type SubjectRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StudentRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type StudentGrade struct {
	StudentID int64  `json:"student_id"`
	FullName  string `json:"full_name"`
	Value     int    `json:"value"`
}
