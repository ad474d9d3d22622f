package storage

import (
	"context"
	"fmt"

	"github.com/amanthanvi/gradebook/internal/sqlerr"
)

type gradeRepository struct {
	s *Session
}

func (r *gradeRepository) Create(ctx context.Context, grade *Grade) error {
	if grade == nil {
		return fmt.Errorf("create grade: grade is nil")
	}

	var row interface{ Scan(dest ...any) error }
	if grade.ReceivedAt.IsZero() {
		row = r.s.QueryRowContext(ctx, `
			INSERT INTO grades(student_id, subject_id, value)
			VALUES(?, ?, ?)
			RETURNING id, received_at
		`, grade.StudentID, grade.SubjectID, grade.Value)
	} else {
		row = r.s.QueryRowContext(ctx, `
			INSERT INTO grades(student_id, subject_id, value, received_at)
			VALUES(?, ?, ?, ?)
			RETURNING id, received_at
		`, grade.StudentID, grade.SubjectID, grade.Value, r.s.dialect.timeArg(grade.ReceivedAt))
	}

	if err := row.Scan(&grade.ID, timeScanner{dst: &grade.ReceivedAt}); err != nil {
		return fmt.Errorf("create grade: %w", sqlerr.Wrap(err))
	}
	return nil
}

func (r *gradeRepository) Get(ctx context.Context, id int64) (*Grade, error) {
	var g Grade
	if err := r.s.QueryRowContext(ctx, `
		SELECT id, student_id, subject_id, value, received_at
		FROM grades
		WHERE id = ?
	`, id).Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.Value, timeScanner{dst: &g.ReceivedAt}); err != nil {
		return nil, notFoundOr("get grade", err)
	}
	return &g, nil
}

func (r *gradeRepository) ListByStudent(ctx context.Context, studentID int64) ([]Grade, error) {
	rows, err := r.s.QueryContext(ctx, `
		SELECT id, student_id, subject_id, value, received_at
		FROM grades
		WHERE student_id = ?
		ORDER BY received_at ASC, id ASC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Grade{}
	for rows.Next() {
		var g Grade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.Value, timeScanner{dst: &g.ReceivedAt}); err != nil {
			return nil, fmt.Errorf("list grades: scan row: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list grades: iterate: %w", err)
	}
	return items, nil
}

func (r *gradeRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.s, "delete grade", "grades", id)
}

func (r *gradeRepository) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.s, "clear grades", "grades")
}

func (r *gradeRepository) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.s, "count grades", "grades")
}
