package storage

import (
	"context"
	"fmt"
)

type subjectRepository struct {
	s *Session
}

func (r *subjectRepository) Create(ctx context.Context, subject *Subject) error {
	if subject == nil {
		return fmt.Errorf("create subject: subject is nil")
	}

	id, err := insertReturningID(ctx, r.s, "create subject", `
		INSERT INTO subjects(name, teacher_id) VALUES(?, ?) RETURNING id
	`, subject.Name, subject.TeacherID)
	if err != nil {
		return err
	}
	subject.ID = id
	return nil
}

func (r *subjectRepository) Get(ctx context.Context, id int64) (*Subject, error) {
	var sub Subject
	if err := r.s.QueryRowContext(ctx, `
		SELECT id, name, teacher_id FROM subjects WHERE id = ?
	`, id).Scan(&sub.ID, &sub.Name, &sub.TeacherID); err != nil {
		return nil, notFoundOr("get subject", err)
	}
	return &sub, nil
}

func (r *subjectRepository) List(ctx context.Context) ([]Subject, error) {
	rows, err := r.s.QueryContext(ctx, `
		SELECT id, name, teacher_id FROM subjects ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Subject{}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.TeacherID); err != nil {
			return nil, fmt.Errorf("list subjects: scan row: %w", err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subjects: iterate: %w", err)
	}
	return items, nil
}

// Delete is blocked while grades reference the subject.
func (r *subjectRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.s, "delete subject", "subjects", id)
}

func (r *subjectRepository) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.s, "clear subjects", "subjects")
}

func (r *subjectRepository) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.s, "count subjects", "subjects")
}
