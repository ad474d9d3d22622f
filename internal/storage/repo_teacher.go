package storage

import (
	"context"
	"fmt"
)

type teacherRepository struct {
	s *Session
}

func (r *teacherRepository) Create(ctx context.Context, teacher *Teacher) error {
	if teacher == nil {
		return fmt.Errorf("create teacher: teacher is nil")
	}

	id, err := insertReturningID(ctx, r.s, "create teacher", `
		INSERT INTO teachers(full_name) VALUES(?) RETURNING id
	`, teacher.FullName)
	if err != nil {
		return err
	}
	teacher.ID = id
	return nil
}

func (r *teacherRepository) Get(ctx context.Context, id int64) (*Teacher, error) {
	var t Teacher
	if err := r.s.QueryRowContext(ctx, `
		SELECT id, full_name FROM teachers WHERE id = ?
	`, id).Scan(&t.ID, &t.FullName); err != nil {
		return nil, notFoundOr("get teacher", err)
	}
	return &t, nil
}

func (r *teacherRepository) List(ctx context.Context) ([]Teacher, error) {
	rows, err := r.s.QueryContext(ctx, `SELECT id, full_name FROM teachers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Teacher{}
	for rows.Next() {
		var t Teacher
		if err := rows.Scan(&t.ID, &t.FullName); err != nil {
			return nil, fmt.Errorf("list teachers: scan row: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list teachers: iterate: %w", err)
	}
	return items, nil
}

// Delete removes the teacher and, by cascade, their subjects. It fails with a
// foreign key violation when any of those subjects still has grades.
func (r *teacherRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.s, "delete teacher", "teachers", id)
}

func (r *teacherRepository) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.s, "clear teachers", "teachers")
}

func (r *teacherRepository) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.s, "count teachers", "teachers")
}
