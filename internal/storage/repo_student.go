package storage

import (
	"context"
	"fmt"
)

type studentRepository struct {
	s *Session
}

func (r *studentRepository) Create(ctx context.Context, student *Student) error {
	if student == nil {
		return fmt.Errorf("create student: student is nil")
	}

	id, err := insertReturningID(ctx, r.s, "create student", `
		INSERT INTO students(full_name, group_id) VALUES(?, ?) RETURNING id
	`, student.FullName, student.GroupID)
	if err != nil {
		return err
	}
	student.ID = id
	return nil
}

func (r *studentRepository) Get(ctx context.Context, id int64) (*Student, error) {
	var st Student
	if err := r.s.QueryRowContext(ctx, `
		SELECT id, full_name, group_id FROM students WHERE id = ?
	`, id).Scan(&st.ID, &st.FullName, &st.GroupID); err != nil {
		return nil, notFoundOr("get student", err)
	}
	return &st, nil
}

func (r *studentRepository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.s.QueryContext(ctx, `
		SELECT id, full_name, group_id FROM students ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.FullName, &st.GroupID); err != nil {
			return nil, fmt.Errorf("list students: scan row: %w", err)
		}
		items = append(items, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: iterate: %w", err)
	}
	return items, nil
}

func (r *studentRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.s, "delete student", "students", id)
}

func (r *studentRepository) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.s, "clear students", "students")
}

func (r *studentRepository) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.s, "count students", "students")
}
