package storage

import (
	"context"
	"fmt"
)

type groupRepository struct {
	s *Session
}

func (r *groupRepository) Create(ctx context.Context, group *Group) error {
	if group == nil {
		return fmt.Errorf("create group: group is nil")
	}

	id, err := insertReturningID(ctx, r.s, "create group", `
		INSERT INTO "groups"(name) VALUES(?) RETURNING id
	`, group.Name)
	if err != nil {
		return err
	}
	group.ID = id
	return nil
}

func (r *groupRepository) Get(ctx context.Context, id int64) (*Group, error) {
	var g Group
	if err := r.s.QueryRowContext(ctx, `
		SELECT id, name FROM "groups" WHERE id = ?
	`, id).Scan(&g.ID, &g.Name); err != nil {
		return nil, notFoundOr("get group", err)
	}
	return &g, nil
}

func (r *groupRepository) List(ctx context.Context) ([]Group, error) {
	rows, err := r.s.QueryContext(ctx, `SELECT id, name FROM "groups" ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("list groups: scan row: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: iterate: %w", err)
	}
	return items, nil
}

func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.s, "delete group", `"groups"`, id)
}

func (r *groupRepository) DeleteAll(ctx context.Context) (int64, error) {
	return deleteAll(ctx, r.s, "clear groups", `"groups"`)
}

func (r *groupRepository) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.s, "count groups", `"groups"`)
}
