package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amanthanvi/gradebook/internal/sqlerr"
)

// timeScanner accepts the TEXT timestamps written by SQLite as well as the
// native time values returned by PostgreSQL.
type timeScanner struct {
	dst *time.Time
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.dst = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.dst = time.Time{}
		return nil
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
}

func (s timeScanner) parse(raw string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			*s.dst = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: unknown layout", raw)
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func insertReturningID(ctx context.Context, s *Session, op, query string, args ...any) (int64, error) {
	var id int64
	if err := s.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, sqlerr.Wrap(err))
	}
	return id, nil
}

func deleteByID(ctx context.Context, s *Session, op, table string, id int64) error {
	result, err := s.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, sqlerr.Wrap(err))
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteAll(ctx context.Context, s *Session, op, table string) (int64, error) {
	result, err := s.ExecContext(ctx, `DELETE FROM `+table)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, sqlerr.Wrap(err))
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return count, nil
}

func countRows(ctx context.Context, s *Session, op, table string) (int64, error) {
	var count int64
	if err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
