package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Session is one unit of work: a single database transaction at the store's
// default isolation level. A Session is not safe for concurrent use.
type Session struct {
	tx      *sql.Tx
	dialect Dialect
	logger  *slog.Logger
	slow    time.Duration
	done    bool
}

func (s *Session) Dialect() Dialect {
	return s.dialect
}

func (s *Session) Groups() GroupRepository     { return &groupRepository{s: s} }
func (s *Session) Students() StudentRepository { return &studentRepository{s: s} }
func (s *Session) Teachers() TeacherRepository { return &teacherRepository{s: s} }
func (s *Session) Subjects() SubjectRepository { return &subjectRepository{s: s} }
func (s *Session) Grades() GradeRepository     { return &gradeRepository{s: s} }

// Statements issued after Commit or Rollback fail with sql.ErrTxDone.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = s.dialect.Rebind(query)
	start := time.Now()
	result, err := s.tx.ExecContext(ctx, query, args...)
	s.trace(ctx, query, len(args), start, err)
	return result, err
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = s.dialect.Rebind(query)
	start := time.Now()
	rows, err := s.tx.QueryContext(ctx, query, args...)
	s.trace(ctx, query, len(args), start, err)
	return rows, err
}

func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	query = s.dialect.Rebind(query)
	start := time.Now()
	row := s.tx.QueryRowContext(ctx, query, args...)
	s.trace(ctx, query, len(args), start, row.Err())
	return row
}

func (s *Session) Commit() error {
	if s.done {
		return ErrSessionClosed
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *Session) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback session: %w", err)
	}
	return nil
}

// Close rolls back uncommitted work. It is safe to defer on every path.
func (s *Session) Close() error {
	return s.Rollback()
}

func (s *Session) trace(ctx context.Context, query string, nargs int, start time.Time, err error) {
	if s.logger == nil {
		return
	}
	elapsed := time.Since(start)
	attrs := []slog.Attr{
		slog.String("sql", compactSQL(query)),
		slog.Int("args", nargs),
		slog.Duration("elapsed", elapsed),
	}
	switch {
	case err != nil:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "sql failed", append(attrs, slog.String("error", err.Error()))...)
	case s.slow > 0 && elapsed > s.slow:
		s.logger.LogAttrs(ctx, slog.LevelWarn, "slow sql", attrs...)
	default:
		s.logger.LogAttrs(ctx, slog.LevelDebug, "sql", attrs...)
	}
}

func compactSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
