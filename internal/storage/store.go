package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const defaultMaxOpenConns = 8

type Options struct {
	URL                string
	MaxOpenConns       int
	SlowQueryThreshold time.Duration
	Logger             *slog.Logger
	// SkipSchema opens without creating missing tables, so callers can
	// inspect the database as found.
	SkipSchema bool
}

// Store is the process-wide handle on the database. Work happens through
// sessions obtained from Begin or WithSession.
type Store struct {
	db     *sql.DB
	target Target
	url    string
	logger *slog.Logger
	slow   time.Duration
}

// Open parses opts.URL, connects, verifies the connection and, unless
// opts.SkipSchema is set, ensures the schema exists. With SkipSchema a
// missing SQLite file is reported as ErrDatabaseMissing instead of created.
func Open(ctx context.Context, opts Options) (*Store, error) {
	target, err := ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	switch {
	case target.Path == "":
	case opts.SkipSchema:
		// The driver would create the file on first connect.
		if _, err := os.Stat(target.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("open storage: %w: %s", ErrDatabaseMissing, target.Path)
			}
			return nil, fmt.Errorf("open storage: %w", err)
		}
	default:
		if err := os.MkdirAll(filepath.Dir(target.Path), 0o700); err != nil {
			return nil, fmt.Errorf("open storage: create parent dir: %w", err)
		}
	}

	db, err := sql.Open(target.Dialect.DriverName(), target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	if target.Memory {
		// Every connection to :memory: is a separate database.
		maxOpen = 1
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open storage: ping %s: %w", target.Dialect, err)
	}

	if !opts.SkipSchema {
		if err := EnsureSchema(ctx, db, target.Dialect); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(discardHandler{})
	}

	return &Store{
		db:     db,
		target: target,
		url:    RedactURL(opts.URL),
		logger: logger,
		slow:   opts.SlowQueryThreshold,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) Dialect() Dialect {
	return s.target.Dialect
}

// Path is the SQLite database file, empty for other stores.
func (s *Store) Path() string {
	return s.target.Path
}

// URL is the connection URL with any password masked.
func (s *Store) URL() string {
	return s.url
}

func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &Session{
		tx:      tx,
		dialect: s.target.Dialect,
		logger:  s.logger,
		slow:    s.slow,
	}, nil
}

// WithSession runs fn in a new session. The session commits when fn returns
// nil and rolls back when fn fails or panics; a panic is re-raised after the
// rollback.
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) error {
	sess, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sess.Rollback()
			panic(p)
		}
	}()

	if err := fn(sess); err != nil {
		if rbErr := sess.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return sess.Commit()
}

// Counts returns the number of rows per schema table.
func (s *Store) Counts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Tables()))
	err := s.WithSession(ctx, func(sess *Session) error {
		counters := map[string]func(context.Context) (int64, error){
			"groups":   sess.Groups().Count,
			"students": sess.Students().Count,
			"teachers": sess.Teachers().Count,
			"subjects": sess.Subjects().Count,
			"grades":   sess.Grades().Count,
		}
		for _, table := range Tables() {
			n, err := counters[table](ctx)
			if err != nil {
				return err
			}
			out[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
