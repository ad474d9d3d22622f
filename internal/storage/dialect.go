package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var ErrUnsupportedURL = errors.New("storage: unsupported database url")

const sqliteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

// Rebind rewrites ? placeholders into the dialect's bind syntax. Question
// marks inside quoted literals or identifiers are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '?':
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timeArg(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// Target is a parsed connection URL.
type Target struct {
	Dialect Dialect
	DSN     string
	// Path is the SQLite database file, empty for PostgreSQL and in-memory
	// databases.
	Path   string
	Memory bool
}

// ParseURL accepts SQLAlchemy-style URLs (sqlite:///relative.db,
// sqlite:////absolute.db, postgresql+psycopg2://...), plain postgres URLs,
// file: URIs, :memory: and bare filesystem paths.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty", ErrUnsupportedURL)
	}
	if raw == ":memory:" {
		return sqliteTarget(":memory:"), nil
	}
	if rest, ok := strings.CutPrefix(raw, "file:"); ok {
		path, _, _ := strings.Cut(rest, "?")
		if path == "" {
			return Target{}, fmt.Errorf("%w: file url without path", ErrUnsupportedURL)
		}
		return sqliteTarget(path), nil
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return sqliteTarget(raw), nil
	}
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")

	switch scheme {
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(rest, "/")
		path, _, _ = strings.Cut(path, "?")
		if path == "" || path == ":memory:" {
			return sqliteTarget(":memory:"), nil
		}
		return sqliteTarget(path), nil
	case "postgres", "postgresql":
		if _, err := url.Parse("postgres://" + rest); err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
		}
		return Target{Dialect: DialectPostgres, DSN: "postgres://" + rest}, nil
	default:
		return Target{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
	}
}

func sqliteTarget(path string) Target {
	if path == ":memory:" {
		return Target{
			Dialect: DialectSQLite,
			DSN:     "file::memory:?_pragma=foreign_keys(1)",
			Memory:  true,
		}
	}
	path = filepath.Clean(path)
	return Target{
		Dialect: DialectSQLite,
		DSN:     "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		Path:    path,
	}
}

// RedactURL masks the password of a connection URL for display.
func RedactURL(raw string) string {
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok || strings.HasPrefix(strings.ToLower(scheme), "sqlite") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}
