package sqlerr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Code is the store-independent category of a failed statement.
type Code string

const (
	Other               Code = "other"
	UniqueViolation     Code = "unique_violation"
	ForeignKeyViolation Code = "foreign_key_violation"
	CheckViolation      Code = "check_violation"
	NotNullViolation    Code = "not_null_violation"
)

// ErrConstraintViolation matches any classified constraint error via errors.Is.
var ErrConstraintViolation = errors.New("sqlerr: constraint violation")

// Error is a classified driver error. It unwraps to the original driver error.
type Error struct {
	Code           Code
	DatabaseCode   string
	Message        string
	TableName      string
	ColumnName     string
	ConstraintName string

	driverErr error
}

func (e *Error) Error() string {
	if e.ConstraintName != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.ConstraintName, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

func (e *Error) Is(target error) bool {
	return target == ErrConstraintViolation && e.Code != Other
}

// Classify inspects err's chain for a PostgreSQL or SQLite driver error and
// returns its classification. It returns nil when no driver error is found.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return convertPgError(pgErr)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return convertSQLiteError(liteErr)
	}
	return nil
}

// Wrap returns err with its classification attached when it carries a
// driver constraint error, and err unchanged otherwise.
func Wrap(err error) error {
	classified := Classify(err)
	if classified == nil || classified.Code == Other {
		return err
	}
	return &wrapped{err: err, class: classified}
}

type wrapped struct {
	err   error
	class *Error
}

func (w *wrapped) Error() string { return w.err.Error() }

func (w *wrapped) Unwrap() []error { return []error{w.err, w.class} }

// ErrCode reports the classification code found in err's chain.
func ErrCode(err error) Code {
	if classified := Classify(err); classified != nil {
		return classified.Code
	}
	return Other
}

func IsConstraintViolation(err error) bool {
	return ErrCode(err) != Other
}

func convertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           mapPgCode(src.Code),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

func mapPgCode(sqlState string) Code {
	switch sqlState {
	case "23505":
		return UniqueViolation
	case "23503", "23001":
		return ForeignKeyViolation
	case "23514":
		return CheckViolation
	case "23502":
		return NotNullViolation
	default:
		return Other
	}
}

var (
	liteColumnsRe    = regexp.MustCompile(`(?:UNIQUE|NOT NULL) constraint failed: ([A-Za-z0-9_., ]+?)(?: \(\d+\))?$`)
	liteConstraintRe = regexp.MustCompile(`CHECK constraint failed: ([A-Za-z0-9_]+)`)
)

func convertSQLiteError(src *sqlite.Error) *Error {
	out := &Error{
		Code:         mapSQLiteCode(src.Code(), src.Error()),
		DatabaseCode: fmt.Sprintf("%d", src.Code()),
		Message:      src.Error(),
		driverErr:    src,
	}

	msg := src.Error()
	if m := liteColumnsRe.FindStringSubmatch(msg); len(m) == 2 {
		columns := []string{}
		for _, qualified := range strings.Split(m[1], ",") {
			table, column, ok := strings.Cut(strings.TrimSpace(qualified), ".")
			if !ok {
				continue
			}
			out.TableName = table
			columns = append(columns, column)
		}
		out.ColumnName = strings.Join(columns, ",")
	}
	if m := liteConstraintRe.FindStringSubmatch(msg); len(m) == 2 {
		out.ConstraintName = m[1]
	}
	return out
}

func mapSQLiteCode(code int, msg string) Code {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return UniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ForeignKeyViolation
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return CheckViolation
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return NotNullViolation
	}

	// Primary result codes carry no constraint kind; fall back to the message.
	if code&0xff != sqlite3.SQLITE_CONSTRAINT {
		return Other
	}
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return UniqueViolation
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ForeignKeyViolation
	case strings.Contains(msg, "CHECK constraint failed"):
		return CheckViolation
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return NotNullViolation
	default:
		return Other
	}
}

// UserMessage renders a short human-readable description of a classified
// error, e.g. "A teacher with this full name already exists".
func UserMessage(err error) string {
	classified := Classify(err)
	if classified == nil {
		return "an error occurred while talking to the database"
	}

	switch classified.Code {
	case ForeignKeyViolation:
		if classified.TableName == "" && classified.ColumnName == "" {
			return "The change conflicts with a related row that is missing or still in use"
		}
		return fmt.Sprintf("The referenced %s does not exist or is still in use", entityName(classified.TableName, classified.ColumnName))
	case UniqueViolation:
		field := fieldList(classified.ColumnName)
		if field == "" {
			field = "identifier"
		}
		return fmt.Sprintf("A %s with this %s already exists", entityName(classified.TableName, ""), field)
	case NotNullViolation:
		field := humanize(classified.ColumnName)
		if field == "" {
			field = "Field"
		}
		return fmt.Sprintf("The %s is required", field)
	case CheckViolation:
		if classified.ConstraintName != "" {
			return fmt.Sprintf("The value does not meet the %s rule", humanize(strings.TrimPrefix(classified.ConstraintName, "ck_")))
		}
		return "One or more values do not meet required conditions"
	default:
		return classified.Message
	}
}

func entityName(tableName, columnName string) string {
	if columnName != "" && strings.HasSuffix(strings.ToLower(columnName), "_id") {
		return strings.ToLower(humanize(strings.TrimSuffix(strings.ToLower(columnName), "_id")))
	}
	if tableName != "" {
		entity := tableName
		if strings.HasSuffix(entity, "s") && len(entity) > 1 {
			entity = entity[:len(entity)-1]
		}
		return strings.ToLower(humanize(entity))
	}
	return "record"
}

func fieldList(columns string) string {
	if columns == "" {
		return ""
	}
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = strings.ToLower(humanize(strings.TrimSpace(part)))
	}
	return strings.Join(parts, " and ")
}

func humanize(text string) string {
	if text == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}
