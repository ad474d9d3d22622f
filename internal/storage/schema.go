package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists the schema's tables in dependency order, parents first.
func Tables() []string {
	return []string{"groups", "students", "teachers", "subjects", "grades"}
}

func schemaStatements(d Dialect) []string {
	if d == DialectPostgres {
		return postgresSchema
	}
	return sqliteSchema
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS "groups" (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id INTEGER PRIMARY KEY,
		full_name VARCHAR(150) NOT NULL,
		group_id INTEGER NOT NULL,
		FOREIGN KEY(group_id) REFERENCES "groups"(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id INTEGER PRIMARY KEY,
		full_name VARCHAR(150) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id INTEGER PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		teacher_id INTEGER NOT NULL,
		FOREIGN KEY(teacher_id) REFERENCES teachers(id) ON DELETE CASCADE,
		CONSTRAINT uq_subject_teacher_name UNIQUE (teacher_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS grades (
		id INTEGER PRIMARY KEY,
		student_id INTEGER NOT NULL,
		subject_id INTEGER NOT NULL,
		value SMALLINT NOT NULL,
		received_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
		FOREIGN KEY(student_id) REFERENCES students(id) ON DELETE CASCADE,
		FOREIGN KEY(subject_id) REFERENCES subjects(id) ON DELETE RESTRICT,
		CONSTRAINT ck_grade_value_range CHECK (value BETWEEN 1 AND 12)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_students_group_id ON students(group_id)`,
	`CREATE INDEX IF NOT EXISTS ix_subjects_teacher_id ON subjects(teacher_id)`,
	`CREATE INDEX IF NOT EXISTS ix_grades_student_id ON grades(student_id)`,
	`CREATE INDEX IF NOT EXISTS ix_grades_subject_id ON grades(subject_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS "groups" (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		full_name VARCHAR(150) NOT NULL,
		group_id BIGINT NOT NULL REFERENCES "groups"(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS teachers (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		full_name VARCHAR(150) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name VARCHAR(120) NOT NULL,
		teacher_id BIGINT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		CONSTRAINT uq_subject_teacher_name UNIQUE (teacher_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS grades (
		id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE RESTRICT,
		value SMALLINT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ck_grade_value_range CHECK (value BETWEEN 1 AND 12)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_students_group_id ON students(group_id)`,
	`CREATE INDEX IF NOT EXISTS ix_subjects_teacher_id ON subjects(teacher_id)`,
	`CREATE INDEX IF NOT EXISTS ix_grades_student_id ON grades(student_id)`,
	`CREATE INDEX IF NOT EXISTS ix_grades_subject_id ON grades(subject_id)`,
}

// EnsureSchema creates every table and index that does not exist yet. All
// statements run in one transaction, so a failure leaves the store as it was.
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	if db == nil {
		return fmt.Errorf("ensure schema: db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure schema: begin: %w", err)
	}
	for _, stmt := range schemaStatements(d) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure schema: commit: %w", err)
	}
	return nil
}

// MissingTables reports the schema tables absent from the store.
func MissingTables(ctx context.Context, db *sql.DB, d Dialect) ([]string, error) {
	query := `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`
	if d == DialectPostgres {
		query = `SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`
	}

	missing := []string{}
	for _, table := range Tables() {
		var count int
		if err := db.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
			return nil, fmt.Errorf("inspect schema: %w", err)
		}
		if count == 0 {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
