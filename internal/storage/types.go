package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrSessionClosed = errors.New("storage: session already closed")

	// ErrDatabaseMissing is returned by Open with SkipSchema when the SQLite
	// file does not exist yet.
	ErrDatabaseMissing = errors.New("storage: database file does not exist")
)

type Group struct {
	ID   int64
	Name string
}

type Student struct {
	ID       int64
	FullName string
	GroupID  int64
}

type Teacher struct {
	ID       int64
	FullName string
}

type Subject struct {
	ID        int64
	Name      string
	TeacherID int64
}

type Grade struct {
	ID        int64
	StudentID int64
	SubjectID int64
	Value     int
	// ReceivedAt defaults to the store's current timestamp when zero.
	ReceivedAt time.Time
}

type GroupRepository interface {
	Create(ctx context.Context, group *Group) error
	Get(ctx context.Context, id int64) (*Group, error)
	List(ctx context.Context) ([]Group, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *Student) error
	Get(ctx context.Context, id int64) (*Student, error)
	List(ctx context.Context) ([]Student, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type TeacherRepository interface {
	Create(ctx context.Context, teacher *Teacher) error
	Get(ctx context.Context, id int64) (*Teacher, error)
	List(ctx context.Context) ([]Teacher, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type SubjectRepository interface {
	Create(ctx context.Context, subject *Subject) error
	Get(ctx context.Context, id int64) (*Subject, error)
	List(ctx context.Context) ([]Subject, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type GradeRepository interface {
	Create(ctx context.Context, grade *Grade) error
	Get(ctx context.Context, id int64) (*Grade, error)
	ListByStudent(ctx context.Context, studentID int64) ([]Grade, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}
