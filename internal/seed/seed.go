// Package seed wipes the gradebook and refills it with synthetic data.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/amanthanvi/gradebook/internal/storage"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidOptions     = errors.New("seed: invalid options")
	ErrNameSpaceExhausted = errors.New("seed: too many duplicate names drawn")
)

type Range struct {
	Min int `validate:"gte=0"`
	Max int `validate:"gtefield=Min"`
}

type Options struct {
	Groups           int `validate:"gte=1"`
	Students         Range
	Teachers         Range
	Subjects         Range
	GradesPerStudent Range
	GradeValue       Range
	// HistoryDays bounds how far back grade timestamps go.
	HistoryDays       int `validate:"gte=0"`
	SubjectNameMaxLen int `validate:"gte=1"`
	MaxDuplicateDraws int `validate:"gte=1"`
	// Seed pins the random source; zero picks a random one.
	Seed uint64
	Now  func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Groups:            3,
		Students:          Range{Min: 30, Max: 50},
		Teachers:          Range{Min: 3, Max: 5},
		Subjects:          Range{Min: 5, Max: 8},
		GradesPerStudent:  Range{Min: 10, Max: 20},
		GradeValue:        Range{Min: 1, Max: 12},
		HistoryDays:       180,
		SubjectNameMaxLen: 110,
		MaxDuplicateDraws: 1000,
		Now:               time.Now,
	}
}

var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

func (o Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if o.Teachers.Min < 1 || o.Subjects.Min < 1 {
		return fmt.Errorf("%w: at least one teacher and one subject are required", ErrInvalidOptions)
	}
	if o.Students.Max > 0 && o.GradesPerStudent.Max > 0 && o.Subjects.Max < 1 {
		return fmt.Errorf("%w: grades need subjects", ErrInvalidOptions)
	}
	return nil
}

// Runner opens sessions. *storage.Store satisfies it.
type Runner interface {
	WithSession(ctx context.Context, fn func(*storage.Session) error) error
}

type Summary struct {
	RunID    string `json:"run_id"`
	Groups   int    `json:"groups"`
	Students int    `json:"students"`
	Teachers int    `json:"teachers"`
	Subjects int    `json:"subjects"`
	Grades   int    `json:"grades"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Seed complete: groups=%d, students=%d, teachers=%d, subjects=%d, grades=%d",
		s.Groups, s.Students, s.Teachers, s.Subjects, s.Grades)
}

type Generator struct {
	opts   Options
	faker  *gofakeit.Faker
	logger *slog.Logger

	personName  func() string
	subjectName func() string
}

func New(opts Options, logger *slog.Logger) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	faker := gofakeit.New(opts.Seed)
	return &Generator{
		opts:       opts,
		faker:      faker,
		logger:     logger,
		personName: faker.Name,
		subjectName: func() string {
			return faker.JobDescriptor() + " " + faker.JobTitle()
		},
	}, nil
}

// Run clears every table and generates a fresh dataset. Each stage commits
// before the next one starts, so a failure leaves the earlier stages in place.
func (g *Generator) Run(ctx context.Context, runner Runner) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	logger := g.logger.With("run_id", summary.RunID)
	started := time.Now()

	stages := []struct {
		name string
		fn   func(context.Context, *storage.Session, *state) error
	}{
		{name: "clear", fn: g.clear},
		{name: "groups", fn: g.createGroups},
		{name: "teachers", fn: g.createTeachers},
		{name: "subjects", fn: g.createSubjects},
		{name: "students", fn: g.createStudents},
		{name: "grades", fn: g.createGrades},
	}

	st := &state{}
	for _, stage := range stages {
		stageStart := time.Now()
		err := runner.WithSession(ctx, func(sess *storage.Session) error {
			return stage.fn(ctx, sess, st)
		})
		if err != nil {
			return summary, fmt.Errorf("seed %s: %w", stage.name, err)
		}
		logger.Debug("seed stage committed", "stage", stage.name, "elapsed", time.Since(stageStart))
	}

	summary.Groups = len(st.groups)
	summary.Teachers = len(st.teachers)
	summary.Subjects = len(st.subjects)
	summary.Students = len(st.students)
	summary.Grades = st.grades
	logger.Info("seed complete",
		"groups", summary.Groups,
		"students", summary.Students,
		"teachers", summary.Teachers,
		"subjects", summary.Subjects,
		"grades", summary.Grades,
		"elapsed", time.Since(started),
	)
	return summary, nil
}

type state struct {
	groups   []int64
	teachers []int64
	subjects []int64
	students []int64
	grades   int
}

func (g *Generator) clear(ctx context.Context, sess *storage.Session, _ *state) error {
	clears := []func(context.Context) (int64, error){
		sess.Grades().DeleteAll,
		sess.Students().DeleteAll,
		sess.Subjects().DeleteAll,
		sess.Teachers().DeleteAll,
		sess.Groups().DeleteAll,
	}
	for _, clear := range clears {
		if _, err := clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) createGroups(ctx context.Context, sess *storage.Session, st *state) error {
	repo := sess.Groups()
	for i := 1; i <= g.opts.Groups; i++ {
		group := storage.Group{Name: fmt.Sprintf("Group-%d", i)}
		if err := repo.Create(ctx, &group); err != nil {
			return err
		}
		st.groups = append(st.groups, group.ID)
	}
	return nil
}

func (g *Generator) createTeachers(ctx context.Context, sess *storage.Session, st *state) error {
	names, err := g.uniqueNames(g.pick(g.opts.Teachers), g.personName, 150)
	if err != nil {
		return fmt.Errorf("teacher names: %w", err)
	}

	repo := sess.Teachers()
	for _, name := range names {
		teacher := storage.Teacher{FullName: name}
		if err := repo.Create(ctx, &teacher); err != nil {
			return err
		}
		st.teachers = append(st.teachers, teacher.ID)
	}
	return nil
}

func (g *Generator) createSubjects(ctx context.Context, sess *storage.Session, st *state) error {
	names, err := g.uniqueNames(g.pick(g.opts.Subjects), g.subjectName, g.opts.SubjectNameMaxLen)
	if err != nil {
		return fmt.Errorf("subject names: %w", err)
	}

	repo := sess.Subjects()
	for _, name := range names {
		subject := storage.Subject{Name: name, TeacherID: g.choose(st.teachers)}
		if err := repo.Create(ctx, &subject); err != nil {
			return err
		}
		st.subjects = append(st.subjects, subject.ID)
	}
	return nil
}

func (g *Generator) createStudents(ctx context.Context, sess *storage.Session, st *state) error {
	repo := sess.Students()
	count := g.pick(g.opts.Students)
	for i := 0; i < count; i++ {
		student := storage.Student{FullName: truncate(g.personName(), 150), GroupID: g.choose(st.groups)}
		if err := repo.Create(ctx, &student); err != nil {
			return err
		}
		st.students = append(st.students, student.ID)
	}
	return nil
}

func (g *Generator) createGrades(ctx context.Context, sess *storage.Session, st *state) error {
	repo := sess.Grades()
	now := g.opts.Now().UTC()
	for _, studentID := range st.students {
		count := g.pick(g.opts.GradesPerStudent)
		for i := 0; i < count; i++ {
			age := time.Duration(g.faker.Number(0, g.opts.HistoryDays))*24*time.Hour +
				time.Duration(g.faker.Number(0, 23))*time.Hour
			grade := storage.Grade{
				StudentID:  studentID,
				SubjectID:  g.choose(st.subjects),
				Value:      g.pick(g.opts.GradeValue),
				ReceivedAt: now.Add(-age),
			}
			if err := repo.Create(ctx, &grade); err != nil {
				return err
			}
			st.grades++
		}
	}
	return nil
}

// uniqueNames draws n distinct names, giving up after MaxDuplicateDraws
// repeated draws.
func (g *Generator) uniqueNames(n int, draw func() string, maxLen int) ([]string, error) {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	duplicates := 0
	for len(out) < n {
		name := truncate(draw(), maxLen)
		if _, ok := seen[name]; ok {
			duplicates++
			if duplicates >= g.opts.MaxDuplicateDraws {
				return nil, fmt.Errorf("%w: have %d of %d after %d duplicates", ErrNameSpaceExhausted, len(out), n, duplicates)
			}
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func (g *Generator) pick(r Range) int {
	return g.faker.Number(r.Min, r.Max)
}

func (g *Generator) choose(ids []int64) int64 {
	return ids[g.faker.Number(0, len(ids)-1)]
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
