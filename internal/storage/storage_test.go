package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amanthanvi/gradebook/internal/sqlerr"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	for _, table := range Tables() {
		require.Truef(t, tableExists(t, store.DB(), table), "expected table %s to exist", table)
	}
	require.Equal(t, DialectSQLite, store.Dialect())
	require.NotEmpty(t, store.Path())
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	seedFixture(t, store)
	require.NoError(t, EnsureSchema(ctx, store.DB(), store.Dialect()))
	require.NoError(t, EnsureSchema(ctx, store.DB(), store.Dialect()))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["groups"])
	require.Equal(t, int64(2), counts["grades"])

	missing, err := MissingTables(ctx, store.DB(), store.Dialect())
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gradebook.db")
	ctx := context.Background()

	store, err := Open(ctx, Options{URL: path})
	require.NoError(t, err)
	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		return sess.Groups().Create(ctx, &Group{Name: "Group-1"})
	}))
	require.NoError(t, store.Close())

	store, err = Open(ctx, Options{URL: "sqlite:///" + path})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["groups"])
}

func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(ctx, Options{URL: ":memory:"})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	require.Empty(t, store.Path())
	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		return sess.Teachers().Create(ctx, &Teacher{FullName: "Ada Lovelace"})
	}))
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["teachers"])
}

func TestGradeValueOutsideRangeIsRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	for _, value := range []int{0, 13, -1} {
		err := store.WithSession(ctx, func(sess *Session) error {
			return sess.Grades().Create(ctx, &Grade{StudentID: fx.student.ID, SubjectID: fx.subject.ID, Value: value})
		})
		require.Errorf(t, err, "value %d", value)
		require.Equal(t, sqlerr.CheckViolation, sqlerr.ErrCode(err))
		require.ErrorIs(t, err, sqlerr.ErrConstraintViolation)
	}

	for _, value := range []int{1, 12} {
		err := store.WithSession(ctx, func(sess *Session) error {
			return sess.Grades().Create(ctx, &Grade{StudentID: fx.student.ID, SubjectID: fx.subject.ID, Value: value})
		})
		require.NoErrorf(t, err, "value %d", value)
	}
}

func TestSubjectNameUniquePerTeacher(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	err := store.WithSession(ctx, func(sess *Session) error {
		return sess.Subjects().Create(ctx, &Subject{Name: fx.subject.Name, TeacherID: fx.teacher.ID})
	})
	require.Error(t, err)
	require.Equal(t, sqlerr.UniqueViolation, sqlerr.ErrCode(err))

	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		other := &Teacher{FullName: "Grace Hopper"}
		if err := sess.Teachers().Create(ctx, other); err != nil {
			return err
		}
		return sess.Subjects().Create(ctx, &Subject{Name: fx.subject.Name, TeacherID: other.ID})
	}))
}

func TestUniqueGroupAndTeacherNames(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	err := store.WithSession(ctx, func(sess *Session) error {
		return sess.Groups().Create(ctx, &Group{Name: fx.group.Name})
	})
	require.Equal(t, sqlerr.UniqueViolation, sqlerr.ErrCode(err))

	err = store.WithSession(ctx, func(sess *Session) error {
		return sess.Teachers().Create(ctx, &Teacher{FullName: fx.teacher.FullName})
	})
	require.Equal(t, sqlerr.UniqueViolation, sqlerr.ErrCode(err))
}

func TestStudentRequiresExistingGroup(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithSession(ctx, func(sess *Session) error {
		return sess.Students().Create(ctx, &Student{FullName: "Nobody", GroupID: 4242})
	})
	require.Equal(t, sqlerr.ForeignKeyViolation, sqlerr.ErrCode(err))
}

func TestDeleteGroupCascadesToStudentsAndGrades(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		return sess.Groups().Delete(ctx, fx.group.ID)
	}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts["groups"])
	require.Zero(t, counts["students"])
	require.Zero(t, counts["grades"])
	require.Equal(t, int64(1), counts["subjects"])
}

func TestDeleteSubjectWithGradesIsRestricted(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	err := store.WithSession(ctx, func(sess *Session) error {
		return sess.Subjects().Delete(ctx, fx.subject.ID)
	})
	require.Error(t, err)
	require.Equal(t, sqlerr.ForeignKeyViolation, sqlerr.ErrCode(err))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["subjects"])
	require.Equal(t, int64(2), counts["grades"])
}

func TestDeleteTeacherWithGradedSubjectsFailsAtomically(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	err := store.WithSession(ctx, func(sess *Session) error {
		return sess.Teachers().Delete(ctx, fx.teacher.ID)
	})
	require.Equal(t, sqlerr.ForeignKeyViolation, sqlerr.ErrCode(err))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["teachers"])
	require.Equal(t, int64(1), counts["subjects"])
	require.Equal(t, int64(2), counts["grades"])
}

func TestDeleteTeacherWithoutGradesCascadesToSubjects(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	var teacher Teacher
	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		teacher = Teacher{FullName: "Alan Turing"}
		if err := sess.Teachers().Create(ctx, &teacher); err != nil {
			return err
		}
		for _, name := range []string{"Logic", "Computability"} {
			if err := sess.Subjects().Create(ctx, &Subject{Name: name, TeacherID: teacher.ID}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		return sess.Teachers().Delete(ctx, teacher.ID)
	}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts["teachers"])
	require.Zero(t, counts["subjects"])
}

func TestGradeReceivedAtDefaultsToNow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	fx := seedFixture(t, store)

	before := time.Now().UTC().Add(-time.Minute)
	grade := &Grade{StudentID: fx.student.ID, SubjectID: fx.subject.ID, Value: 10}
	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		return sess.Grades().Create(ctx, grade)
	}))
	require.NotZero(t, grade.ID)
	require.True(t, grade.ReceivedAt.After(before), "received_at %s", grade.ReceivedAt)

	explicit := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	pinned := &Grade{StudentID: fx.student.ID, SubjectID: fx.subject.ID, Value: 4, ReceivedAt: explicit}
	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		return sess.Grades().Create(ctx, pinned)
	}))

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	loaded, err := sess.Grades().Get(ctx, pinned.ID)
	require.NoError(t, err)
	require.True(t, explicit.Equal(loaded.ReceivedAt))

	grades, err := sess.Grades().ListByStudent(ctx, fx.student.ID)
	require.NoError(t, err)
	require.Len(t, grades, 4)
	require.True(t, explicit.Equal(grades[0].ReceivedAt))
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	_, err = sess.Groups().Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = sess.Students().Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = sess.Teachers().Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = sess.Subjects().Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = sess.Grades().Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, sess.Groups().Delete(ctx, 99), ErrNotFound)
}

func TestSessionCloseRollsBackUncommittedWork(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Groups().Create(ctx, &Group{Name: "Group-1"}))
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	require.ErrorIs(t, sess.Commit(), ErrSessionClosed)

	_, err = sess.ExecContext(ctx, `DELETE FROM grades`)
	require.ErrorIs(t, err, sql.ErrTxDone)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts["groups"])
}

func TestSessionCommitIsDurable(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Groups().Create(ctx, &Group{Name: "Group-1"}))
	require.NoError(t, sess.Commit())
	require.NoError(t, sess.Close())

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["groups"])
}

func TestWithSessionRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithSession(ctx, func(sess *Session) error {
		if err := sess.Groups().Create(ctx, &Group{Name: "Group-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts["groups"])
}

func TestWithSessionRollsBackAndRepanics(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.PanicsWithValue(t, "kaboom", func() {
		_ = store.WithSession(ctx, func(sess *Session) error {
			require.NoError(t, sess.Groups().Create(ctx, &Group{Name: "Group-1"}))
			panic("kaboom")
		})
	})

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts["groups"])
}

func TestDeleteAllInDependencyOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	seedFixture(t, store)

	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		n, err := sess.Grades().DeleteAll(ctx)
		require.Equal(t, int64(2), n)
		if err != nil {
			return err
		}
		for _, clear := range []func(context.Context) (int64, error){
			sess.Students().DeleteAll,
			sess.Subjects().DeleteAll,
			sess.Teachers().DeleteAll,
			sess.Groups().DeleteAll,
		} {
			if _, err := clear(ctx); err != nil {
				return err
			}
		}
		return nil
	}))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	for table, n := range counts {
		require.Zerof(t, n, "table %s", table)
	}
}

type fixture struct {
	group   Group
	student Student
	teacher Teacher
	subject Subject
}

func seedFixture(t *testing.T, store *Store) fixture {
	t.Helper()
	ctx := context.Background()

	var fx fixture
	require.NoError(t, store.WithSession(ctx, func(sess *Session) error {
		fx.group = Group{Name: "Group-1"}
		if err := sess.Groups().Create(ctx, &fx.group); err != nil {
			return err
		}
		fx.student = Student{FullName: "Alice Smith", GroupID: fx.group.ID}
		if err := sess.Students().Create(ctx, &fx.student); err != nil {
			return err
		}
		fx.teacher = Teacher{FullName: "Ada Lovelace"}
		if err := sess.Teachers().Create(ctx, &fx.teacher); err != nil {
			return err
		}
		fx.subject = Subject{Name: "Mathematics", TeacherID: fx.teacher.ID}
		if err := sess.Subjects().Create(ctx, &fx.subject); err != nil {
			return err
		}
		for _, value := range []int{7, 9} {
			if err := sess.Grades().Create(ctx, &Grade{StudentID: fx.student.ID, SubjectID: fx.subject.ID, Value: value}); err != nil {
				return err
			}
		}
		return nil
	}))
	return fx
}

func TestOpenSkipSchemaReportsMissingTables(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bare.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	store, err := Open(context.Background(), Options{URL: path, SkipSchema: true})
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })

	missing, err := MissingTables(context.Background(), store.DB(), store.Dialect())
	require.NoError(t, err)
	require.Equal(t, Tables(), missing)

	require.NoError(t, EnsureSchema(context.Background(), store.DB(), store.Dialect()))
	missing, err = MissingTables(context.Background(), store.DB(), store.Dialect())
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestOpenSkipSchemaDoesNotCreateDatabase(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "sub")
	path := filepath.Join(dir, "fresh.db")
	_, err := Open(context.Background(), Options{URL: path, SkipSchema: true})
	require.ErrorIs(t, err, ErrDatabaseMissing)
	require.NoFileExists(t, path)
	require.NoDirExists(t, dir)
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gradebook.db")
	store, err := Open(context.Background(), Options{URL: path})
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	return store
}

func closeStoreNoErr(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Close())
}
