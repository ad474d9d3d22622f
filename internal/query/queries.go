package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TopStudents returns up to five students with the highest average grade
// across all subjects. Students without grades are left out.
func TopStudents(ctx context.Context, q Querier) ([]StudentAverage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.full_name, CAST(AVG(g.value) AS DOUBLE PRECISION) AS avg_grade
		FROM students s
		JOIN grades g ON g.student_id = s.id
		GROUP BY s.id, s.full_name
		ORDER BY avg_grade DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	return scanStudentAverages(rows, "top students")
}

// TopStudentForSubject returns the student with the highest average grade in
// one subject.
func TopStudentForSubject(ctx context.Context, q Querier, subjectID int64) (Option[StudentAverage], error) {
	var out StudentAverage
	err := q.QueryRowContext(ctx, `
		SELECT s.id, s.full_name, CAST(AVG(g.value) AS DOUBLE PRECISION) AS avg_grade
		FROM students s
		JOIN grades g ON g.student_id = s.id
		WHERE g.subject_id = ?
		GROUP BY s.id, s.full_name
		ORDER BY avg_grade DESC
		LIMIT 1
	`, subjectID).Scan(&out.StudentID, &out.FullName, &out.AvgGrade)
	if errors.Is(err, sql.ErrNoRows) {
		return None[StudentAverage](), nil
	}
	if err != nil {
		return None[StudentAverage](), fmt.Errorf("top student for subject: %w", err)
	}
	return Some(out), nil
}

// GroupAveragesForSubject returns the average grade in one subject for every
// group that has at least one such grade, ordered by group name.
func GroupAveragesForSubject(ctx context.Context, q Querier, subjectID int64) ([]GroupAverage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT gr.id, gr.name, CAST(AVG(g.value) AS DOUBLE PRECISION) AS avg_grade
		FROM "groups" gr
		JOIN students s ON s.group_id = gr.id
		JOIN grades g ON g.student_id = s.id
		WHERE g.subject_id = ?
		GROUP BY gr.id, gr.name
		ORDER BY gr.name ASC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("group averages for subject: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []GroupAverage{}
	for rows.Next() {
		var item GroupAverage
		if err := rows.Scan(&item.GroupID, &item.Name, &item.AvgGrade); err != nil {
			return nil, fmt.Errorf("group averages for subject: scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group averages for subject: iterate: %w", err)
	}
	return items, nil
}

// OverallAverage is the mean of every grade. It is absent when there are no
// grades at all.
func OverallAverage(ctx context.Context, q Querier) (Option[float64], error) {
	return scalarAverage(ctx, q, "overall average", `
		SELECT CAST(AVG(value) AS DOUBLE PRECISION) FROM grades
	`)
}

// TeacherSubjects lists the subjects a teacher teaches, ordered by name.
func TeacherSubjects(ctx context.Context, q Querier, teacherID int64) ([]SubjectRef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name
		FROM subjects
		WHERE teacher_id = ?
		ORDER BY name ASC
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("teacher subjects: %w", err)
	}
	return scanSubjectRefs(rows, "teacher subjects")
}

// GroupStudents lists the members of a group, ordered by full name.
func GroupStudents(ctx context.Context, q Querier, groupID int64) ([]StudentRef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, full_name
		FROM students
		WHERE group_id = ?
		ORDER BY full_name ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group students: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []StudentRef{}
	for rows.Next() {
		var item StudentRef
		if err := rows.Scan(&item.ID, &item.FullName); err != nil {
			return nil, fmt.Errorf("group students: scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group students: iterate: %w", err)
	}
	return items, nil
}

// GroupSubjectGrades returns every grade that members of a group received in
// one subject, ordered by student name and then by when the grade was given.
func GroupSubjectGrades(ctx context.Context, q Querier, groupID, subjectID int64) ([]StudentGrade, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.full_name, g.value
		FROM students s
		JOIN grades g ON g.student_id = s.id
		WHERE s.group_id = ? AND g.subject_id = ?
		ORDER BY s.full_name ASC, g.received_at ASC
	`, groupID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("group subject grades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []StudentGrade{}
	for rows.Next() {
		var item StudentGrade
		if err := rows.Scan(&item.StudentID, &item.FullName, &item.Value); err != nil {
			return nil, fmt.Errorf("group subject grades: scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("group subject grades: iterate: %w", err)
	}
	return items, nil
}

// TeacherAverage is the mean of all grades given in a teacher's subjects.
func TeacherAverage(ctx context.Context, q Querier, teacherID int64) (Option[float64], error) {
	return scalarAverage(ctx, q, "teacher average", `
		SELECT CAST(AVG(g.value) AS DOUBLE PRECISION)
		FROM grades g
		JOIN subjects sub ON sub.id = g.subject_id
		WHERE sub.teacher_id = ?
	`, teacherID)
}

// StudentSubjects lists the distinct subjects a student has been graded in.
func StudentSubjects(ctx context.Context, q Querier, studentID int64) ([]SubjectRef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT sub.id, sub.name
		FROM subjects sub
		JOIN grades g ON g.subject_id = sub.id
		WHERE g.student_id = ?
		ORDER BY sub.name ASC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("student subjects: %w", err)
	}
	return scanSubjectRefs(rows, "student subjects")
}

// StudentTeacherSubjects lists the distinct subjects in which a teacher has
// graded a student.
func StudentTeacherSubjects(ctx context.Context, q Querier, studentID, teacherID int64) ([]SubjectRef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT sub.id, sub.name
		FROM subjects sub
		JOIN grades g ON g.subject_id = sub.id
		WHERE g.student_id = ? AND sub.teacher_id = ?
		ORDER BY sub.name ASC
	`, studentID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("student teacher subjects: %w", err)
	}
	return scanSubjectRefs(rows, "student teacher subjects")
}

func scalarAverage(ctx context.Context, q Querier, op, query string, args ...any) (Option[float64], error) {
	var avg sql.NullFloat64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&avg); err != nil {
		return None[float64](), fmt.Errorf("%s: %w", op, err)
	}
	if !avg.Valid {
		return None[float64](), nil
	}
	return Some(avg.Float64), nil
}

func scanStudentAverages(rows *sql.Rows, op string) ([]StudentAverage, error) {
	defer func() { _ = rows.Close() }()

	items := []StudentAverage{}
	for rows.Next() {
		var item StudentAverage
		if err := rows.Scan(&item.StudentID, &item.FullName, &item.AvgGrade); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return items, nil
}

func scanSubjectRefs(rows *sql.Rows, op string) ([]SubjectRef, error) {
	defer func() { _ = rows.Close() }()

	items := []SubjectRef{}
	for rows.Next() {
		var item SubjectRef
		if err := rows.Scan(&item.ID, &item.Name); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return items, nil
}
