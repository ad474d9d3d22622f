package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var ErrUnknownQuery = errors.New("query: unknown query")

// Param names an identifier a catalog query needs.
type Param string

const (
	ParamSubject Param = "subject"
	ParamGroup   Param = "group"
	ParamTeacher Param = "teacher"
	ParamStudent Param = "student"
)

// Args carries identifier values keyed by Param.
type Args map[Param]int64

// Definition describes one reporting query for callers that pick queries by
// name, such as the CLI.
type Definition struct {
	Number int
	Name   string
	Title  string
	Params []Param
	Run    func(ctx context.Context, q Querier, args Args) (any, error)
}

// Missing returns the required params absent from args.
func (d Definition) Missing(args Args) []Param {
	out := []Param{}
	for _, p := range d.Params {
		if _, ok := args[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Execute checks args and runs the query.
func (d Definition) Execute(ctx context.Context, q Querier, args Args) (any, error) {
	if missing := d.Missing(args); len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing parameter %q", d.Name, missing[0])
	}
	return d.Run(ctx, q, args)
}

var catalog = []Definition{
	{
		Number: 1,
		Name:   "top-students",
		Title:  "Top 5 students by average grade",
		Run: func(ctx context.Context, q Querier, _ Args) (any, error) {
			return TopStudents(ctx, q)
		},
	},
	{
		Number: 2,
		Name:   "top-student",
		Title:  "Student with the highest average grade in a subject",
		Params: []Param{ParamSubject},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return TopStudentForSubject(ctx, q, args[ParamSubject])
		},
	},
	{
		Number: 3,
		Name:   "group-averages",
		Title:  "Average grade per group in a subject",
		Params: []Param{ParamSubject},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return GroupAveragesForSubject(ctx, q, args[ParamSubject])
		},
	},
	{
		Number: 4,
		Name:   "overall-average",
		Title:  "Average of all grades",
		Run: func(ctx context.Context, q Querier, _ Args) (any, error) {
			return OverallAverage(ctx, q)
		},
	},
	{
		Number: 5,
		Name:   "teacher-subjects",
		Title:  "Subjects taught by a teacher",
		Params: []Param{ParamTeacher},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return TeacherSubjects(ctx, q, args[ParamTeacher])
		},
	},
	{
		Number: 6,
		Name:   "group-students",
		Title:  "Students in a group",
		Params: []Param{ParamGroup},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return GroupStudents(ctx, q, args[ParamGroup])
		},
	},
	{
		Number: 7,
		Name:   "group-grades",
		Title:  "Grades of a group's students in a subject",
		Params: []Param{ParamGroup, ParamSubject},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return GroupSubjectGrades(ctx, q, args[ParamGroup], args[ParamSubject])
		},
	},
	{
		Number: 8,
		Name:   "teacher-average",
		Title:  "Average grade given by a teacher",
		Params: []Param{ParamTeacher},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return TeacherAverage(ctx, q, args[ParamTeacher])
		},
	},
	{
		Number: 9,
		Name:   "student-subjects",
		Title:  "Subjects a student is graded in",
		Params: []Param{ParamStudent},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return StudentSubjects(ctx, q, args[ParamStudent])
		},
	},
	{
		Number: 10,
		Name:   "student-teacher-subjects",
		Title:  "Subjects a teacher grades a student in",
		Params: []Param{ParamStudent, ParamTeacher},
		Run: func(ctx context.Context, q Querier, args Args) (any, error) {
			return StudentTeacherSubjects(ctx, q, args[ParamStudent], args[ParamTeacher])
		},
	},
}

// Catalog returns the reporting queries in numbered order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	for i, def := range catalog {
		out[i] = def.clone()
	}
	return out
}

func (d Definition) clone() Definition {
	d.Params = slices.Clone(d.Params)
	return d
}

// Lookup finds a query by name or by its number ("7" or "select-7").
func Lookup(name string) (Definition, error) {
	for _, def := range catalog {
		if def.Name == name || fmt.Sprint(def.Number) == name || fmt.Sprintf("select-%d", def.Number) == name {
			return def.clone(), nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownQuery, name)
}
