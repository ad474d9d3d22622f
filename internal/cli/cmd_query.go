package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/amanthanvi/gradebook/internal/query"
	"github.com/amanthanvi/gradebook/internal/storage"
	"github.com/amanthanvi/gradebook/internal/tui"
	"github.com/spf13/cobra"
)

const (
	queryNameList    = "list"
	queryNameSummary = "summary"
)

func newQueryCommand(deps commandDeps) *cobra.Command {
	ids := map[query.Param]*int64{
		query.ParamSubject: new(int64),
		query.ParamGroup:   new(int64),
		query.ParamTeacher: new(int64),
		query.ParamStudent: new(int64),
	}

	cmd := &cobra.Command{
		Use:   "query <name>",
		Short: "Run a report",
		Long: "query runs one of the numbered reports by name or number (\"7\" or\n" +
			"\"select-7\"). \"list\" prints the catalog and \"summary\" prints row counts.",
		Example: "  gradebook query list\n" +
			"  gradebook query top-students\n" +
			"  gradebook query group-grades --group 1 --subject 3\n" +
			"  gradebook --json query select-8 --teacher 2",
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) != 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			names := []string{queryNameList, queryNameSummary}
			for _, def := range query.Catalog() {
				names = append(names, def.Name+"\t"+def.Title)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("query requires exactly one report name (try `gradebook query list`)")
			}

			switch name := strings.TrimSpace(args[0]); name {
			case queryNameList:
				return printCatalog(deps)
			case queryNameSummary:
				return withStore(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
					counts, err := env.store.Counts(ctx)
					if err != nil {
						return err
					}
					return printCounts(deps, counts)
				})
			default:
				def, err := query.Lookup(name)
				if err != nil {
					return mapCommandError(err)
				}
				queryArgs := query.Args{}
				for param, value := range ids {
					if cmd.Flags().Changed(string(param)) {
						queryArgs[param] = *value
					}
				}
				if missing := def.Missing(queryArgs); len(missing) > 0 {
					flags := make([]string, 0, len(missing))
					for _, p := range missing {
						flags = append(flags, "--"+string(p))
					}
					return usageErrorf("query %s requires %s", def.Name, strings.Join(flags, ", "))
				}
				return runQuery(cmd.Context(), deps, def, queryArgs)
			}
		},
	}

	cmd.Flags().Int64Var(ids[query.ParamSubject], string(query.ParamSubject), 0, "Subject id")
	cmd.Flags().Int64Var(ids[query.ParamGroup], string(query.ParamGroup), 0, "Group id")
	cmd.Flags().Int64Var(ids[query.ParamTeacher], string(query.ParamTeacher), 0, "Teacher id")
	cmd.Flags().Int64Var(ids[query.ParamStudent], string(query.ParamStudent), 0, "Student id")
	return cmd
}

func runQuery(cmdCtx context.Context, deps commandDeps, def query.Definition, args query.Args) error {
	return withStore(cmdCtx, deps, func(ctx context.Context, env *runtimeEnv) error {
		result, err := executeReport(ctx, env.store, def, args)
		if err != nil {
			return err
		}
		env.logger.Debug("query executed", "name", def.Name, "number", def.Number)

		if deps.globals.JSON {
			if err := printJSON(deps.out, result); err != nil {
				return err
			}
		} else if !deps.globals.Quiet {
			if err := printResult(deps, result); err != nil {
				return err
			}
		}
		return nil
	})
}

func executeReport(ctx context.Context, store *storage.Store, def query.Definition, args query.Args) (any, error) {
	var result any
	err := store.WithSession(ctx, func(sess *storage.Session) error {
		var err error
		result, err = def.Execute(ctx, sess, args)
		return err
	})
	return result, err
}


func printResult(deps commandDeps, result any) error {
	t := tabulate(result)
	if len(t.Rows) == 0 && t.Empty != "" {
		_, err := fmt.Fprintln(deps.out, t.Empty)
		return err
	}
	return renderTable(deps.out, deps.globals.NoColor, t.Headers, t.Rows)
}

// tabulate turns a catalog query result into table rows. Absent optional
// results have no rows and set Empty.
func tabulate(result any) tui.Table {
	switch v := result.(type) {
	case []query.StudentAverage:
		t := tui.Table{Headers: []string{"ID", "Student", "Average"}}
		for _, r := range v {
			t.Rows = append(t.Rows, []string{formatID(r.StudentID), r.FullName, formatAverage(r.AvgGrade)})
		}
		return t
	case query.Option[query.StudentAverage]:
		t := tui.Table{Headers: []string{"ID", "Student", "Average"}, Empty: "no result"}
		if r, ok := v.Get(); ok {
			t.Rows = [][]string{{formatID(r.StudentID), r.FullName, formatAverage(r.AvgGrade)}}
		}
		return t
	case []query.GroupAverage:
		t := tui.Table{Headers: []string{"ID", "Group", "Average"}}
		for _, r := range v {
			t.Rows = append(t.Rows, []string{formatID(r.GroupID), r.Name, formatAverage(r.AvgGrade)})
		}
		return t
	case query.Option[float64]:
		t := tui.Table{Headers: []string{"Average"}, Empty: "no result"}
		if avg, ok := v.Get(); ok {
			t.Rows = [][]string{{formatAverage(avg)}}
		}
		return t
	case []query.SubjectRef:
		t := tui.Table{Headers: []string{"ID", "Subject"}}
		for _, r := range v {
			t.Rows = append(t.Rows, []string{formatID(r.ID), r.Name})
		}
		return t
	case []query.StudentRef:
		t := tui.Table{Headers: []string{"ID", "Student"}}
		for _, r := range v {
			t.Rows = append(t.Rows, []string{formatID(r.ID), r.FullName})
		}
		return t
	case []query.StudentGrade:
		t := tui.Table{Headers: []string{"ID", "Student", "Grade"}}
		for _, r := range v {
			t.Rows = append(t.Rows, []string{formatID(r.StudentID), r.FullName, strconv.Itoa(r.Value)})
		}
		return t
	default:
		return tui.Table{Headers: []string{"Result"}, Rows: [][]string{{fmt.Sprint(v)}}}
	}
}

func printCatalog(deps commandDeps) error {
	type entry struct {
		Number int      `json:"number"`
		Name   string   `json:"name"`
		Title  string   `json:"title"`
		Params []string `json:"params"`
	}
	entries := []entry{}
	for _, def := range query.Catalog() {
		params := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			params = append(params, string(p))
		}
		entries = append(entries, entry{Number: def.Number, Name: def.Name, Title: def.Title, Params: params})
	}

	if deps.globals.JSON {
		return mapCommandError(printJSON(deps.out, entries))
	}
	if deps.globals.Quiet {
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{fmt.Sprint(e.Number), e.Name, e.Title, strings.Join(e.Params, ", ")})
	}
	return mapCommandError(renderTable(deps.out, deps.globals.NoColor, []string{"#", "Name", "Report", "Params"}, rows))
}

func printCounts(deps commandDeps, counts map[string]int64) error {
	if deps.globals.JSON {
		return printJSON(deps.out, counts)
	}
	if deps.globals.Quiet {
		return nil
	}
	rows := make([][]string, 0, len(counts))
	for _, table := range storage.Tables() {
		rows = append(rows, []string{table, fmt.Sprint(counts[table])})
	}
	return renderTable(deps.out, deps.globals.NoColor, []string{"Table", "Rows"}, rows)
}
