package cli

import (
	"context"
	"os"

	"github.com/amanthanvi/gradebook/internal/query"
	"github.com/amanthanvi/gradebook/internal/storage"
	"github.com/amanthanvi/gradebook/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var isTerminalFn = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func newBrowseCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Pick and run reports interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("browse does not accept positional arguments")
			}
			if deps.globals.JSON || !isTerminalFn() {
				return usageErrorf("browse needs an interactive terminal; use `gradebook query` instead")
			}

			// The browser stays open longer than any single command timeout.
			deps.globals.Timeout = 0
			return withStore(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				return tui.Run(ctx, tui.Options{
					Client:  storeClient{store: env.store},
					Reports: catalogReports(),
					Tables:  storage.Tables(),
					IsTTY:   isTerminalFn,
				})
			})
		},
	}
}

func catalogReports() []tui.Report {
	defs := query.Catalog()
	reports := make([]tui.Report, 0, len(defs))
	for _, def := range defs {
		params := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			params = append(params, string(p))
		}
		reports = append(reports, tui.Report{
			Number: def.Number,
			Name:   def.Name,
			Title:  def.Title,
			Params: params,
		})
	}
	return reports
}

// storeClient serves the report browser straight from the store.
type storeClient struct {
	store *storage.Store
}

func (c storeClient) Counts(ctx context.Context) (map[string]int64, error) {
	return c.store.Counts(ctx)
}

func (c storeClient) RunReport(ctx context.Context, name string, args map[string]int64) (tui.Table, error) {
	def, err := query.Lookup(name)
	if err != nil {
		return tui.Table{}, err
	}
	queryArgs := make(query.Args, len(args))
	for k, v := range args {
		queryArgs[query.Param(k)] = v
	}
	result, err := executeReport(ctx, c.store, def, queryArgs)
	if err != nil {
		return tui.Table{}, err
	}
	return tabulate(result), nil
}
