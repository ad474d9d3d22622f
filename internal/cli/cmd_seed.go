package cli

import (
	"context"
	"fmt"

	"github.com/amanthanvi/gradebook/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCommand(deps commandDeps) *cobra.Command {
	var (
		seedValue uint64
		groups    int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace all data with a freshly generated dataset",
		Long: "seed deletes every row in every table and generates groups, teachers,\n" +
			"subjects, students and grades. Each stage commits on its own.",
		Example: "  gradebook seed\n" +
			"  gradebook seed --seed 42 --groups 4",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("seed does not accept positional arguments")
			}

			opts := seed.DefaultOptions()
			opts.Seed = seedValue
			if cmd.Flags().Changed("groups") {
				opts.Groups = groups
			}

			return withStore(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				gen, err := seed.New(opts, env.logger)
				if err != nil {
					return err
				}
				summary, err := gen.Run(ctx, env.store)
				if err != nil {
					return err
				}

				if deps.globals.JSON {
					return printJSON(deps.out, summary)
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintln(deps.out, summary.String())
				return err
			})
		},
	}
	cmd.Flags().Uint64Var(&seedValue, "seed", 0, "Random seed for reproducible data (0 picks one)")
	cmd.Flags().IntVar(&groups, "groups", seed.DefaultOptions().Groups, "Number of groups to create")
	return cmd
}
