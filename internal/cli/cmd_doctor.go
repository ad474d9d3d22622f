package cli

import (
	"context"
	"errors"
	"fmt"

	debugpkg "github.com/amanthanvi/gradebook/internal/debug"
	logpkg "github.com/amanthanvi/gradebook/internal/log"
	"github.com/amanthanvi/gradebook/internal/storage"
	"github.com/spf13/cobra"
)

func newDoctorCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, database connectivity and schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("doctor does not accept positional arguments")
			}

			bundle := collectDiagnostics(cmd.Context(), deps)

			if deps.globals.JSON {
				if err := printJSON(deps.out, map[string]any{"checks": bundle.Checks, "notes": bundle.Notes}); err != nil {
					return mapCommandError(err)
				}
			} else if !deps.globals.Quiet {
				for _, check := range bundle.Checks {
					state := "ok"
					if !check.OK {
						state = "fail"
					}
					if _, err := fmt.Fprintf(deps.out, "%s: %s (%s)\n", check.Name, state, check.Message); err != nil {
						return mapCommandError(err)
					}
				}
				for _, note := range bundle.Notes {
					if _, err := fmt.Fprintf(deps.out, "note: %s\n", note); err != nil {
						return mapCommandError(err)
					}
				}
			}

			if !bundle.Healthy() {
				return asExitError(ExitCodeGeneric, errors.New("doctor: one or more checks failed"))
			}
			return nil
		},
	}
}

func newDebugCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Diagnostics helpers",
		Example: "  gradebook debug bundle --output ./gradebook-debug.json",
	}
	cmd.AddCommand(newDebugBundleCommand(deps))
	return cmd
}

func newDebugBundleCommand(deps commandDeps) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect sanitized diagnostics into a JSON bundle",
		Example: "  gradebook debug bundle --output ./gradebook-debug.json\n" +
			"  gradebook --json debug bundle --output ./gradebook-debug.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("debug bundle does not accept positional arguments")
			}
			if outputPath == "" {
				return usageErrorf("debug bundle requires --output")
			}

			bundle := collectDiagnostics(cmd.Context(), deps)
			if err := debugpkg.WriteBundle(outputPath, bundle); err != nil {
				return mapCommandError(err)
			}
			if deps.globals.JSON {
				return mapCommandError(printJSON(deps.out, map[string]any{"output": outputPath, "healthy": bundle.Healthy()}))
			}
			if deps.globals.Quiet {
				return nil
			}
			_, err := fmt.Fprintf(deps.out, "debug bundle written: %s\n", outputPath)
			return mapCommandError(err)
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output JSON bundle path")
	return cmd
}

// collectDiagnostics never creates the database file or its tables.
func collectDiagnostics(cmdCtx context.Context, deps commandDeps) debugpkg.Bundle {
	ctx, cancel := commandContext(cmdCtx, deps.globals)
	defer cancel()

	bundle := debugpkg.NewBundle()
	bundle.Version = map[string]any{
		"version":    deps.build.Version,
		"commit":     deps.build.Commit,
		"build_time": deps.build.BuildTime,
	}

	cfg, report, err := loadConfigFn(loadOptions(deps.globals))
	if err != nil {
		bundle.AddCheck("config", err, "")
		return bundle
	}
	bundle.Config = &debugpkg.ConfigInfo{
		File:       report.ConfigFile,
		DotEnvFile: report.DotEnvFile,
		Sources:    report.Sources,
	}
	source := "built-in defaults"
	if report.ConfigFile != "" {
		source = report.ConfigFile
	}
	bundle.AddCheck("config", nil, source)

	store, err := openStoreFn(ctx, storage.Options{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		SkipSchema:   true,
	})
	if err != nil {
		bundle.Database = &debugpkg.DatabaseInfo{URL: storage.RedactURL(cfg.Database.URL)}
		msg := logpkg.RedactString(err.Error())
		if errors.Is(err, storage.ErrDatabaseMissing) {
			msg += " (run `gradebook init`)"
		}
		bundle.AddCheck("database", errors.New(msg), "")
		return bundle
	}
	defer store.Close()

	bundle.InspectStore(ctx, store)
	return bundle
}
