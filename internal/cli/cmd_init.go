package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amanthanvi/gradebook/internal/config"
	"github.com/amanthanvi/gradebook/internal/storage"
	"github.com/spf13/cobra"
)

const defaultInitConfig = `[database]
# sqlite:///relative.db, sqlite:////absolute.db or postgres://user@host/db
url = ""
max_open_conns = 8
slow_query_threshold = "200ms"

[logging]
level = "info"
format = "text"
file = ""
max_size_mb = 10
max_files = 5
`

func newInitCommand(deps commandDeps) *cobra.Command {
	var (
		writeConfig bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema in the configured database",
		Example: "  gradebook init\n" +
			"  gradebook --database-url sqlite:///school.db init --write-config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("init does not accept positional arguments")
			}

			configPath := ""
			if writeConfig {
				path, err := config.ResolvePath(loadOptions(deps.globals))
				if err != nil {
					return mapCommandError(err)
				}
				written, err := writeDefaultConfig(path, force)
				if err != nil {
					return mapCommandError(err)
				}
				if written {
					configPath = path
				}
			}

			return withStore(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				missing, err := storage.MissingTables(ctx, env.store.DB(), env.store.Dialect())
				if err != nil {
					return err
				}
				if len(missing) > 0 {
					return fmt.Errorf("init: tables still missing after schema creation: %s", strings.Join(missing, ", "))
				}
				env.logger.Info("schema ready", "dialect", env.store.Dialect(), "tables", len(storage.Tables()))

				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{
						"initialized":  true,
						"database_url": env.store.URL(),
						"dialect":      env.store.Dialect(),
						"tables":       storage.Tables(),
						"config_path":  configPath,
					})
				}
				if deps.globals.Quiet {
					return nil
				}
				if _, err := fmt.Fprintf(deps.out, "schema ready: %s (%s)\n", env.store.URL(), env.store.Dialect()); err != nil {
					return err
				}
				if configPath != "" {
					if _, err := fmt.Fprintf(deps.out, "wrote config: %s\n", configPath); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Also write a default config.toml when none exists")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config.toml with --write-config")
	return cmd
}

// writeDefaultConfig reports whether it wrote the file. An existing file is
// left alone unless overwrite is set.
func writeDefaultConfig(path string, overwrite bool) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("%w: config path is required", config.ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("init: create config directory: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("init: stat config path: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultInitConfig), 0o600); err != nil {
		return false, fmt.Errorf("init: write config: %w", err)
	}
	return true, nil
}
