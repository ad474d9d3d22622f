package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultCommandTimeout = 2 * time.Minute

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath  string
	DatabaseURL string
	LogLevel    string
	JSON        bool
	Quiet       bool
	NoColor     bool
	Timeout     time.Duration
}

type commandDeps struct {
	out     io.Writer
	errOut  io.Writer
	build   BuildInfo
	globals *GlobalOptions
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{
		out:     out,
		errOut:  os.Stderr,
		build:   build,
		globals: globals,
	}

	cmd := &cobra.Command{
		Use:   "gradebook",
		Short: "Academic records store and reports",
		Long: "gradebook keeps groups, students, teachers, subjects and grades in SQLite or\n" +
			"PostgreSQL, fills them with synthetic data and runs the standard reports.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to config.toml")
	flags.StringVar(&globals.DatabaseURL, "database-url", "", "Database URL (sqlite:///path.db or postgres://...)")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&globals.JSON, "json", false, "Print machine-readable JSON")
	flags.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-essential output")
	flags.BoolVar(&globals.NoColor, "no-color", false, "Disable styled table output")
	flags.DurationVar(&globals.Timeout, "timeout", defaultCommandTimeout, "Overall command timeout")

	cmd.AddCommand(newVersionCommand(deps))
	cmd.AddCommand(newInitCommand(deps))
	cmd.AddCommand(newSeedCommand(deps))
	cmd.AddCommand(newQueryCommand(deps))
	cmd.AddCommand(newBrowseCommand(deps))
	cmd.AddCommand(newDoctorCommand(deps))
	cmd.AddCommand(newDebugCommand(deps))
	cmd.InitDefaultCompletionCmd()
	return cmd
}
