package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/amanthanvi/gradebook/internal/config"
	logpkg "github.com/amanthanvi/gradebook/internal/log"
	"github.com/amanthanvi/gradebook/internal/storage"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	loadConfigFn = config.Load
	openStoreFn  = storage.Open
)

// runtimeEnv is what a command body sees once config, logging and the store
// are up.
type runtimeEnv struct {
	cfg    config.Config
	report config.LoadReport
	logger *slog.Logger
	store  *storage.Store
}

func loadOptions(globals *GlobalOptions) config.LoadOptions {
	opts := config.LoadOptions{}
	if globals == nil {
		return opts
	}
	if configPath := strings.TrimSpace(globals.ConfigPath); configPath != "" {
		opts.ConfigPath = configPath
	}
	if databaseURL := strings.TrimSpace(globals.DatabaseURL); databaseURL != "" {
		opts.Flags.DatabaseURL = &databaseURL
	}
	if level := strings.TrimSpace(globals.LogLevel); level != "" {
		opts.Flags.LogLevel = &level
	}
	return opts
}

func commandContext(parent context.Context, globals *GlobalOptions) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if globals == nil || globals.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, globals.Timeout)
}

func newLogger(cfg config.Config, errOut io.Writer) (*slog.Logger, io.Closer, error) {
	return logpkg.New(logpkg.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}, errOut)
}

// withStore loads config, builds the logger and opens the store around fn.
// Errors come back already mapped to exit codes.
func withStore(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *runtimeEnv) error) error {
	ctx, cancel := commandContext(cmdCtx, deps.globals)
	defer cancel()

	cfg, report, err := loadConfigFn(loadOptions(deps.globals))
	if err != nil {
		return mapCommandError(fmt.Errorf("load config: %w", err))
	}

	logger, closer, err := newLogger(cfg, deps.errOut)
	if err != nil {
		return mapCommandError(fmt.Errorf("init logging: %w", err))
	}
	defer closer.Close()

	store, err := openStoreFn(ctx, storage.Options{
		URL:                cfg.Database.URL,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		Logger:             logger,
	})
	if err != nil {
		return mapCommandError(fmt.Errorf("open store: %w", err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", "err", err)
		}
	}()

	return mapCommandError(fn(ctx, &runtimeEnv{
		cfg:    cfg,
		report: report,
		logger: logger,
		store:  store,
	}))
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func renderTable(w io.Writer, plain bool, headers []string, rows [][]string) error {
	cell := lipgloss.NewStyle().Padding(0, 1)
	header := cell.Bold(!plain)
	border := lipgloss.RoundedBorder()
	if plain {
		border = lipgloss.NormalBorder()
	}

	t := table.New().
		Border(border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
