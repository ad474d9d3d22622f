package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/amanthanvi/gradebook/internal/storage"
)

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type ConfigInfo struct {
	File       string            `json:"file,omitempty"`
	DotEnvFile string            `json:"dotenv_file,omitempty"`
	Sources    map[string]string `json:"sources,omitempty"`
}

type DatabaseInfo struct {
	URL           string           `json:"url"`
	Dialect       string           `json:"dialect"`
	Path          string           `json:"path,omitempty"`
	MissingTables []string         `json:"missing_tables,omitempty"`
	Counts        map[string]int64 `json:"counts,omitempty"`
}

type Bundle struct {
	GeneratedAt string         `json:"generated_at"`
	GOOS        string         `json:"goos"`
	GOARCH      string         `json:"goarch"`
	GoVersion   string         `json:"go_version"`
	Version     map[string]any `json:"version,omitempty"`
	Config      *ConfigInfo    `json:"config,omitempty"`
	Database    *DatabaseInfo  `json:"database,omitempty"`
	Checks      []Check        `json:"checks,omitempty"`
	Notes       []string       `json:"notes,omitempty"`
}

func NewBundle() Bundle {
	return Bundle{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		GoVersion:   runtime.Version(),
	}
}

// AddCheck records a passing check with okMessage, or a failing one carrying
// err's text.
func (b *Bundle) AddCheck(name string, err error, okMessage string) {
	if err != nil {
		b.Checks = append(b.Checks, Check{Name: name, OK: false, Message: err.Error()})
		return
	}
	b.Checks = append(b.Checks, Check{Name: name, OK: true, Message: okMessage})
}

func (b Bundle) Healthy() bool {
	for _, check := range b.Checks {
		if !check.OK {
			return false
		}
	}
	return true
}

// InspectStore fills b.Database from store and records the connectivity,
// schema and row count checks. It never modifies the database.
func (b *Bundle) InspectStore(ctx context.Context, store *storage.Store) {
	info := &DatabaseInfo{
		URL:     store.URL(),
		Dialect: string(store.Dialect()),
		Path:    store.Path(),
	}
	b.Database = info

	if err := store.DB().PingContext(ctx); err != nil {
		b.AddCheck("database", err, "")
		return
	}
	b.AddCheck("database", nil, fmt.Sprintf("reachable (%s)", store.Dialect()))

	missing, err := storage.MissingTables(ctx, store.DB(), store.Dialect())
	switch {
	case err != nil:
		b.AddCheck("schema", err, "")
		return
	case len(missing) > 0:
		info.MissingTables = missing
		b.AddCheck("schema", fmt.Errorf("missing tables %v (run `gradebook init`)", missing), "")
		return
	default:
		b.AddCheck("schema", nil, fmt.Sprintf("%d tables present", len(storage.Tables())))
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		b.AddCheck("counts", err, "")
		return
	}
	info.Counts = counts
	if counts["grades"] == 0 {
		b.Notes = append(b.Notes, "no grades recorded; reports will be empty (run `gradebook seed`)")
	}
}

func WriteBundle(outputPath string, bundle Bundle) error {
	if outputPath == "" {
		return fmt.Errorf("write debug bundle: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o700); err != nil {
		return fmt.Errorf("write debug bundle: create output directory: %w", err)
	}

	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("write debug bundle: marshal json: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		return fmt.Errorf("write debug bundle: %w", err)
	}
	return nil
}
