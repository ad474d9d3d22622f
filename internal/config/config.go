package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultMaxOpenConns       = 8
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultLogLevel           = "info"
	defaultLogFormat          = "text"
	defaultLogMaxSizeMB       = 10
	defaultLogMaxFiles        = 5
	defaultDotEnvFile         = ".env"
	defaultDatabaseFile       = "gradebook.db"
)

var ErrInvalidConfig = errors.New("invalid config")

// Sources a setting can come from, lowest precedence first.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceDotEnv  = "dotenv"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	URL                string        `toml:"url" validate:"required"`
	MaxOpenConns       int           `toml:"max_open_conns" validate:"gte=0,lte=256"`
	SlowQueryThreshold time.Duration `toml:"slow_query_threshold" validate:"gte=0"`
}

type LoggingConfig struct {
	Level     string `toml:"level" validate:"oneof=debug info warn error"`
	Format    string `toml:"format" validate:"oneof=text json"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb" validate:"gte=1"`
	MaxFiles  int    `toml:"max_files" validate:"gte=0"`
}

type LoadOptions struct {
	ConfigPath string
	// DotEnvPath defaults to .env in the working directory. A missing file
	// is not an error.
	DotEnvPath string
	Env        map[string]string
	Flags      FlagOverrides
}

type FlagOverrides struct {
	DatabaseURL *string
	LogLevel    *string
}

// LoadReport records where the effective settings came from.
type LoadReport struct {
	ConfigFile string
	DotEnvFile string
	Sources    map[string]string
}

func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			URL:                "",
			MaxOpenConns:       defaultMaxOpenConns,
			SlowQueryThreshold: defaultSlowQueryThreshold,
		},
		Logging: LoggingConfig{
			Level:     defaultLogLevel,
			Format:    defaultLogFormat,
			File:      "",
			MaxSizeMB: defaultLogMaxSizeMB,
			MaxFiles:  defaultLogMaxFiles,
		},
	}
}

// Load resolves the configuration. Precedence, highest first: flags, process
// environment, .env file, TOML file, defaults.
func Load(opts LoadOptions) (Config, LoadReport, error) {
	cfg := DefaultConfig()
	report := LoadReport{Sources: map[string]string{}}

	configPath, err := resolveConfigPath(opts)
	if err != nil {
		return Config{}, report, fmt.Errorf("resolve config path: %w", err)
	}
	loaded, err := loadAndApplyFile(configPath, &cfg, &report)
	if err != nil {
		return Config{}, report, err
	}
	if loaded {
		report.ConfigFile = configPath
	}

	dotEnvPath := opts.DotEnvPath
	if dotEnvPath == "" {
		dotEnvPath = defaultDotEnvFile
	}
	dotEnv, err := readDotEnv(dotEnvPath)
	if err != nil {
		return Config{}, report, err
	}
	if dotEnv != nil {
		report.DotEnvFile = dotEnvPath
		lookup := func(key string) (string, bool) {
			value, ok := dotEnv[key]
			return value, ok
		}
		if err := applyEnvOverrides(&cfg, lookup, SourceDotEnv, &report); err != nil {
			return Config{}, report, err
		}
	}

	lookup := func(key string) (string, bool) { return lookupEnv(opts, key) }
	if err := applyEnvOverrides(&cfg, lookup, SourceEnv, &report); err != nil {
		return Config{}, report, err
	}
	applyFlagOverrides(&cfg, opts.Flags, &report)

	if cfg.Database.URL == "" {
		home, err := DataHome(opts)
		if err != nil {
			return Config{}, report, fmt.Errorf("resolve data home: %w", err)
		}
		cfg.Database.URL = "sqlite:///" + filepath.Join(home, defaultDatabaseFile)
		report.Sources["database.url"] = SourceDefault
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))

	if err := validate(cfg); err != nil {
		return Config{}, report, err
	}
	return cfg, report, nil
}

type rawConfig struct {
	Database *rawDatabase `toml:"database"`
	Logging  *rawLogging  `toml:"logging"`
}

type rawDatabase struct {
	URL                *string `toml:"url"`
	MaxOpenConns       *int    `toml:"max_open_conns"`
	SlowQueryThreshold *string `toml:"slow_query_threshold"`
}

type rawLogging struct {
	Level     *string `toml:"level"`
	Format    *string `toml:"format"`
	File      *string `toml:"file"`
	MaxSizeMB *int    `toml:"max_size_mb"`
	MaxFiles  *int    `toml:"max_files"`
}

func loadAndApplyFile(path string, cfg *Config, report *LoadReport) (bool, error) {
	if path == "" {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false, fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}

	if err := applyRawConfig(cfg, raw, report); err != nil {
		return false, err
	}
	return true, nil
}

func applyRawConfig(cfg *Config, raw rawConfig, report *LoadReport) error {
	if raw.Database != nil {
		setString("database.url", raw.Database.URL, &cfg.Database.URL, SourceFile, report)
		setInt("database.max_open_conns", raw.Database.MaxOpenConns, &cfg.Database.MaxOpenConns, SourceFile, report)
		if err := setDuration("database.slow_query_threshold", raw.Database.SlowQueryThreshold, &cfg.Database.SlowQueryThreshold, SourceFile, report); err != nil {
			return err
		}
	}

	if raw.Logging != nil {
		setString("logging.level", raw.Logging.Level, &cfg.Logging.Level, SourceFile, report)
		setString("logging.format", raw.Logging.Format, &cfg.Logging.Format, SourceFile, report)
		setString("logging.file", raw.Logging.File, &cfg.Logging.File, SourceFile, report)
		setInt("logging.max_size_mb", raw.Logging.MaxSizeMB, &cfg.Logging.MaxSizeMB, SourceFile, report)
		setInt("logging.max_files", raw.Logging.MaxFiles, &cfg.Logging.MaxFiles, SourceFile, report)
	}
	return nil
}

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %q: %v", ErrInvalidConfig, path, err)
	}
	return values, nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool), source string, report *LoadReport) error {
	// DATABASE_URL is the conventional name; the prefixed variable wins.
	for _, key := range []string{"DATABASE_URL", "GRADEBOOK_DATABASE_URL"} {
		if value, ok := lookup(key); ok {
			setString("database.url", &value, &cfg.Database.URL, source, report)
		}
	}
	if value, ok := lookup("GRADEBOOK_DATABASE_MAX_OPEN_CONNS"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse GRADEBOOK_DATABASE_MAX_OPEN_CONNS: %v", ErrInvalidConfig, err)
		}
		setInt("database.max_open_conns", &parsed, &cfg.Database.MaxOpenConns, source, report)
	}
	if value, ok := lookup("GRADEBOOK_DATABASE_SLOW_QUERY_THRESHOLD"); ok {
		if err := setDuration("database.slow_query_threshold", &value, &cfg.Database.SlowQueryThreshold, source, report); err != nil {
			return err
		}
	}

	if value, ok := lookup("GRADEBOOK_LOG_LEVEL"); ok {
		setString("logging.level", &value, &cfg.Logging.Level, source, report)
	}
	if value, ok := lookup("GRADEBOOK_LOG_FORMAT"); ok {
		setString("logging.format", &value, &cfg.Logging.Format, source, report)
	}
	if value, ok := lookup("GRADEBOOK_LOG_FILE"); ok {
		setString("logging.file", &value, &cfg.Logging.File, source, report)
	}
	if value, ok := lookup("GRADEBOOK_LOG_MAX_SIZE_MB"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse GRADEBOOK_LOG_MAX_SIZE_MB: %v", ErrInvalidConfig, err)
		}
		setInt("logging.max_size_mb", &parsed, &cfg.Logging.MaxSizeMB, source, report)
	}
	if value, ok := lookup("GRADEBOOK_LOG_MAX_FILES"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: parse GRADEBOOK_LOG_MAX_FILES: %v", ErrInvalidConfig, err)
		}
		setInt("logging.max_files", &parsed, &cfg.Logging.MaxFiles, source, report)
	}
	return nil
}

func applyFlagOverrides(cfg *Config, flags FlagOverrides, report *LoadReport) {
	setString("database.url", flags.DatabaseURL, &cfg.Database.URL, SourceFlag, report)
	setString("logging.level", flags.LogLevel, &cfg.Logging.Level, SourceFlag, report)
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func validate(cfg Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s fails %q (got %v)", ErrInvalidConfig, fieldName(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// fieldName maps a validator namespace such as Config.Logging.MaxSizeMB to
// the TOML key logging.max_size_mb.
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = snakeCase(part)
	}
	return strings.Join(parts, ".")
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func setDuration(field string, raw *string, target *time.Duration, source string, report *LoadReport) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, field, err)
	}
	*target = d
	report.Sources[field] = source
	return nil
}

func setString(field string, raw *string, target *string, source string, report *LoadReport) {
	if raw == nil {
		return
	}
	*target = *raw
	report.Sources[field] = source
}

func setInt(field string, raw *int, target *int, source string, report *LoadReport) {
	if raw == nil {
		return
	}
	*target = *raw
	report.Sources[field] = source
}

// ResolvePath reports the config file Load reads for opts, whether or not it
// exists yet.
func ResolvePath(opts LoadOptions) (string, error) {
	return resolveConfigPath(opts)
}

func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	if value, ok := lookupEnv(opts, "GRADEBOOK_CONFIG_PATH"); ok {
		return value, nil
	}
	return defaultConfigPath(opts)
}

func lookupEnv(opts LoadOptions, key string) (string, bool) {
	if opts.Env != nil {
		if value, ok := opts.Env[key]; ok {
			return value, true
		}
	}
	return os.LookupEnv(key)
}

// DataHome is where the default SQLite database lives: GRADEBOOK_HOME when
// set, otherwise the platform's per-user data directory.
func DataHome(opts LoadOptions) (string, error) {
	if value, ok := lookupEnv(opts, "GRADEBOOK_HOME"); ok && value != "" {
		return value, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Gradebook"), nil
	}

	dataHome := filepath.Join(home, ".local", "share")
	if xdgDataHome, ok := lookupEnv(opts, "XDG_DATA_HOME"); ok && xdgDataHome != "" {
		dataHome = xdgDataHome
	}
	return filepath.Join(dataHome, "gradebook"), nil
}

func defaultConfigPath(opts LoadOptions) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Gradebook", "config.toml"), nil
	}

	configHome := filepath.Join(home, ".config")
	if xdgConfigHome, ok := lookupEnv(opts, "XDG_CONFIG_HOME"); ok && xdgConfigHome != "" {
		configHome = xdgConfigHome
	}
	return filepath.Join(configHome, "gradebook", "config.toml"), nil
}
