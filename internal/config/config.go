// Package config loads foldersync settings.
//
// Precedence, highest first: command-line flags, FOLDERSYNC_* environment
// variables, the project config file, defaults. The project config file is
// .foldersync/config.yaml in the working directory or the nearest parent
// that has one. Relative db and repo paths in that file are resolved
// against the directory holding .foldersync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DirName is the project directory searched for config.yaml.
const DirName = ".foldersync"

// Config holds resolved settings.
type Config struct {
	// ConfigFile is the config file that was read, or "" when none was found.
	ConfigFile string

	DB       string
	Repo     string
	Branch   string
	Workbook string
	Actor    string

	Log   LogConfig
	Watch WatchConfig
}

// LogConfig controls the slog handler built by NewLogger.
type LogConfig struct {
	Level      string // debug | info | warn | error
	Format     string // text | json
	File       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce time.Duration
}

// Flag names bound by Load. Commands define the ones they accept.
var flagKeys = map[string]string{
	"db":        "db",
	"repo":      "repo",
	"branch":    "branch",
	"workbook":  "workbook",
	"actor":     "actor",
	"log-level": "log.level",
	"log-file":  "log.file",
	"debounce":  "watch.debounce",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", filepath.Join(DirName, "foldersync.db"))
	v.SetDefault("repo", ".")
	v.SetDefault("branch", "main")
	v.SetDefault("workbook", "")
	v.SetDefault("actor", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max-size-mb", 10)
	v.SetDefault("log.max-backups", 3)
	v.SetDefault("watch.debounce", "500ms")
}

// Load resolves the configuration starting the config file search at dir.
// flags may be nil; otherwise every changed flag listed in flagKeys
// overrides the other sources.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("FOLDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	root := ""
	if path := FindConfigFile(dir); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		root = filepath.Dir(filepath.Dir(path))
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		ConfigFile: v.ConfigFileUsed(),
		DB:         v.GetString("db"),
		Repo:       v.GetString("repo"),
		Branch:     v.GetString("branch"),
		Workbook:   v.GetString("workbook"),
		Actor:      v.GetString("actor"),
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max-size-mb"),
			MaxBackups: v.GetInt("log.max-backups"),
		},
		Watch: WatchConfig{
			Debounce: v.GetDuration("watch.debounce"),
		},
	}

	if root != "" {
		cfg.DB = resolve(root, cfg.DB)
		cfg.Repo = resolve(root, cfg.Repo)
		cfg.Log.File = resolve(root, cfg.Log.File)
	}
	if cfg.Actor == "" {
		cfg.Actor = os.Getenv("USER")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by type conversion.
func (c *Config) Validate() error {
	var errs []error
	if c.Branch == "" {
		errs = append(errs, errors.New("branch must not be empty"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce %s: must not be negative", c.Watch.Debounce))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FindConfigFile walks up from dir looking for .foldersync/config.yaml.
// Returns "" when there is none.
func FindConfigFile(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for d := abs; ; d = filepath.Dir(d) {
		path := filepath.Join(d, DirName, "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		if d == filepath.Dir(d) {
			return ""
		}
	}
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
