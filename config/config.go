// Package config loads the focus-flow YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	Storage   Storage   `yaml:"storage"`
	Focus     Focus     `yaml:"focus"`
	Tasks     Tasks     `yaml:"tasks"`
	Assistant Assistant `yaml:"assistant"`
	Log       Log       `yaml:"log"`
}

type Storage struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type Focus struct {
	WorkMinutes    int `yaml:"work_minutes"`
	BreakMinutes   int `yaml:"break_minutes"`
	MinWorkMinutes int `yaml:"min_work_minutes"`
	MaxWorkMinutes int `yaml:"max_work_minutes"`
}

type Tasks struct {
	// DailyLimit is the soft number of tasks per day before a confirmation is asked.
	DailyLimit int `yaml:"daily_limit"`
}

type Assistant struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML config file and applies defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Storage.Path == "" {
		name := "state.json"
		if cfg.Storage.Backend == BackendSQLite {
			name = "focusflow.db"
		}
		cfg.Storage.Path = filepath.Join(HomePath(), name)
	}
	if cfg.Focus.WorkMinutes == 0 {
		cfg.Focus.WorkMinutes = 25
	}
	if cfg.Focus.BreakMinutes == 0 {
		cfg.Focus.BreakMinutes = 5
	}
	if cfg.Focus.MinWorkMinutes == 0 {
		cfg.Focus.MinWorkMinutes = 5
	}
	if cfg.Focus.MaxWorkMinutes == 0 {
		cfg.Focus.MaxWorkMinutes = 90
	}
	if cfg.Tasks.DailyLimit == 0 {
		cfg.Tasks.DailyLimit = 5
	}
	if cfg.Assistant.APIKey == "" {
		cfg.Assistant.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = "gemini-2.5-flash"
	}
	if cfg.Assistant.Timeout == 0 {
		cfg.Assistant.Timeout = 20 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(HomePath(), "focusflow.log")
	}
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	if c.Focus.WorkMinutes < 0 || c.Focus.BreakMinutes < 0 {
		errs = append(errs, errors.New("focus: durations must be positive"))
	}
	if c.Focus.MinWorkMinutes > c.Focus.MaxWorkMinutes {
		errs = append(errs, fmt.Errorf("focus: min_work_minutes %d exceeds max_work_minutes %d",
			c.Focus.MinWorkMinutes, c.Focus.MaxWorkMinutes))
	}
	if c.Tasks.DailyLimit < 0 {
		errs = append(errs, errors.New("tasks.daily_limit must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", name)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
