package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOCUSFLOW_HOME", home)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load(filepath.Join(home, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "state.json"), cfg.Storage.Path)
	assert.Equal(t, 25, cfg.Focus.WorkMinutes)
	assert.Equal(t, 5, cfg.Focus.BreakMinutes)
	assert.Equal(t, 5, cfg.Focus.MinWorkMinutes)
	assert.Equal(t, 90, cfg.Focus.MaxWorkMinutes)
	assert.Equal(t, 5, cfg.Tasks.DailyLimit)
	assert.Equal(t, "gemini-2.5-flash", cfg.Assistant.Model)
	assert.Equal(t, 20*time.Second, cfg.Assistant.Timeout)
	assert.Empty(t, cfg.Assistant.APIKey)
	assert.Equal(t, filepath.Join(home, "focusflow.log"), cfg.Log.File)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOCUSFLOW_HOME", home)
	path := filepath.Join(home, "config.yaml")
	content := `
storage:
  backend: sqlite
focus:
  work_minutes: 50
  break_minutes: 10
tasks:
  daily_limit: 3
assistant:
  api_key: from-file
  timeout: 5s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "focusflow.db"), cfg.Storage.Path)
	assert.Equal(t, 50, cfg.Focus.WorkMinutes)
	assert.Equal(t, 10, cfg.Focus.BreakMinutes)
	assert.Equal(t, 3, cfg.Tasks.DailyLimit)
	assert.Equal(t, "from-file", cfg.Assistant.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Assistant.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("focus: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestAPIKeyFallsBackToEnv(t *testing.T) {
	t.Setenv("FOCUSFLOW_HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	assert.Equal(t, "google-key", Default().Assistant.APIKey)

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	assert.Equal(t, "gemini-key", Default().Assistant.APIKey)
}

func TestValidate(t *testing.T) {
	t.Setenv("FOCUSFLOW_HOME", t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"inverted bounds", func(c *Config) { c.Focus.MinWorkMinutes = 60; c.Focus.MaxWorkMinutes = 30 }},
		{"negative limit", func(c *Config) { c.Tasks.DailyLimit = -1 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("FOCUSFLOW_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Focus.WorkMinutes = 45

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestHomePath(t *testing.T) {
	t.Setenv("FOCUSFLOW_HOME", "/tmp/ff-test")
	assert.Equal(t, "/tmp/ff-test", HomePath())
	assert.Equal(t, filepath.Join("/tmp/ff-test", "config.yaml"), ConfigPath())
	assert.Equal(t, filepath.Join("/tmp/ff-test", ".env"), DotenvPath())
}

func TestLoadDotenv(t *testing.T) {
	content := `# assistant
GEMINI_API_KEY="quoted-key"
export FF_SINGLE='single'
FF_SPACED = spaced
not a pair
`
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("GEMINI_API_KEY")
	t.Setenv("FF_SINGLE", "")
	os.Unsetenv("FF_SINGLE")
	t.Setenv("FF_SPACED", "already-set")

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "quoted-key", os.Getenv("GEMINI_API_KEY"))
	assert.Equal(t, "single", os.Getenv("FF_SINGLE"))
	assert.Equal(t, "already-set", os.Getenv("FF_SPACED"))
}

func TestLoadDotenvMissingFile(t *testing.T) {
	assert.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestParseDotenvLine(t *testing.T) {
	tests := []struct {
		line       string
		key, value string
		ok         bool
	}{
		{line: "A=1", key: "A", value: "1", ok: true},
		{line: "export B = two", key: "B", value: "two", ok: true},
		{line: `C="keep # this"`, key: "C", value: "keep # this", ok: true},
		{line: "D=bare # note", key: "D", value: "bare", ok: true},
		{line: "E='x\"", key: "E", value: "'x\"", ok: true},
		{line: "# comment"},
		{line: "=nokey"},
		{line: "no pair"},
	}
	for _, tt := range tests {
		key, value, ok := parseDotenvLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.key, key, tt.line)
		assert.Equal(t, tt.value, value, tt.line)
	}
}
