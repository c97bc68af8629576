package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"focus-flow/app"
	"focus-flow/config"
	"focus-flow/model"
	"focus-flow/store"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	return NewRootCommand().Run(context.Background(), append([]string{"focusflow"}, args...))
}

func loadSaved(t *testing.T, home string) model.AppState {
	t.Helper()
	kv, _, err := store.Open(config.Storage{Backend: config.BackendFile, Path: filepath.Join(home, "state.json")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer kv.Close()
	state, err := store.Load(kv)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return state
}

func TestCommandsRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOCUSFLOW_HOME", home)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	if err := runCLI(t, "add", "--category", "work", "Write", "report"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := runCLI(t, "toggle", "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := runCLI(t, "dump", "add", "Call", "mom"); err != nil {
		t.Fatalf("dump add: %v", err)
	}
	if err := runCLI(t, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := runCLI(t, "streak"); err != nil {
		t.Fatalf("streak: %v", err)
	}

	state := loadSaved(t, home)
	var found *model.Task
	for _, list := range state.TasksByDate {
		for i := range list {
			found = &list[i]
		}
	}
	if found == nil || found.Text != "Write report" || found.Category != "work" || !found.Completed {
		t.Fatalf("unexpected saved task: %+v", found)
	}
	if state.Streak.Current != 1 {
		t.Fatalf("expected streak 1, got %d", state.Streak.Current)
	}
	if len(state.BrainDump) != 1 || state.BrainDump[0].Text != "Call mom" {
		t.Fatalf("unexpected brain dump: %+v", state.BrainDump)
	}
}

func TestAddRefusesFullDayWithoutForce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOCUSFLOW_HOME", home)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		if err := runCLI(t, "add", text); err != nil {
			t.Fatalf("add %s: %v", text, err)
		}
	}
	if err := runCLI(t, "add", "six"); err == nil {
		t.Fatal("expected the sixth task to be refused")
	}
	if err := runCLI(t, "add", "--force", "six"); err != nil {
		t.Fatalf("forced add: %v", err)
	}
}

func TestAddRequiresText(t *testing.T) {
	t.Setenv("FOCUSFLOW_HOME", t.TempDir())
	if err := runCLI(t, "add"); err == nil {
		t.Fatal("expected usage error")
	}
}

func TestResolveTask(t *testing.T) {
	list := []model.Task{
		{ID: "aaaa1111", Text: "first"},
		{ID: "aaaa2222", Text: "second"},
		{ID: "bbbb3333", Text: "third"},
	}

	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "2", want: "second"},
		{ref: "bbbb3333", want: "third"},
		{ref: "bb", want: "third"},
		{ref: "aaaa", wantErr: true},
		{ref: "4", wantErr: true},
		{ref: "zz", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveTask(list, tt.ref)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("resolveTask(%q): expected error", tt.ref)
			}
			continue
		}
		if err != nil || got.Text != tt.want {
			t.Fatalf("resolveTask(%q) = %q, %v", tt.ref, got.Text, err)
		}
	}

	if _, err := resolveTask(list, "zz"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinStatus(t *testing.T) {
	if got := joinStatus("", " a ", "b"); got != "a; b" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestAddAndToggleOnExplicitDate(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOCUSFLOW_HOME", home)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	if err := runCLI(t, "add", "--date", "2030-01-02", "Plan", "trip"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := runCLI(t, "toggle", "--date", "2030-01-02", "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := runCLI(t, "add", "--date", "someday", "x"); !errors.Is(err, app.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for --date, got %v", err)
	}
	if err := runCLI(t, "add", "--due", "next tuesday", "x"); !errors.Is(err, app.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for --due, got %v", err)
	}

	state := loadSaved(t, home)
	got := state.TasksByDate["2030-01-02"]
	if len(got) != 1 || got[0].Text != "Plan trip" || !got[0].Completed {
		t.Fatalf("unexpected tasks on 2030-01-02: %+v", got)
	}
	total := 0
	for _, list := range state.TasksByDate {
		total += len(list)
	}
	if total != 1 {
		t.Fatalf("expected rejected adds to store nothing, got %d tasks", total)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FOCUSFLOW_HOME", home)
	t.Setenv("GEMINI_API_KEY", "secret")
	path := filepath.Join(home, "config.yaml")

	if err := runCLI(t, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Focus.WorkMinutes != 25 || cfg.Tasks.DailyLimit != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if len(raw) == 0 || strings.Contains(string(raw), "secret") {
		t.Fatalf("config file must not carry the api key:\n%s", raw)
	}

	if err := runCLI(t, "config", "init"); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if err := runCLI(t, "config", "init", "--force"); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}
