// Package store persists the application state in a small key-value store.
// Each top-level key (tasks by date, brain dump, streak) is stored as its own
// JSON value so a damaged key never takes the others down with it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"focus-flow/config"
	"focus-flow/model"
)

// ErrCorrupt marks a persisted value that could not be decoded.
var ErrCorrupt = errors.New("corrupt persisted value")

// KV is a byte-valued key-value store.
type KV interface {
	Get(key string) ([]byte, bool, error)
	// Put writes all entries atomically.
	Put(entries map[string][]byte) error
	Close() error
}

// DecodeError reports which key failed to decode.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrCorrupt, e.Err} }

// MemKV is an in-memory KV.
type MemKV struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
	failPut error
}

func NewMemKV() *MemKV {
	return &MemKV{entries: map[string][]byte{}}
}

func (m *MemKV) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemKV) Put(entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	for k, v := range entries {
		m.entries[k] = append([]byte(nil), v...)
	}
	m.puts++
	return nil
}

func (m *MemKV) Close() error { return nil }

// Puts counts successful writes.
func (m *MemKV) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// FailPuts makes every following Put return err. A nil err clears it.
func (m *MemKV) FailPuts(err error) {
	m.mu.Lock()
	m.failPut = err
	m.mu.Unlock()
}

// Keys lists the stored keys in order.
func (m *MemKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Open selects the backend named by cfg. The status is non-empty when the
// file backend had to recover from corruption.
func Open(cfg config.Storage) (KV, string, error) {
	switch cfg.Backend {
	case "", config.BackendFile:
		kv, status, err := OpenFile(cfg.Path)
		if err != nil {
			return nil, "", err
		}
		return kv, status, nil
	case config.BackendSQLite:
		kv, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, "", err
		}
		return kv, "", nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Load reads the state. Absent keys produce defaults; the first undecodable
// key is returned as a *DecodeError.
func Load(kv KV) (model.AppState, error) {
	state := model.NewState()
	for _, key := range []string{model.KeyTasksByDate, model.KeyBrainDump, model.KeyStreak} {
		if err := loadKey(kv, key, &state); err != nil {
			return model.AppState{}, err
		}
	}
	return state, nil
}

// LoadWithRecovery reads the state, replacing any undecodable key with its
// default. It returns a status message naming the keys that were reset.
func LoadWithRecovery(kv KV, logger *slog.Logger) (model.AppState, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	state := model.NewState()
	var reset []string
	for _, key := range []string{model.KeyTasksByDate, model.KeyBrainDump, model.KeyStreak} {
		err := loadKey(kv, key, &state)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrCorrupt) {
			return model.AppState{}, "", err
		}
		logger.Warn("persisted value unreadable, using default", "key", key, "error", err)
		reset = append(reset, key)
	}
	if len(reset) == 0 {
		return state, "", nil
	}
	return state, "Unreadable saved data reset: " + strings.Join(reset, ", "), nil
}

// Save writes every key in one Put.
func Save(kv KV, state model.AppState) error {
	if state.TasksByDate == nil {
		state.TasksByDate = model.TasksByDate{}
	}
	if state.BrainDump == nil {
		state.BrainDump = []model.BrainDumpTask{}
	}
	entries := make(map[string][]byte, 3)
	for key, v := range map[string]any{
		model.KeyTasksByDate: state.TasksByDate,
		model.KeyBrainDump:   state.BrainDump,
		model.KeyStreak:      state.Streak,
	} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = data
	}
	if err := kv.Put(entries); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func loadKey(kv KV, key string, state *model.AppState) error {
	data, ok, err := kv.Get(key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return nil
	}
	switch key {
	case model.KeyTasksByDate:
		var v model.TasksByDate
		if err := json.Unmarshal(data, &v); err != nil {
			return &DecodeError{Key: key, Err: err}
		}
		if v != nil {
			state.TasksByDate = v
		}
	case model.KeyBrainDump:
		var v []model.BrainDumpTask
		if err := json.Unmarshal(data, &v); err != nil {
			return &DecodeError{Key: key, Err: err}
		}
		if v != nil {
			state.BrainDump = v
		}
	case model.KeyStreak:
		var v model.StreakData
		if err := json.Unmarshal(data, &v); err != nil {
			return &DecodeError{Key: key, Err: err}
		}
		state.Streak = v
	}
	*state = normalize(*state)
	return nil
}

func normalize(state model.AppState) model.AppState {
	if state.TasksByDate == nil {
		state.TasksByDate = model.TasksByDate{}
	}
	if state.BrainDump == nil {
		state.BrainDump = []model.BrainDumpTask{}
	}
	for key, list := range state.TasksByDate {
		if list == nil {
			state.TasksByDate[key] = []model.Task{}
			continue
		}
		for i := range list {
			if list[i].Subtasks == nil {
				list[i].Subtasks = []model.Subtask{}
			}
		}
	}
	return state
}
