package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const maxRotatingBackups = 10

var errNoValidBackup = errors.New("no valid backup found")

// document is the on-disk layout of FileKV: one JSON object, one member per key.
type document map[string]json.RawMessage

// FileKV keeps every key in a single JSON file written with atomic autosave.
type FileKV struct {
	mu   sync.Mutex
	path string
	doc  document
}

// OpenFile loads path, recovering from a corrupted document. The status is
// non-empty when recovery happened.
func OpenFile(path string) (*FileKV, string, error) {
	doc, status, err := loadWithRecovery(path)
	if err != nil {
		return nil, "", err
	}
	return &FileKV{path: path, doc: doc}, status, nil
}

func (f *FileKV) Path() string { return f.path }

func (f *FileKV) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.doc[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

func (f *FileKV) Put(entries map[string][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := make(document, len(f.doc)+len(entries))
	for k, v := range f.doc {
		next[k] = v
	}
	for k, v := range entries {
		if !json.Valid(v) {
			return fmt.Errorf("value for %q is not valid JSON", k)
		}
		next[k] = json.RawMessage(v)
	}
	if err := autosave(f.path, next); err != nil {
		return err
	}
	f.doc = next
	return nil
}

func (f *FileKV) Close() error { return nil }

func load(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return document{}, nil
		}
		return nil, err
	}
	return decodeDocument(data)
}

// loadWithRecovery loads the document and tries automatic recovery when the main JSON is corrupted.
func loadWithRecovery(path string) (document, string, error) {
	doc, err := load(path)
	if err == nil {
		return doc, "", nil
	}
	if !isCorruptError(err) {
		return nil, "", err
	}

	corruptPath, moveErr := moveCorruptFile(path)
	if moveErr != nil {
		return nil, "", fmt.Errorf("move corrupt state file: %w", moveErr)
	}

	recovered, backupPath, backupErr := loadLatestValidBackup(path)
	if backupErr == nil {
		if err := writeJSON(path, recovered); err != nil {
			return nil, "", fmt.Errorf("restore backup: %w", err)
		}
		msg := fmt.Sprintf("Corrupted state recovered from %s", filepath.Base(backupPath))
		if corruptPath != "" {
			msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
		}
		return recovered, msg, nil
	}
	if !errors.Is(backupErr, errNoValidBackup) {
		return nil, "", fmt.Errorf("inspect backups: %w", backupErr)
	}

	empty := document{}
	if err := writeJSON(path, empty); err != nil {
		return nil, "", fmt.Errorf("initialize empty state after corruption: %w", err)
	}
	msg := "Corrupted state without a valid backup; started empty"
	if corruptPath != "" {
		msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
	}
	return empty, msg, nil
}

// autosave writes safely using temporary file + atomic rename.
// It also stores a latest backup (.bak) and a rotating timestamped backup set.
func autosave(path string, doc document) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	if err := backup(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func decodeDocument(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = document{}
	}
	return doc, nil
}

func writeJSON(path string, doc document) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func backup(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	rotatingPath := fmt.Sprintf("%s.bak.%s", path, timestamp)
	if err := os.WriteFile(rotatingPath, data, 0o644); err != nil {
		return err
	}

	return pruneRotatingBackups(path)
}

func pruneRotatingBackups(path string) error {
	files, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return err
	}
	if len(files) <= maxRotatingBackups {
		return nil
	}

	sort.Strings(files)
	for _, old := range files[:len(files)-maxRotatingBackups] {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func loadLatestValidBackup(path string) (document, string, error) {
	candidates := make([]string, 0, maxRotatingBackups+1)
	latest := path + ".bak"
	if _, err := os.Stat(latest); err == nil {
		candidates = append(candidates, latest)
	}
	rotating, err := filepath.Glob(path + ".bak.*")
	if err != nil {
		return nil, "", err
	}
	candidates = append(candidates, rotating...)
	if len(candidates) == 0 {
		return nil, "", errNoValidBackup
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iInfo, iErr := os.Stat(candidates[i])
		jInfo, jErr := os.Stat(candidates[j])
		if iErr != nil || jErr != nil {
			return candidates[i] > candidates[j]
		}
		return iInfo.ModTime().After(jInfo.ModTime())
	})

	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		doc, err := decodeDocument(data)
		if err != nil {
			continue
		}
		return doc, candidate, nil
	}

	return nil, "", errNoValidBackup
}

func moveCorruptFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	timestamp := time.Now().UTC().Format("20060102-150405")
	corruptPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.corrupt-%s%s", name, timestamp, ext))
	if err := os.Rename(path, corruptPath); err != nil {
		return "", err
	}
	return corruptPath, nil
}

func isCorruptError(err error) bool {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
