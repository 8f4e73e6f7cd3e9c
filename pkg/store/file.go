package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var errTruncated = errors.New("store file is empty")

// FileStore keeps values in a yaml file. Writes are atomic (temp file then
// rename); edits made by other processes are picked up through fsnotify and
// reported as changes.
type FileStore struct {
	*base
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	// ioMu orders file writes against reloads so a reload never reads a
	// file older than the in-memory state it replaces.
	ioMu sync.Mutex
}

func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{
		base:   newBase(),
		path:   path,
		logger: logger.With("component", "store", "driver", "file"),
	}

	data, err := s.load()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to load store from %s: %w", path, err)
	}
	s.data = data

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: the atomic rename replaces the file's inode.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		s.close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, keys ...string) (map[string]any, error) {
	return s.get(keys)
}

func (s *FileStore) Set(ctx context.Context, values map[string]any) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	return s.set(ctx, values, func(_ context.Context, snapshot, _ map[string][]byte) error {
		return s.write(snapshot)
	})
}

func (s *FileStore) Close() error {
	s.close()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Reload re-reads the file and reports what changed since the last read.
func (s *FileStore) Reload() (Changes, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	data, err := s.load()
	if err != nil {
		return nil, err
	}
	return s.replace(data), nil
}

func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			ch, err := s.Reload()
			if err != nil {
				// a writer that doesn't rename can leave a half-written file
				s.logger.Warn("store reload failed", "error", err)
				continue
			}
			if len(ch) > 0 {
				s.logger.Debug("external store change", "keys", sortedKeys(ch))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("store watcher error", "error", err)
		}
	}
}

func (s *FileStore) load() (map[string][]byte, error) {
	out := make(map[string][]byte)
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	// an in-place writer truncates before writing
	if len(bytes.TrimSpace(raw)) == 0 && len(s.data) > 0 {
		return nil, errTruncated
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	for k, v := range doc {
		if v == nil {
			continue
		}
		enc, err := encode(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

func (s *FileStore) write(snapshot map[string][]byte) error {
	doc := make(map[string]any, len(snapshot))
	for k, raw := range snapshot {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("failed to decode %s: %w", k, err)
		}
		doc[k] = v
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp store file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func sortedKeys(ch Changes) []string {
	keys := make([]string, 0, len(ch))
	for k := range ch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
