package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps values in a single kv table. Writes from other
// connections are detected by polling PRAGMA data_version.
type SQLiteStore struct {
	*base
	db       *sql.DB
	logger   *slog.Logger
	poll     time.Duration
	isMemory bool

	// ioMu orders commits against reloads so a reload never adopts rows
	// older than the in-memory state it replaces.
	ioMu sync.Mutex
}

func NewSQLiteStore(dbPath string, poll time.Duration, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	var connStr string
	isMemory := dbPath == ":memory:"
	if isMemory {
		connStr = "file::memory:?_pragma=busy_timeout(5000)"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		connStr = "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: data_version is per connection and our own commits
	// must not look like external ones.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		base:     newBase(),
		db:       db,
		logger:   logger.With("component", "store", "driver", "sqlite"),
		poll:     poll,
		isMemory: isMemory,
	}

	if err := s.migrate(); err != nil {
		s.close()
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	data, err := s.loadAll(context.Background())
	if err != nil {
		s.close()
		db.Close()
		return nil, err
	}
	s.data = data

	version, err := s.dataVersion(context.Background())
	if err != nil {
		s.close()
		db.Close()
		return nil, err
	}
	go s.watch(version)

	s.logger.Info("SQLite store initialized", "path", dbPath, "in_memory", isMemory)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(_ context.Context, keys ...string) (map[string]any, error) {
	return s.get(keys)
}

func (s *SQLiteStore) Set(ctx context.Context, values map[string]any) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	return s.set(ctx, values, s.persist)
}

// Reload re-reads the table and reports what changed since the last read.
func (s *SQLiteStore) Reload(ctx context.Context) (Changes, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	data, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.replace(data), nil
}

func (s *SQLiteStore) Close() error {
	s.close()
	return s.db.Close()
}

func (s *SQLiteStore) persist(ctx context.Context, _, changed map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for k, raw := range changed {
		if raw == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, k); err != nil {
				return fmt.Errorf("failed to delete %s: %w", k, err)
			}
			continue
		}
		query := `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
		`
		if _, err := tx.ExecContext(ctx, query, k, string(raw), now); err != nil {
			return fmt.Errorf("failed to save %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("store persisted", "keys", len(changed))
	return nil
}

func (s *SQLiteStore) loadAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("failed to query store: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out[k] = []byte(v)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read data_version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) watch(version int64) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		v, err := s.dataVersion(ctx)
		if err != nil || v == version {
			cancel()
			if err != nil {
				s.logger.Debug("data_version poll failed", "error", err)
			}
			continue
		}
		version = v
		ch, err := s.Reload(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("store reload failed", "error", err)
			continue
		}
		if len(ch) > 0 {
			s.logger.Debug("external store change", "keys", sortedKeys(ch))
		}
	}
}
