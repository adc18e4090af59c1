// Package cache is a node-local response cache keyed by derived cache
// keys, backed by sqlite.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS cache_entries (
  key          TEXT PRIMARY KEY,
  status       INTEGER NOT NULL,
  headers_json TEXT NOT NULL,
  body         BLOB NOT NULL,
  stored_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_stored_at
  ON cache_entries(stored_at);
`

// Entry is one cached upstream response.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

type Option func(*Store)

// WithTTL bounds entry age; expired entries miss and are pruned.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPruneInterval sets how often Put sweeps expired entries.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store is a sqlite-backed cache. Safe for concurrent use.
type Store struct {
	db    *sql.DB
	ttl   time.Duration
	nowFn func() time.Time

	pruneInterval time.Duration
	pruneMu       sync.Mutex
	lastPrune     time.Time
}

// Open creates or opens the cache database at dbPath, creating parent
// directories as needed.
func Open(dbPath string, opts ...Option) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("empty db path")
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:            db,
		ttl:           5 * time.Minute,
		nowFn:         time.Now,
		pruneInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	ctx := context.Background()

	var journalMode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("sqlite: set journal_mode=wal: %w", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		return fmt.Errorf("sqlite: journal_mode=%q, want wal", journalMode)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("sqlite: apply schema v%d: %w", schemaVersion, err)
	}
	return nil
}

// Get returns the entry for key, or ok=false on a miss. Expired
// entries miss.
func (s *Store) Get(ctx context.Context, key string) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT status, headers_json, body, stored_at FROM cache_entries WHERE key = ?`, key)

	var (
		status      int
		headersJSON string
		body        []byte
		storedAt    int64
	)
	if err := row.Scan(&status, &headersJSON, &body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	stored := time.Unix(0, storedAt)
	if s.nowFn().Sub(stored) > s.ttl {
		return nil, false, nil
	}

	header := http.Header{}
	if err := json.Unmarshal([]byte(headersJSON), &header); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %q: %w", key, err)
	}

	return &Entry{
		Status:   status,
		Header:   header,
		Body:     body,
		StoredAt: stored,
	}, true, nil
}

// Put stores or replaces the entry for key and opportunistically
// prunes expired entries.
func (s *Store) Put(ctx context.Context, key string, e *Entry) error {
	headersJSON, err := json.Marshal(e.Header)
	if err != nil {
		return err
	}

	now := s.nowFn()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, status, headers_json, body, stored_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   status = excluded.status,
		   headers_json = excluded.headers_json,
		   body = excluded.body,
		   stored_at = excluded.stored_at`,
		key, e.Status, string(headersJSON), e.Body, now.UnixNano())
	if err != nil {
		return err
	}

	return s.maybePrune(ctx, now)
}

func (s *Store) maybePrune(ctx context.Context, now time.Time) error {
	s.pruneMu.Lock()
	due := now.Sub(s.lastPrune) >= s.pruneInterval
	if due {
		s.lastPrune = now
	}
	s.pruneMu.Unlock()
	if !due {
		return nil
	}

	cutoff := now.Add(-s.ttl).UnixNano()
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE stored_at < ?`, cutoff)
	return err
}
