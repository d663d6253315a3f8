package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Area names a storage namespace. Local holds campaign and reporting state,
// Sync holds user preferences.
type Area string

const (
	Local Area = "local"
	Sync  Area = "sync"
)

// Change describes one key whose stored value changed.
type Change struct {
	Area     Area
	Key      string
	OldValue json.RawMessage
	NewValue json.RawMessage
}

// Store is a JSON key-value store on SQLite. Every key is last-writer-wins;
// there are no transactions spanning more than one call.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, listeners: map[int]func(Change){}}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS kv (
	area TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (area, key)
);
`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Get returns the raw JSON for each requested key that exists. Missing keys are
// simply absent from the result.
func (s *Store) Get(ctx context.Context, area Area, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		var v string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE area = ? AND key = ?`, string(area), k).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", area, k, err)
		}
		out[k] = json.RawMessage(v)
	}
	return out, nil
}

// Set JSON-encodes every value and writes them in one transaction. Listeners are
// notified afterwards for each key whose encoded value actually changed.
func (s *Store) Set(ctx context.Context, area Area, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		encoded[k] = b
	}

	changes, err := s.write(ctx, area, encoded)
	if err != nil {
		return err
	}
	s.notify(changes)
	return nil
}

// Remove deletes keys. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, area Area, keys ...string) error {
	encoded := make(map[string][]byte, len(keys))
	for _, k := range keys {
		encoded[k] = nil
	}
	changes, err := s.write(ctx, area, encoded)
	if err != nil {
		return err
	}
	s.notify(changes)
	return nil
}

// write applies upserts (non-nil value) and deletes (nil value) and reports what changed.
func (s *Store) write(ctx context.Context, area Area, values map[string][]byte) ([]Change, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	var changes []Change
	for _, k := range keys {
		var old []byte
		var prev string
		err := tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE area = ? AND key = ?`, string(area), k).Scan(&prev)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("read %s/%s: %w", area, k, err)
		default:
			old = []byte(prev)
		}

		next := values[k]
		if next == nil {
			if old == nil {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE area = ? AND key = ?`, string(area), k); err != nil {
				return nil, fmt.Errorf("delete %s/%s: %w", area, k, err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `INSERT INTO kv (area, key, value, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(area, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				string(area), k, string(next), now); err != nil {
				return nil, fmt.Errorf("write %s/%s: %w", area, k, err)
			}
			if bytes.Equal(old, next) {
				continue
			}
		}
		changes = append(changes, Change{Area: area, Key: k, OldValue: old, NewValue: next})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

// Subscribe registers fn for change notifications. Notifications are delivered
// synchronously on the writer's goroutine, after the write has committed.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// Load decodes key into dst. found is false when the key is absent, in which
// case dst is left untouched so callers can pre-fill defaults.
func (s *Store) Load(ctx context.Context, area Area, key string, dst any) (found bool, err error) {
	vals, err := s.Get(ctx, area, key)
	if err != nil {
		return false, err
	}
	raw, ok := vals[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s/%s: %w", area, key, err)
	}
	return true, nil
}

// Save is Set for a single key.
func (s *Store) Save(ctx context.Context, area Area, key string, v any) error {
	return s.Set(ctx, area, map[string]any{key: v})
}
