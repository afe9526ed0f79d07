// Package sqlite implements the on-device local store on an embedded
// SQLite database. The database runs in WAL mode so reads stay
// concurrent with the single writer, and timestamps round-trip at
// nanosecond precision. An optional file watcher picks up writes made
// by other processes sharing the same database file.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
)

// externalDebounce batches rapid external write bursts into a single
// reload.
const externalDebounce = 100 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS lists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	owner_id TEXT NOT NULL,
	members TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT,
	deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS list_items (
	list_id TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	quantity TEXT NOT NULL DEFAULT '',
	is_completed INTEGER NOT NULL DEFAULT 0,
	completed_at TEXT,
	created_at TEXT NOT NULL,
	deleted_at TEXT,
	PRIMARY KEY (list_id, id)
);

CREATE INDEX IF NOT EXISTS idx_list_items_list_id ON list_items(list_id);
`

const upsertListSQL = `
INSERT INTO lists (id, name, description, color, owner_id, members, created_at, updated_at, deleted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	color = excluded.color,
	owner_id = excluded.owner_id,
	members = excluded.members,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	deleted_at = excluded.deleted_at
`

const insertItemSQL = `
INSERT INTO list_items (list_id, id, name, quantity, is_completed, completed_at, created_at, deleted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const selectListsSQL = `
SELECT id, name, description, color, owner_id, members, created_at, updated_at, deleted_at
FROM lists
ORDER BY id
`

const selectItemsSQL = `
SELECT list_id, id, name, quantity, is_completed, completed_at, created_at, deleted_at
FROM list_items
ORDER BY list_id, created_at, id
`

// Store is a store.LocalStore backed by an embedded SQLite database in
// WAL mode. Readers query the database directly; a single mutex
// serializes mutations and keeps the published snapshots in order.
type Store struct {
	db     *sql.DB
	path   string
	fanout *store.Fanout

	// mu serializes mutations and guards lastHash, the hash of the
	// snapshot subscribers saw last.
	mu       sync.Mutex
	lastHash string

	watchExternal bool
	watcher       *fsnotify.Watcher
	watchStop     context.CancelFunc
	watchDone     chan struct{}
}

var _ store.LocalStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithExternalWatch makes the store watch its database file and emit
// fresh snapshots when another process writes it.
func WithExternalWatch() Option {
	return func(s *Store) {
		s.watchExternal = true
	}
}

// Open opens or creates the database at path, applies the schema and
// returns a ready Store. The caller must Close it when done.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &Store{
		db:     conn,
		path:   path,
		fanout: store.NewFanout(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Seed the change hash so the file watcher stays quiet until the
	// content actually differs from what is on disk now.
	lists, err := s.loadAll(context.Background())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("load database: %w", err)
	}
	if s.lastHash, err = snapshotHash(lists); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if s.watchExternal {
		if err := s.startExternalWatch(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	slog.Info("Local database opened", "path", path)
	return s, nil
}

// Close stops the file watcher, checkpoints the WAL and closes the
// database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.watchStop != nil {
		s.watchStop()
		<-s.watchDone
		if err := s.watcher.Close(); err != nil {
			slog.Error("Failed to close database watcher", "path", s.path, "error", err)
		}
		s.watchStop = nil
	}

	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("Failed to checkpoint WAL before close", "path", s.path, "error", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	s.db = nil
	return nil
}

// WatchAll implements store.LocalStore.
func (s *Store) WatchAll(ctx context.Context) (<-chan []model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := s.loadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch lists: %w", err)
	}
	return s.fanout.Subscribe(ctx, lists), nil
}

// GetAll implements store.LocalStore.
func (s *Store) GetAll(ctx context.Context) ([]model.List, error) {
	lists, err := s.loadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lists: %w", err)
	}
	return lists, nil
}

// Upsert implements store.LocalStore. The list row and its full item
// set are replaced in a single transaction.
func (s *Store) Upsert(ctx context.Context, list model.List) error {
	if list.ID == "" {
		return fmt.Errorf("upsert: list id is required")
	}

	members, err := json.Marshal(list.Members)
	if err != nil {
		return fmt.Errorf("upsert list %q: marshal members: %w", list.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert list %q: %w", list.ID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, upsertListSQL,
		list.ID,
		list.Name,
		list.Description,
		list.Color,
		list.OwnerID,
		string(members),
		encodeTime(list.CreatedAt),
		encodeTimePtr(list.UpdatedAt),
		encodeTimePtr(list.DeletedAt),
	); err != nil {
		return fmt.Errorf("upsert list %q: %w", list.ID, err)
	}

	// Whole-entity write: the incoming item set is authoritative.
	if _, err := tx.ExecContext(ctx, "DELETE FROM list_items WHERE list_id = ?", list.ID); err != nil {
		return fmt.Errorf("upsert list %q: clear items: %w", list.ID, err)
	}
	for _, item := range list.Items {
		if _, err := tx.ExecContext(ctx, insertItemSQL,
			list.ID,
			item.ID,
			item.Name,
			item.Quantity,
			item.IsCompleted,
			encodeTimePtr(item.CompletedAt),
			encodeTime(item.CreatedAt),
			encodeTimePtr(item.DeletedAt),
		); err != nil {
			return fmt.Errorf("upsert list %q: write item %q: %w", list.ID, item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert list %q: %w", list.ID, err)
	}
	if err := s.publishLocked(ctx); err != nil {
		return fmt.Errorf("upsert list %q: %w", list.ID, err)
	}
	return nil
}

// HardDelete implements store.LocalStore.
func (s *Store) HardDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("hard delete list %q: %w", id, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM list_items WHERE list_id = ?", id); err != nil {
		return fmt.Errorf("hard delete list %q: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM lists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("hard delete list %q: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("hard delete list %q: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("hard delete list %q: %w", id, err)
	}

	// Deleting an absent list is a no-op and emits nothing.
	if rows == 0 {
		return nil
	}
	if err := s.publishLocked(ctx); err != nil {
		return fmt.Errorf("hard delete list %q: %w", id, err)
	}
	return nil
}

// publishLocked reloads the collection and fans it out. Callers must
// hold s.mu.
func (s *Store) publishLocked(ctx context.Context) error {
	lists, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	hash, err := snapshotHash(lists)
	if err != nil {
		return err
	}
	s.lastHash = hash
	s.fanout.Publish(lists)
	return nil
}

// loadAll returns the full collection ordered by list id, tombstones
// included.
func (s *Store) loadAll(ctx context.Context) ([]model.List, error) {
	lists, index, err := s.queryLists(ctx)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return lists, nil
	}
	if err := s.attachItems(ctx, lists, index); err != nil {
		return nil, err
	}
	return lists, nil
}

func (s *Store) queryLists(ctx context.Context) ([]model.List, map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, selectListsSQL)
	if err != nil {
		return nil, nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	lists := []model.List{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			l         model.List
			members   string
			createdAt string
			updatedAt sql.NullString
			deletedAt sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.Color, &l.OwnerID,
			&members, &createdAt, &updatedAt, &deletedAt); err != nil {
			return nil, nil, fmt.Errorf("scan list: %w", err)
		}
		if err := json.Unmarshal([]byte(members), &l.Members); err != nil {
			return nil, nil, fmt.Errorf("list %q: decode members: %w", l.ID, err)
		}
		if l.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, nil, fmt.Errorf("list %q: %w", l.ID, err)
		}
		if l.UpdatedAt, err = decodeTimePtr(updatedAt); err != nil {
			return nil, nil, fmt.Errorf("list %q: %w", l.ID, err)
		}
		if l.DeletedAt, err = decodeTimePtr(deletedAt); err != nil {
			return nil, nil, fmt.Errorf("list %q: %w", l.ID, err)
		}
		index[l.ID] = len(lists)
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate lists: %w", err)
	}
	return lists, index, nil
}

func (s *Store) attachItems(ctx context.Context, lists []model.List, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, selectItemsSQL)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			listID      string
			it          model.Item
			completedAt sql.NullString
			createdAt   string
			deletedAt   sql.NullString
		)
		if err := rows.Scan(&listID, &it.ID, &it.Name, &it.Quantity, &it.IsCompleted,
			&completedAt, &createdAt, &deletedAt); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		if it.CreatedAt, err = decodeTime(createdAt); err != nil {
			return fmt.Errorf("item %q: %w", it.ID, err)
		}
		if it.CompletedAt, err = decodeTimePtr(completedAt); err != nil {
			return fmt.Errorf("item %q: %w", it.ID, err)
		}
		if it.DeletedAt, err = decodeTimePtr(deletedAt); err != nil {
			return fmt.Errorf("item %q: %w", it.ID, err)
		}
		i, ok := index[listID]
		if !ok {
			continue
		}
		lists[i].Items = append(lists[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate items: %w", err)
	}
	return nil
}

// startExternalWatch begins observing the database file for writes by
// other processes. WAL mode keeps most writes in the -wal sidecar, so
// the watcher covers both files by watching the parent directory.
func (s *Store) startExternalWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch database directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watcher = w
	s.watchStop = cancel
	s.watchDone = make(chan struct{})
	go s.watchLoop(ctx)

	slog.Info("Watching local database for external changes", "path", s.path)
	return nil
}

func (s *Store) watchLoop(ctx context.Context) {
	defer close(s.watchDone)

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.isDatabaseFile(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(externalDebounce)
				pending = timer.C
			} else {
				timer.Reset(externalDebounce)
			}

		case <-pending:
			timer = nil
			pending = nil
			s.republishIfChanged(ctx)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Local database watcher error", "path", s.path, "error", err)
		}
	}
}

// republishIfChanged reloads the collection after an external write
// and fans it out unless the content matches the last published
// snapshot. Writes made through this Store publish directly and are
// suppressed here by the hash comparison.
func (s *Store) republishIfChanged(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lists, err := s.loadAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Failed to reload local database after external change",
			"path", s.path,
			"error", err)
		return
	}
	hash, err := snapshotHash(lists)
	if err != nil {
		slog.Error("Failed to hash local snapshot", "path", s.path, "error", err)
		return
	}
	if hash == s.lastHash {
		return
	}
	s.lastHash = hash
	s.fanout.Publish(lists)
}

func (s *Store) isDatabaseFile(name string) bool {
	base := filepath.Base(name)
	dbBase := filepath.Base(s.path)
	return base == dbBase || base == dbBase+"-wal"
}

// snapshotHash returns a hex SHA-256 over the serialized snapshot.
// loadAll returns lists and items in a stable order, so equal content
// always hashes equal.
func snapshotHash(lists []model.List) (string, error) {
	data, err := json.Marshal(lists)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// encodeTime renders t as RFC 3339 text. Nanosecond precision is kept
// so version clocks survive the round trip.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := decodeTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
