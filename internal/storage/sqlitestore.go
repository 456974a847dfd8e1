package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS namespaces (
	name TEXT PRIMARY KEY,
	idx  INTEGER NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS items (
	ns   INTEGER NOT NULL,
	key  TEXT NOT NULL,
	type INTEGER NOT NULL,
	data BLOB,
	PRIMARY KEY (ns, key)
);`

type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

func (s *SQLiteStore) CreateOrOpenNamespace(name string, writable bool) (NamespaceIndex, error) {
	if err := validateNamespace(name); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(`SELECT idx FROM namespaces WHERE name = ?`, name).Scan(&existing)
	if err == nil {
		return NamespaceIndex(existing), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query namespace: %w", err)
	}
	if !writable {
		return 0, fmt.Errorf("%w: namespace %q", ErrNotFound, name)
	}

	rows, err := tx.Query(`SELECT idx FROM namespaces`)
	if err != nil {
		return 0, fmt.Errorf("list namespaces: %w", err)
	}
	used := make(map[NamespaceIndex]struct{})
	for rows.Next() {
		var idx int64
		if err := rows.Scan(&idx); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan namespace: %w", err)
		}
		used[NamespaceIndex(idx)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("list namespaces: %w", err)
	}
	rows.Close()

	idx, err := firstFreeIndex(used)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`INSERT INTO namespaces (name, idx) VALUES (?, ?)`, name, int64(idx)); err != nil {
		return 0, fmt.Errorf("insert namespace: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return idx, nil
}

func (s *SQLiteStore) WriteItem(ns NamespaceIndex, key string, typ ItemType, data []byte) error {
	if err := validateWrite(key, typ, data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	_, err := s.db.Exec(
		`INSERT INTO items (ns, key, type, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (ns, key) DO UPDATE SET type = excluded.type, data = excluded.data`,
		int64(ns), key, int64(typ), data,
	)
	if err != nil {
		return fmt.Errorf("write item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) load(ns NamespaceIndex, key string) (item, error) {
	if err := validateKey(key); err != nil {
		return item{}, err
	}
	if s.closed {
		return item{}, ErrClosed
	}

	var typ int64
	var data []byte
	err := s.db.QueryRow(`SELECT type, data FROM items WHERE ns = ? AND key = ?`, int64(ns), key).Scan(&typ, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return item{}, fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
	}
	if err != nil {
		return item{}, fmt.Errorf("read item: %w", err)
	}
	return item{typ: ItemType(typ), data: data}, nil
}

func (s *SQLiteStore) ReadItem(ns NamespaceIndex, key string, typ ItemType, out []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.load(ns, key)
	if err != nil {
		return err
	}
	return checkRead(it, typ, out)
}

func (s *SQLiteStore) ItemDataSize(ns NamespaceIndex, key string, typ ItemType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.load(ns, key)
	if err != nil {
		return 0, err
	}
	if it.typ != typ {
		return 0, fmt.Errorf("%w: stored %s, requested %s", ErrTypeMismatch, it.typ, typ)
	}
	return len(it.data), nil
}

func (s *SQLiteStore) EraseItem(ns NamespaceIndex, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	res, err := s.db.Exec(`DELETE FROM items WHERE ns = ? AND key = ?`, int64(ns), key)
	if err != nil {
		return fmt.Errorf("erase item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("erase item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
	}
	return nil
}

func (s *SQLiteStore) EraseNamespace(ns NamespaceIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.db.Exec(`DELETE FROM items WHERE ns = ?`, int64(ns)); err != nil {
		return fmt.Errorf("erase namespace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DebugDump(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	var namespaces []namespaceRecord
	nsRows, err := s.db.Query(`SELECT name, idx FROM namespaces`)
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}
	for nsRows.Next() {
		var rec namespaceRecord
		var idx int64
		if err := nsRows.Scan(&rec.name, &idx); err != nil {
			nsRows.Close()
			return fmt.Errorf("scan namespace: %w", err)
		}
		rec.idx = NamespaceIndex(idx)
		namespaces = append(namespaces, rec)
	}
	err = nsRows.Err()
	nsRows.Close()
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}

	var records []dumpRecord
	itemRows, err := s.db.Query(`SELECT ns, key, type, data FROM items`)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	for itemRows.Next() {
		var ns, typ int64
		var rec dumpRecord
		if err := itemRows.Scan(&ns, &rec.key, &typ, &rec.it.data); err != nil {
			itemRows.Close()
			return fmt.Errorf("scan item: %w", err)
		}
		rec.ns = NamespaceIndex(ns)
		rec.it.typ = ItemType(typ)
		records = append(records, rec)
	}
	err = itemRows.Err()
	itemRows.Close()
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	return writeDump(w, namespaces, records)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
