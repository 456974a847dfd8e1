package storage

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	namespaceBucket = "namespaces"
	itemBucket      = "items"
)

// BoltStore keeps namespaces and items in two buckets of a single bbolt file.
// Item keys are the namespace index byte followed by the key.
type BoltStore struct {
	db     *bbolt.DB
	mu     sync.RWMutex
	closed bool
}

func NewBoltStore(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{namespaceBucket, itemBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func boltItemKey(ns NamespaceIndex, key string) []byte {
	return append([]byte{byte(ns)}, key...)
}

func (s *BoltStore) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

func (s *BoltStore) CreateOrOpenNamespace(name string, writable bool) (NamespaceIndex, error) {
	if err := validateNamespace(name); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	var idx NamespaceIndex
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespaceBucket))
		if val := bucket.Get([]byte(name)); val != nil {
			if len(val) != 1 {
				return fmt.Errorf("corrupt namespace entry %q", name)
			}
			idx = NamespaceIndex(val[0])
			return nil
		}
		if !writable {
			return fmt.Errorf("%w: namespace %q", ErrNotFound, name)
		}

		used := make(map[NamespaceIndex]struct{})
		err := bucket.ForEach(func(_, val []byte) error {
			if len(val) == 1 {
				used[NamespaceIndex(val[0])] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return err
		}

		idx, err = firstFreeIndex(used)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(name), []byte{byte(idx)})
	})
	if err != nil {
		return 0, err
	}
	return idx, nil
}

func (s *BoltStore) WriteItem(ns NamespaceIndex, key string, typ ItemType, data []byte) error {
	if err := validateWrite(key, typ, data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(itemBucket)).Put(boltItemKey(ns, key), encodeItem(typ, data))
	})
}

func (s *BoltStore) load(ns NamespaceIndex, key string) (item, error) {
	if err := validateKey(key); err != nil {
		return item{}, err
	}
	if s.closed {
		return item{}, ErrClosed
	}

	var result item
	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(itemBucket)).Get(boltItemKey(ns, key))
		if val == nil {
			return fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
		}
		decoded, err := decodeItem(val)
		result = decoded
		return err
	})
	return result, err
}

func (s *BoltStore) ReadItem(ns NamespaceIndex, key string, typ ItemType, out []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.load(ns, key)
	if err != nil {
		return err
	}
	return checkRead(it, typ, out)
}

func (s *BoltStore) ItemDataSize(ns NamespaceIndex, key string, typ ItemType) (int, error) {
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

func (s *BoltStore) EraseItem(ns NamespaceIndex, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		k := boltItemKey(ns, key)
		if bucket.Get(k) == nil {
			return fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
		}
		return bucket.Delete(k)
	})
}

func (s *BoltStore) EraseNamespace(ns NamespaceIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		prefix := []byte{byte(ns)}

		var keys [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte{}, k...))
		}
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) DebugDump(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	var namespaces []namespaceRecord
	var records []dumpRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket([]byte(namespaceBucket)).ForEach(func(k, v []byte) error {
			if len(v) == 1 {
				namespaces = append(namespaces, namespaceRecord{name: string(k), idx: NamespaceIndex(v[0])})
			}
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(itemBucket)).ForEach(func(k, v []byte) error {
			if len(k) < 2 {
				return nil
			}
			decoded, err := decodeItem(v)
			if err != nil {
				return err
			}
			records = append(records, dumpRecord{ns: NamespaceIndex(k[0]), key: string(k[1:]), it: decoded})
			return nil
		})
	})
	if err != nil {
		return err
	}
	return writeDump(w, namespaces, records)
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
