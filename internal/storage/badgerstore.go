package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

var namespacePrefix = []byte("ns:")

func namespaceKey(name string) []byte {
	return append(append([]byte{}, namespacePrefix...), name...)
}

func itemPrefix(ns NamespaceIndex) []byte {
	return []byte{'i', byte(ns)}
}

func itemKey(ns NamespaceIndex, key string) []byte {
	return append(itemPrefix(ns), key...)
}

func (s *BadgerStore) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

func (s *BadgerStore) CreateOrOpenNamespace(name string, writable bool) (NamespaceIndex, error) {
	if err := validateNamespace(name); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	var idx NamespaceIndex
	err := s.db.Update(func(txn *badger.Txn) error {
		entry, err := txn.Get(namespaceKey(name))
		if err == nil {
			return entry.Value(func(val []byte) error {
				if len(val) != 1 {
					return fmt.Errorf("corrupt namespace entry %q", name)
				}
				idx = NamespaceIndex(val[0])
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if !writable {
			return fmt.Errorf("%w: namespace %q", ErrNotFound, name)
		}

		used := make(map[NamespaceIndex]struct{})
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(namespacePrefix); it.ValidForPrefix(namespacePrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				if len(val) == 1 {
					used[NamespaceIndex(val[0])] = struct{}{}
				}
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		idx, err = firstFreeIndex(used)
		if err != nil {
			return err
		}
		return txn.Set(namespaceKey(name), []byte{byte(idx)})
	})
	if err != nil {
		return 0, err
	}
	return idx, nil
}

func (s *BadgerStore) WriteItem(ns NamespaceIndex, key string, typ ItemType, data []byte) error {
	if err := validateWrite(key, typ, data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(itemKey(ns, key), encodeItem(typ, data))
	})
}

func (s *BadgerStore) load(ns NamespaceIndex, key string) (item, error) {
	if err := validateKey(key); err != nil {
		return item{}, err
	}
	if s.closed {
		return item{}, ErrClosed
	}

	var result item
	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(itemKey(ns, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
		}
		if err != nil {
			return err
		}

		return entry.Value(func(val []byte) error {
			decoded, err := decodeItem(val)
			result = decoded
			return err
		})
	})

	return result, err
}

func (s *BadgerStore) ReadItem(ns NamespaceIndex, key string, typ ItemType, out []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.load(ns, key)
	if err != nil {
		return err
	}
	return checkRead(it, typ, out)
}

func (s *BadgerStore) ItemDataSize(ns NamespaceIndex, key string, typ ItemType) (int, error) {
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

func (s *BadgerStore) EraseItem(ns NamespaceIndex, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		k := itemKey(ns, key)
		if _, err := txn.Get(k); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
			}
			return err
		}
		return txn.Delete(k)
	})
}

func (s *BadgerStore) EraseNamespace(ns NamespaceIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		prefix := itemPrefix(ns)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		var keys [][]byte
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) DebugDump(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	var namespaces []namespaceRecord
	var records []dumpRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			entry := it.Item()
			k := entry.KeyCopy(nil)
			val, err := entry.ValueCopy(nil)
			if err != nil {
				return err
			}

			switch {
			case bytes.HasPrefix(k, namespacePrefix):
				if len(val) == 1 {
					namespaces = append(namespaces, namespaceRecord{name: string(k[len(namespacePrefix):]), idx: NamespaceIndex(val[0])})
				}
			case len(k) > 2 && k[0] == 'i':
				decoded, err := decodeItem(val)
				if err != nil {
					return err
				}
				records = append(records, dumpRecord{ns: NamespaceIndex(k[1]), key: string(k[2:]), it: decoded})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeDump(w, namespaces, records)
}

func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
