package storage

import (
	"fmt"
	"io"
	"sync"
)

type MemStore struct {
	mu         sync.RWMutex
	namespaces map[string]NamespaceIndex
	items      map[NamespaceIndex]map[string]item
	closed     bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		namespaces: make(map[string]NamespaceIndex),
		items:      make(map[NamespaceIndex]map[string]item),
	}
}

func (s *MemStore) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

func (s *MemStore) CreateOrOpenNamespace(name string, writable bool) (NamespaceIndex, error) {
	if err := validateNamespace(name); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if idx, exists := s.namespaces[name]; exists {
		return idx, nil
	}
	if !writable {
		return 0, fmt.Errorf("%w: namespace %q", ErrNotFound, name)
	}

	used := make(map[NamespaceIndex]struct{}, len(s.namespaces))
	for _, idx := range s.namespaces {
		used[idx] = struct{}{}
	}
	idx, err := firstFreeIndex(used)
	if err != nil {
		return 0, err
	}
	s.namespaces[name] = idx
	return idx, nil
}

func (s *MemStore) WriteItem(ns NamespaceIndex, key string, typ ItemType, data []byte) error {
	if err := validateWrite(key, typ, data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	nsItems, exists := s.items[ns]
	if !exists {
		nsItems = make(map[string]item)
		s.items[ns] = nsItems
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	nsItems[key] = item{typ: typ, data: stored}
	return nil
}

func (s *MemStore) lookup(ns NamespaceIndex, key string) (item, error) {
	if err := validateKey(key); err != nil {
		return item{}, err
	}
	if s.closed {
		return item{}, ErrClosed
	}
	it, exists := s.items[ns][key]
	if !exists {
		return item{}, fmt.Errorf("%w: key %q in namespace %d", ErrNotFound, key, ns)
	}
	return it, nil
}

func (s *MemStore) ReadItem(ns NamespaceIndex, key string, typ ItemType, out []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.lookup(ns, key)
	if err != nil {
		return err
	}
	return checkRead(it, typ, out)
}

func (s *MemStore) ItemDataSize(ns NamespaceIndex, key string, typ ItemType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.lookup(ns, key)
	if err != nil {
		return 0, err
	}
	if it.typ != typ {
		return 0, fmt.Errorf("%w: stored %s, requested %s", ErrTypeMismatch, it.typ, typ)
	}
	return len(it.data), nil
}

func (s *MemStore) EraseItem(ns NamespaceIndex, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(ns, key); err != nil {
		return err
	}
	delete(s.items[ns], key)
	return nil
}

func (s *MemStore) EraseNamespace(ns NamespaceIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	delete(s.items, ns)
	return nil
}

func (s *MemStore) DebugDump(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	namespaces := make([]namespaceRecord, 0, len(s.namespaces))
	for name, idx := range s.namespaces {
		namespaces = append(namespaces, namespaceRecord{name: name, idx: idx})
	}
	var records []dumpRecord
	for ns, nsItems := range s.items {
		for key, it := range nsItems {
			records = append(records, dumpRecord{ns: ns, key: key, it: it})
		}
	}
	return writeDump(w, namespaces, records)
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
