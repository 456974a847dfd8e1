// Package handle keeps the in-memory registry of open sessions.
package handle

import (
	"fmt"
	"sort"

	"github.com/sekai02/redcloud-nvs/internal/ids"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

// Entry describes one open session. Callers only ever see copies.
type Entry struct {
	Handle    ids.Handle
	ReadOnly  bool
	Namespace storage.NamespaceIndex
}

// Table maps live handles to their entries. It does no locking of its own;
// the owner must serialize every call.
type Table struct {
	entries map[ids.Handle]Entry
}

func NewTable() *Table {
	return &Table{entries: make(map[ids.Handle]Entry)}
}

// Insert registers e. A handle that is already present is rejected so that
// at most one entry exists per live handle.
func (t *Table) Insert(e Entry) error {
	if _, exists := t.entries[e.Handle]; exists {
		return fmt.Errorf("handle %d already registered", e.Handle)
	}
	t.entries[e.Handle] = e
	return nil
}

func (t *Table) Lookup(h ids.Handle) (Entry, bool) {
	e, ok := t.entries[h]
	return e, ok
}

// Remove drops h and reports whether it was present.
func (t *Table) Remove(h ids.Handle) bool {
	if _, ok := t.entries[h]; !ok {
		return false
	}
	delete(t.entries, h)
	return true
}

func (t *Table) Len() int {
	return len(t.entries)
}

func (t *Table) Clear() {
	t.entries = make(map[ids.Handle]Entry)
}

// Snapshot copies the table ordered by handle.
func (t *Table) Snapshot() []Entry {
	result := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Handle < result[j].Handle })
	return result
}
