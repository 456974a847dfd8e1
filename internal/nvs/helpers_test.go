package nvs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/sekai02/redcloud-nvs/internal/ids"
	"github.com/sekai02/redcloud-nvs/internal/nvs"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

// recordingEngine counts mutating calls that reach the wrapped engine.
type recordingEngine struct {
	storage.Engine

	mu        sync.Mutex
	mutations []string
	closes    int
}

func (r *recordingEngine) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, op)
}

func (r *recordingEngine) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mutations)
}

func (r *recordingEngine) WriteItem(ns storage.NamespaceIndex, key string, typ storage.ItemType, data []byte) error {
	r.record("write " + key)
	return r.Engine.WriteItem(ns, key, typ, data)
}

func (r *recordingEngine) EraseItem(ns storage.NamespaceIndex, key string) error {
	r.record("erase " + key)
	return r.Engine.EraseItem(ns, key)
}

func (r *recordingEngine) EraseNamespace(ns storage.NamespaceIndex) error {
	r.record("erase_namespace")
	return r.Engine.EraseNamespace(ns)
}

func (r *recordingEngine) Close() error {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	return r.Engine.Close()
}

func (r *recordingEngine) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func newContext(t *testing.T) (*nvs.Context, *recordingEngine) {
	t.Helper()
	engine := &recordingEngine{Engine: storage.NewMemStore()}
	c := nvs.New()
	if err := c.Init(context.Background(), engine); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return c, engine
}

func mustOpen(t *testing.T, c *nvs.Context, name string, writable bool) ids.Handle {
	t.Helper()
	h, err := c.Open(context.Background(), name, writable)
	if err != nil {
		t.Fatalf("Open(%q, %v) error = %v", name, writable, err)
	}
	return h
}
