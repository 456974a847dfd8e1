package nvs

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sekai02/redcloud-nvs/internal/handle"
	"github.com/sekai02/redcloud-nvs/internal/ids"
	"github.com/sekai02/redcloud-nvs/internal/lock"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

// Context owns all process-scoped session state: the lock, the handle table,
// the handle counter and the engine. The zero value is not usable; call New.
type Context struct {
	lock    lock.Lock
	handles *handle.Table
	counter *ids.HandleCounter
	engine  storage.Engine
	logger  *slog.Logger
}

type Option func(*Context)

// WithLogger sets the logger used for per-operation debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Context with its lock initialized. No engine is attached
// until Init.
func New(opts ...Option) *Context {
	c := &Context{
		handles: handle.NewTable(),
		counter: ids.NewHandleCounter(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	// A fresh Lock cannot already be initialized.
	_ = c.lock.Init()
	return c
}

// Init attaches engine and drops any open sessions. A different engine that
// was already attached is closed first; if that fails the context is left
// without an engine. The handle counter keeps running so handles from before
// Init are never reissued.
func (c *Context) Init(ctx context.Context, engine storage.Engine) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if engine == nil || !engine.Valid() {
		return ErrNotInitialized
	}

	c.logger.Debug("init", "open_sessions", c.handles.Len())
	c.handles.Clear()
	if c.engine != nil && c.engine != engine {
		prev := c.engine
		c.engine = nil
		if err := prev.Close(); err != nil {
			c.logger.Warn("close previous engine", "error", err)
			return fmt.Errorf("close previous engine: %w", err)
		}
	}
	c.engine = engine
	return nil
}

// Deinit closes the engine and drops every session.
func (c *Context) Deinit(ctx context.Context) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if c.engine == nil {
		return ErrNotInitialized
	}

	c.logger.Debug("deinit", "open_sessions", c.handles.Len())
	err = c.engine.Close()
	c.engine = nil
	c.handles.Clear()
	return err
}

// entry resolves h for an operation. Mutating operations additionally
// require a read-write session. Caller holds the lock.
func (c *Context) entry(h ids.Handle, mutating bool) (handle.Entry, error) {
	if c.engine == nil {
		return handle.Entry{}, ErrNotInitialized
	}
	e, ok := c.handles.Lookup(h)
	if !ok {
		return handle.Entry{}, ErrInvalidHandle
	}
	if mutating && e.ReadOnly {
		return handle.Entry{}, ErrReadOnly
	}
	return e, nil
}

// Handles returns a copy of the open sessions ordered by handle.
func (c *Context) Handles(ctx context.Context) ([]handle.Entry, error) {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.handles.Snapshot(), nil
}

// Dump writes the engine's diagnostic listing to w.
func (c *Context) Dump(ctx context.Context, w io.Writer) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if c.engine == nil {
		return ErrNotInitialized
	}
	return c.engine.DebugDump(w)
}
