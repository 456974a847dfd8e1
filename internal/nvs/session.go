package nvs

import (
	"context"

	"github.com/sekai02/redcloud-nvs/internal/handle"
	"github.com/sekai02/redcloud-nvs/internal/ids"
)

// Open resolves name through the engine, creating the namespace when
// writable is set, and returns a fresh handle. Engine errors are returned
// unchanged and consume no handle.
func (c *Context) Open(ctx context.Context, name string, writable bool) (ids.Handle, error) {
	if name == "" {
		return 0, ErrInvalidName
	}

	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	c.logger.Debug("open", "namespace", name, "writable", writable)
	if c.engine == nil {
		return 0, ErrNotInitialized
	}

	ns, err := c.engine.CreateOrOpenNamespace(name, writable)
	if err != nil {
		c.logger.Warn("open failed", "namespace", name, "error", err)
		return 0, err
	}

	h, err := c.counter.Next()
	if err != nil {
		return 0, err
	}
	if err := c.handles.Insert(handle.Entry{Handle: h, ReadOnly: !writable, Namespace: ns}); err != nil {
		return 0, err
	}
	return h, nil
}

// Close releases h. Unknown or already closed handles are ignored; the only
// error is failing to acquire the lock.
func (c *Context) Close(ctx context.Context, h ids.Handle) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c.logger.Debug("close", "handle", h)
	c.handles.Remove(h)
	return nil
}

// Commit only validates h; writes reach the engine immediately.
func (c *Context) Commit(ctx context.Context, h ids.Handle) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	_, err = c.entry(h, false)
	return err
}
