package nvs

import (
	"context"
	"strings"

	"github.com/sekai02/redcloud-nvs/internal/handle"
	"github.com/sekai02/redcloud-nvs/internal/ids"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

// SetString stores value with a trailing NUL, so the stored size is
// len(value)+1.
func (c *Context) SetString(ctx context.Context, h ids.Handle, key, value string) error {
	data := make([]byte, len(value)+1)
	copy(data, value)
	return c.write(ctx, h, key, storage.TypeString, data)
}

func (c *Context) SetBlob(ctx context.Context, h ids.Handle, key string, value []byte) error {
	return c.write(ctx, h, key, storage.TypeBlob, value)
}

// GetString reads a string including its NUL terminator. See getVariable for
// how out and length interact.
func (c *Context) GetString(ctx context.Context, h ids.Handle, key string, out []byte, length *int) error {
	return c.getVariable(ctx, h, key, storage.TypeString, out, length)
}

func (c *Context) GetBlob(ctx context.Context, h ids.Handle, key string, out []byte, length *int) error {
	return c.getVariable(ctx, h, key, storage.TypeBlob, out, length)
}

// getVariable implements the size-negotiating read:
//   - length nil: ErrInvalidLength, nothing can be reported.
//   - out nil: *length is set to the stored size.
//   - capacity (*length, bounded by len(out)) below the stored size:
//     *length is set to the stored size, ErrInvalidLength, out untouched.
//   - otherwise the value is copied into out and *length is set to the
//     number of bytes written.
func (c *Context) getVariable(ctx context.Context, h ids.Handle, key string, typ storage.ItemType, out []byte, length *int) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c.logger.Debug("get", "handle", h, "key", key, "type", typ)
	e, err := c.entry(h, false)
	if err != nil {
		return err
	}

	size, err := c.engine.ItemDataSize(e.Namespace, key, typ)
	if err != nil {
		return err
	}

	if length == nil {
		return ErrInvalidLength
	}
	if out == nil {
		*length = size
		return nil
	}
	if min(*length, len(out)) < size {
		*length = size
		return ErrInvalidLength
	}

	if err := c.engine.ReadItem(e.Namespace, key, typ, out[:size]); err != nil {
		return err
	}
	*length = size
	return nil
}

// readVariable runs both phases under a single lock hold.
func (c *Context) readVariable(ctx context.Context, h ids.Handle, key string, typ storage.ItemType) ([]byte, error) {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	c.logger.Debug("read", "handle", h, "key", key, "type", typ)
	e, err := c.entry(h, false)
	if err != nil {
		return nil, err
	}

	size, err := c.engine.ItemDataSize(e.Namespace, key, typ)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	if err := c.engine.ReadItem(e.Namespace, key, typ, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadString returns the stored string without its terminator.
func (c *Context) ReadString(ctx context.Context, h ids.Handle, key string) (string, error) {
	data, err := c.readVariable(ctx, h, key, storage.TypeString)
	if err != nil {
		return "", err
	}
	s := string(data)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s, nil
}

func (c *Context) ReadBlob(ctx context.Context, h ids.Handle, key string) ([]byte, error) {
	return c.readVariable(ctx, h, key, storage.TypeBlob)
}

// EraseKey removes one key. A missing key surfaces the engine's ErrNotFound.
func (c *Context) EraseKey(ctx context.Context, h ids.Handle, key string) error {
	return c.erase(ctx, h, "erase_key", func(e handle.Entry) error {
		return c.engine.EraseItem(e.Namespace, key)
	})
}

// EraseAll removes every key in the session's namespace.
func (c *Context) EraseAll(ctx context.Context, h ids.Handle) error {
	return c.erase(ctx, h, "erase_all", func(e handle.Entry) error {
		return c.engine.EraseNamespace(e.Namespace)
	})
}

func (c *Context) erase(ctx context.Context, h ids.Handle, op string, fn func(handle.Entry) error) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c.logger.Debug(op, "handle", h)
	e, err := c.entry(h, true)
	if err != nil {
		return err
	}
	return fn(e)
}
