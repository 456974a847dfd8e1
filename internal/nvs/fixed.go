package nvs

import (
	"context"
	"encoding/binary"

	"github.com/sekai02/redcloud-nvs/internal/ids"
	"github.com/sekai02/redcloud-nvs/internal/storage"
)

// Integer is the set of fixed-width values the engine stores.
type Integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

func setFixed[T Integer](ctx context.Context, c *Context, h ids.Handle, key string, typ storage.ItemType, value T) error {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(value))
	return c.write(ctx, h, key, typ, raw[:typ.Width()])
}

func getFixed[T Integer](ctx context.Context, c *Context, h ids.Handle, key string, typ storage.ItemType) (T, error) {
	var raw [8]byte
	if err := c.readFixed(ctx, h, key, typ, raw[:typ.Width()]); err != nil {
		return 0, err
	}
	return T(binary.LittleEndian.Uint64(raw[:])), nil
}

// write forwards a set to the engine after handle and read-only checks.
func (c *Context) write(ctx context.Context, h ids.Handle, key string, typ storage.ItemType, data []byte) error {
	release, err := c.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	c.logger.Debug("set", "handle", h, "key", key, "type", typ, "size", len(data))
	e, err := c.entry(h, true)
	if err != nil {
		return err
	}
	if err := c.engine.WriteItem(e.Namespace, key, typ, data); err != nil {
		c.logger.Warn("set failed", "handle", h, "key", key, "error", err)
		return err
	}
	return nil
}

func (c *Context) readFixed(ctx context.Context, h ids.Handle, key string, typ storage.ItemType, out []byte) error {
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
	return c.engine.ReadItem(e.Namespace, key, typ, out)
}

func (c *Context) SetI8(ctx context.Context, h ids.Handle, key string, v int8) error {
	return setFixed(ctx, c, h, key, storage.TypeI8, v)
}

func (c *Context) SetU8(ctx context.Context, h ids.Handle, key string, v uint8) error {
	return setFixed(ctx, c, h, key, storage.TypeU8, v)
}

func (c *Context) SetI16(ctx context.Context, h ids.Handle, key string, v int16) error {
	return setFixed(ctx, c, h, key, storage.TypeI16, v)
}

func (c *Context) SetU16(ctx context.Context, h ids.Handle, key string, v uint16) error {
	return setFixed(ctx, c, h, key, storage.TypeU16, v)
}

func (c *Context) SetI32(ctx context.Context, h ids.Handle, key string, v int32) error {
	return setFixed(ctx, c, h, key, storage.TypeI32, v)
}

func (c *Context) SetU32(ctx context.Context, h ids.Handle, key string, v uint32) error {
	return setFixed(ctx, c, h, key, storage.TypeU32, v)
}

func (c *Context) SetI64(ctx context.Context, h ids.Handle, key string, v int64) error {
	return setFixed(ctx, c, h, key, storage.TypeI64, v)
}

func (c *Context) SetU64(ctx context.Context, h ids.Handle, key string, v uint64) error {
	return setFixed(ctx, c, h, key, storage.TypeU64, v)
}

func (c *Context) GetI8(ctx context.Context, h ids.Handle, key string) (int8, error) {
	return getFixed[int8](ctx, c, h, key, storage.TypeI8)
}

func (c *Context) GetU8(ctx context.Context, h ids.Handle, key string) (uint8, error) {
	return getFixed[uint8](ctx, c, h, key, storage.TypeU8)
}

func (c *Context) GetI16(ctx context.Context, h ids.Handle, key string) (int16, error) {
	return getFixed[int16](ctx, c, h, key, storage.TypeI16)
}

func (c *Context) GetU16(ctx context.Context, h ids.Handle, key string) (uint16, error) {
	return getFixed[uint16](ctx, c, h, key, storage.TypeU16)
}

func (c *Context) GetI32(ctx context.Context, h ids.Handle, key string) (int32, error) {
	return getFixed[int32](ctx, c, h, key, storage.TypeI32)
}

func (c *Context) GetU32(ctx context.Context, h ids.Handle, key string) (uint32, error) {
	return getFixed[uint32](ctx, c, h, key, storage.TypeU32)
}

func (c *Context) GetI64(ctx context.Context, h ids.Handle, key string) (int64, error) {
	return getFixed[int64](ctx, c, h, key, storage.TypeI64)
}

func (c *Context) GetU64(ctx context.Context, h ids.Handle, key string) (uint64, error) {
	return getFixed[uint64](ctx, c, h, key, storage.TypeU64)
}
