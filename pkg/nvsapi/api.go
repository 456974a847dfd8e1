package nvsapi

import (
	"context"
	"io"

	"github.com/sekai02/redcloud-nvs/internal/handle"
	"github.com/sekai02/redcloud-nvs/internal/ids"
)

type SessionAPI interface {
	Open(ctx context.Context, name string, writable bool) (ids.Handle, error)
	Close(ctx context.Context, h ids.Handle) error
	Commit(ctx context.Context, h ids.Handle) error
	Handles(ctx context.Context) ([]handle.Entry, error)
	Dump(ctx context.Context, w io.Writer) error
}

type FixedAPI interface {
	SetI8(ctx context.Context, h ids.Handle, key string, v int8) error
	SetU8(ctx context.Context, h ids.Handle, key string, v uint8) error
	SetI16(ctx context.Context, h ids.Handle, key string, v int16) error
	SetU16(ctx context.Context, h ids.Handle, key string, v uint16) error
	SetI32(ctx context.Context, h ids.Handle, key string, v int32) error
	SetU32(ctx context.Context, h ids.Handle, key string, v uint32) error
	SetI64(ctx context.Context, h ids.Handle, key string, v int64) error
	SetU64(ctx context.Context, h ids.Handle, key string, v uint64) error

	GetI8(ctx context.Context, h ids.Handle, key string) (int8, error)
	GetU8(ctx context.Context, h ids.Handle, key string) (uint8, error)
	GetI16(ctx context.Context, h ids.Handle, key string) (int16, error)
	GetU16(ctx context.Context, h ids.Handle, key string) (uint16, error)
	GetI32(ctx context.Context, h ids.Handle, key string) (int32, error)
	GetU32(ctx context.Context, h ids.Handle, key string) (uint32, error)
	GetI64(ctx context.Context, h ids.Handle, key string) (int64, error)
	GetU64(ctx context.Context, h ids.Handle, key string) (uint64, error)
}

type VariableAPI interface {
	SetString(ctx context.Context, h ids.Handle, key, value string) error
	SetBlob(ctx context.Context, h ids.Handle, key string, value []byte) error
	GetString(ctx context.Context, h ids.Handle, key string, out []byte, length *int) error
	GetBlob(ctx context.Context, h ids.Handle, key string, out []byte, length *int) error
	ReadString(ctx context.Context, h ids.Handle, key string) (string, error)
	ReadBlob(ctx context.Context, h ids.Handle, key string) ([]byte, error)
	EraseKey(ctx context.Context, h ids.Handle, key string) error
	EraseAll(ctx context.Context, h ids.Handle) error
}

type API interface {
	SessionAPI
	FixedAPI
	VariableAPI
}

func HandleFromUint64(v uint64) (ids.Handle, bool) {
	if v == 0 || v > uint64(^uint32(0)) {
		return 0, false
	}
	return ids.Handle(v), true
}

func HandleToUint64(h ids.Handle) uint64 {
	return uint64(h)
}
