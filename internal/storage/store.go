package storage

import (
	"errors"
	"fmt"
	"io"
)

// NamespaceIndex is the compact id an engine assigns to a namespace name.
type NamespaceIndex uint8

const (
	// Index 0 and 255 are reserved, leaving 254 usable namespaces.
	MinNamespaceIndex NamespaceIndex = 1
	MaxNamespaceIndex NamespaceIndex = 254

	MaxKeyLen    = 15
	MaxValueSize = 1984
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrTypeMismatch  = errors.New("storage: type mismatch")
	ErrNamespaceFull = errors.New("storage: namespace table full")
	ErrInvalidKey    = errors.New("storage: invalid key")
	ErrValueTooLong  = errors.New("storage: value too long")
	ErrClosed        = errors.New("storage: engine closed")
)

// ItemType tags a stored payload with its width and signedness, or marks it
// as a string or blob.
type ItemType uint8

const (
	TypeU8     ItemType = 0x01
	TypeI8     ItemType = 0x11
	TypeU16    ItemType = 0x02
	TypeI16    ItemType = 0x12
	TypeU32    ItemType = 0x04
	TypeI32    ItemType = 0x14
	TypeU64    ItemType = 0x08
	TypeI64    ItemType = 0x18
	TypeString ItemType = 0x21
	TypeBlob   ItemType = 0x42
)

// Fixed reports whether t is one of the integer types.
func (t ItemType) Fixed() bool {
	switch t {
	case TypeU8, TypeI8, TypeU16, TypeI16, TypeU32, TypeI32, TypeU64, TypeI64:
		return true
	}
	return false
}

// Width is the payload size in bytes of a fixed type, 0 otherwise.
func (t ItemType) Width() int {
	if !t.Fixed() {
		return 0
	}
	return int(t & 0x0f)
}

func (t ItemType) Signed() bool {
	return t.Fixed() && t&0x10 != 0
}

func (t ItemType) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeI8:
		return "i8"
	case TypeU16:
		return "u16"
	case TypeI16:
		return "i16"
	case TypeU32:
		return "u32"
	case TypeI32:
		return "i32"
	case TypeU64:
		return "u64"
	case TypeI64:
		return "i64"
	case TypeString:
		return "str"
	case TypeBlob:
		return "blob"
	}
	return fmt.Sprintf("type(0x%02x)", uint8(t))
}

// ParseItemType maps the short names returned by String back to a type.
func ParseItemType(s string) (ItemType, error) {
	for _, t := range []ItemType{TypeU8, TypeI8, TypeU16, TypeI16, TypeU32, TypeI32, TypeU64, TypeI64, TypeString, TypeBlob} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown item type %q", s)
}

// Engine is the persistence collaborator behind the session layer. Every
// item is addressed by (namespace index, key) and carries a type tag.
type Engine interface {
	Valid() bool

	// CreateOrOpenNamespace resolves name to its index. When the namespace
	// does not exist it is created if writable is set, otherwise ErrNotFound
	// is returned.
	CreateOrOpenNamespace(name string, writable bool) (NamespaceIndex, error)

	// WriteItem stores data under key, replacing any previous item with the
	// same key regardless of its type.
	WriteItem(ns NamespaceIndex, key string, typ ItemType, data []byte) error

	// ReadItem copies the stored payload into out, which must hold at least
	// ItemDataSize bytes. A stored tag other than typ yields ErrTypeMismatch.
	ReadItem(ns NamespaceIndex, key string, typ ItemType, out []byte) error

	ItemDataSize(ns NamespaceIndex, key string, typ ItemType) (int, error)
	EraseItem(ns NamespaceIndex, key string) error
	EraseNamespace(ns NamespaceIndex) error

	DebugDump(w io.Writer) error
	Close() error
}
