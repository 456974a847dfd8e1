package nvs

import (
	"errors"

	"github.com/sekai02/redcloud-nvs/internal/storage"
)

var (
	ErrNotInitialized = errors.New("nvs: not initialized")
	ErrInvalidHandle  = errors.New("nvs: invalid handle")
	ErrReadOnly       = errors.New("nvs: read only")
	ErrInvalidLength  = errors.New("nvs: invalid length")
	ErrInvalidName    = errors.New("nvs: invalid name")

	// Surfaced unchanged from the engine.
	ErrNotFound     = storage.ErrNotFound
	ErrTypeMismatch = storage.ErrTypeMismatch
)
