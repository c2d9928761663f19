package historystore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when nothing has been stored under the key yet.
var ErrNotFound = errors.New("history key not found")

// Storage persists the serialized session log under a single durable key.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
