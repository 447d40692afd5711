package ports

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when the key has no value.
var ErrNotFound = errors.New("store: key not found")

// Store is the flat key-value persistence contract backing the credential
// store. Values are opaque strings; all writes are whole-record replacements.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
