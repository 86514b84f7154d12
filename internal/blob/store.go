// Package blob stores diagnostics documents in a local directory or an
// S3-compatible bucket.
package blob

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("blob not found")

// Store persists named JSON documents. Names carry no extension.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	// List returns the names starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

const extension = ".json"
