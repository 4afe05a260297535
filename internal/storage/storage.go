// Package storage keeps file content. Records in the dataprovider point at
// their content through an opaque blob key.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

var ErrNotExist = errors.New("blob does not exist")

// Storage is a flat key/value blob store.
type Storage interface {
	Name() string
	// Put stores r under key and returns the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	// Get opens the blob for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh random blob key.
func NewKey() string {
	return uuid.NewString()
}

type Config struct {
	Dir string   `mapstructure:"dir"`
	S3  S3Config `mapstructure:"s3"`
}

// New picks the backend from cfg: S3 when a bucket is set, the local
// directory otherwise.
func New(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg.S3.Bucket != "" {
		return NewS3(ctx, &cfg.S3)
	}
	return NewDir(cfg.Dir)
}
