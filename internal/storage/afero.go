package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// FsStore keeps blobs as files on an afero filesystem.
type FsStore struct {
	fs afero.Fs
}

// NewDir stores blobs under dir on the local disk, creating it if needed.
func NewDir(dir string) (*FsStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	log.Info().Str("c", "storage").Str("dir", dir).Msg("using local blob storage")
	return NewFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemory returns a store that lives in memory only.
func NewMemory() *FsStore {
	return NewFs(afero.NewMemMapFs())
}

// NewFs stores blobs at the root of fs. Mutations are logged at debug level.
func NewFs(fs afero.Fs) *FsStore {
	return &FsStore{fs: newLogFs(fs, log.With().Str("c", "storage").Logger())}
}

func (s *FsStore) Name() string {
	return "fs"
}

func (s *FsStore) Put(_ context.Context, key string, r io.Reader) (int64, error) {
	name := blobPath(key)
	tmp := name + ".part"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return n, err
	}
	if err = s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return n, err
	}
	return n, nil
}

func (s *FsStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := s.fs.Open(blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotExist
		}
		return nil, 0, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, stat.Size(), nil
}

func (s *FsStore) Delete(_ context.Context, key string) error {
	err := s.fs.Remove(blobPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// keys are uuids; path.Base keeps a bad key from escaping the root
func blobPath(key string) string {
	return "/" + path.Base("/"+key)
}
