package manager

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/forscht/filedeck/pkg/safename"
)

// Saver stores the content behind a download URL. It runs detached from the
// controller and reports nothing back.
type Saver interface {
	Save(ctx context.Context, target Target, url string)
}

// Downloader is implemented by *filestore.Client.
type Downloader interface {
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
}

// FileSaver writes downloads into a directory, picking a free name when the
// file already exists there. Saves may run concurrently; a name stays
// reserved from the moment it is picked until its file is in place.
type FileSaver struct {
	fs       afero.Fs
	dir      string
	dl       Downloader
	notifier Notifier

	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewFileSaver returns a saver writing into dir on fs. notifier may be nil.
func NewFileSaver(fs afero.Fs, dir string, dl Downloader, notifier Notifier) *FileSaver {
	return &FileSaver{fs: fs, dir: dir, dl: dl, notifier: notifier, reserved: map[string]struct{}{}}
}

func (s *FileSaver) Save(ctx context.Context, target Target, url string) {
	path, err := s.save(ctx, target)
	if err != nil {
		log.Error().Str("c", "manager").Str("url", url).Err(err).Msg("download failed")
		s.notify(Notice{Level: LevelError, Title: "Download failed", Message: target.Name + ": " + userMessage(err)})
		return
	}
	log.Info().Str("c", "manager").Str("url", url).Str("path", path).Msg("download saved")
	s.notify(Notice{Level: LevelSuccess, Title: "Download finished", Message: "Saved to " + path})
}

func (s *FileSaver) save(ctx context.Context, target Target) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	name := s.reserve(safename.Clean(target.Name))
	defer s.release(name)
	path := filepath.Join(s.dir, name)

	f, err := afero.TempFile(s.fs, s.dir, name+".*.part")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	_, err = s.dl.Download(ctx, target.ID, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = s.fs.Rename(tmp, path)
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return "", err
	}
	return path, nil
}

// reserve picks a name that neither exists in the directory nor is held by
// another save in progress.
func (s *FileSaver) reserve(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = safename.Resolve(name, func(n string) bool {
		if _, ok := s.reserved[n]; ok {
			return true
		}
		ok, _ := afero.Exists(s.fs, filepath.Join(s.dir, n))
		return ok
	})
	s.reserved[name] = struct{}{}
	return name
}

func (s *FileSaver) release(name string) {
	s.mu.Lock()
	delete(s.reserved, name)
	s.mu.Unlock()
}

func (s *FileSaver) notify(n Notice) {
	if s.notifier != nil {
		s.notifier.Notify(n)
	}
}
