package manager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Upload is one file of a batch. Open is called when its turn comes.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// UploadFromPath reads the file at path on fs.
func UploadFromPath(fs afero.Fs, path string) (Upload, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	if info.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return fromInfo(fs, path, info), nil
}

// CollectUploads expands a path or glob pattern on fs into uploads. A
// matched directory contributes the regular files directly inside it.
func CollectUploads(fs afero.Fs, pattern string) ([]Upload, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, errors.New("no path given")
	}
	matches, err := afero.Glob(fs, pattern)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("nothing matches %s", pattern)
	}

	var files []Upload
	for _, match := range matches {
		info, err := fs.Stat(match)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, fromInfo(fs, match, info))
			continue
		}
		infos, err := afero.ReadDir(fs, match)
		if err != nil {
			return nil, err
		}
		for _, fi := range infos {
			if fi.Mode().IsRegular() {
				files = append(files, fromInfo(fs, filepath.Join(match, fi.Name()), fi))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files in %s", pattern)
	}
	return files, nil
}

func fromInfo(fs afero.Fs, path string, info os.FileInfo) Upload {
	return Upload{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return fs.OpenFile(path, os.O_RDONLY, 0) },
	}
}

// UploadItemFailed reports one file of a batch that did not make it.
type UploadItemFailed struct {
	FileName string
	Cause    error
}

func (e *UploadItemFailed) Error() string {
	return fmt.Sprintf("upload %s: %v", e.FileName, e.Cause)
}

func (e *UploadItemFailed) Unwrap() error {
	return e.Cause
}

// UploadResult summarizes a finished batch.
type UploadResult struct {
	Total     int
	Succeeded int
	// Progress is the completed ratio when the batch ended, 1 unless cancelled.
	Progress  float64
	Failures  []*UploadItemFailed
	Cancelled bool
	Refreshed bool
}

// uploadBatch is the state of the batch in flight.
type uploadBatch struct {
	total     int
	completed int
	succeeded int
	current   string
}

func (b *uploadBatch) progress() float64 {
	if b == nil || b.total == 0 {
		return 0
	}
	return float64(b.completed) / float64(b.total)
}
