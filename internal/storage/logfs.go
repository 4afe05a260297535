package storage

import (
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// logFs logs the blob mutations done through an afero.Fs. Reads are only
// logged when a file is closed.
type logFs struct {
	afero.Fs
	logger zerolog.Logger
}

func newLogFs(src afero.Fs, logger zerolog.Logger) afero.Fs {
	return &logFs{Fs: src, logger: logger}
}

func (lf *logFs) event(err error) *zerolog.Event {
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return lf.logger.Error().Err(err)
	}
	return lf.logger.Debug().AnErr("error", err)
}

func (lf *logFs) Open(name string) (afero.File, error) {
	f, err := lf.Fs.Open(name)
	if err != nil {
		lf.event(err).Str("blob", name).Msg("open")
		return f, err
	}
	return &countingFile{File: f, logger: lf.logger}, nil
}

func (lf *logFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := lf.Fs.OpenFile(name, flag, perm)
	if err != nil {
		lf.event(err).Str("blob", name).Int("flag", flag).Msg("open")
		return f, err
	}
	return &countingFile{File: f, logger: lf.logger}, nil
}

func (lf *logFs) Remove(name string) error {
	err := lf.Fs.Remove(name)
	lf.event(err).Str("blob", name).Msg("remove")
	return err
}

func (lf *logFs) Rename(oldname, newname string) error {
	err := lf.Fs.Rename(oldname, newname)
	lf.event(err).Str("from", oldname).Str("to", newname).Msg("rename")
	return err
}

// countingFile reports how many bytes went through it when closed.
type countingFile struct {
	afero.File
	logger  zerolog.Logger
	read    int64
	written int64
}

func (f *countingFile) Read(p []byte) (int, error) {
	n, err := f.File.Read(p)
	f.read += int64(n)
	if err != nil && err != io.EOF {
		f.logger.Error().Str("blob", f.Name()).Err(err).Msg("read")
	}
	return n, err
}

func (f *countingFile) Write(p []byte) (int, error) {
	n, err := f.File.Write(p)
	f.written += int64(n)
	if err != nil {
		f.logger.Error().Str("blob", f.Name()).Err(err).Msg("write")
	}
	return n, err
}

func (f *countingFile) Close() error {
	err := f.File.Close()
	ev := f.logger.Debug()
	if err != nil {
		ev = f.logger.Error().Err(err)
	}
	ev.Str("blob", f.Name()).Int64("read", f.read).Int64("written", f.written).Msg("close")
	return err
}
