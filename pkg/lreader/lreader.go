// Package lreader provides a reader that caps the number of bytes that may be
// read from an underlying io.Reader. Unlike io.LimitReader, going past the cap
// is reported as ErrTooLarge instead of a silent io.EOF, so callers can tell a
// truncated upload apart from a complete one.
package lreader

import (
	"errors"
	"io"
)

// ErrTooLarge is returned once the underlying reader yields more than the limit.
var ErrTooLarge = errors.New("content exceeds size limit")

type lreader struct {
	r      io.Reader // underlying reader
	remain int64     // bytes still allowed
	n      int64     // bytes read so far
}

// Reader is an io.Reader that also reports how many bytes went through it.
type Reader interface {
	io.Reader
	N() int64
}

// New returns a Reader that reads from r and fails with ErrTooLarge as soon as
// more than limit bytes are seen. A limit <= 0 disables the cap.
func New(r io.Reader, limit int64) Reader {
	if limit <= 0 {
		limit = -1
	}
	return &lreader{r: r, remain: limit}
}

// Read reads up to len(p) bytes. When the cap is active, it asks the underlying
// reader for at most remain+1 bytes so an overflow is detected without
// consuming an unbounded amount of input.
func (l *lreader) Read(p []byte) (int, error) {
	if l.remain < 0 {
		n, err := l.r.Read(p)
		l.n += int64(n)
		return n, err
	}
	if int64(len(p)) > l.remain+1 {
		p = p[:l.remain+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remain {
		l.n += l.remain
		n = int(l.remain)
		l.remain = 0
		return n, ErrTooLarge
	}
	l.remain -= int64(n)
	l.n += int64(n)
	return n, err
}

func (l *lreader) N() int64 {
	return l.n
}
