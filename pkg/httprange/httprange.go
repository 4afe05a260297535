// Package httprange parses single-range "bytes=" Range headers for partial
// downloads. Multiple ranges and other units are rejected.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Range is a resolved byte range of a blob of Size bytes.
type Range struct {
	Start  int64
	Length int64
	Size   int64
}

var ErrInvalid = errors.New("invalid range header format")

// ErrUnsatisfiable means the header is well formed but lies outside the blob.
var ErrUnsatisfiable = errors.New("range not satisfiable")

// ContentRange is the value of the Content-Range response header.
func (r *Range) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.Start+r.Length-1, r.Size)
}

// Parse resolves header against a blob of size bytes. An end past the last
// byte is clamped, as is a suffix longer than the blob.
func Parse(header string, size int64) (*Range, error) {
	unit, rng, ok := strings.Cut(strings.TrimSpace(header), "=")
	if !ok || unit != "bytes" || strings.Contains(rng, ",") {
		return nil, ErrInvalid
	}
	first, last, ok := strings.Cut(strings.TrimSpace(rng), "-")
	if !ok {
		return nil, ErrInvalid
	}

	var start, end int64
	switch {
	case first == "" && last == "":
		return nil, ErrInvalid
	case first == "":
		// "-n": the last n bytes
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return nil, ErrInvalid
		}
		if n == 0 || size == 0 {
			return nil, ErrUnsatisfiable
		}
		if n > size {
			n = size
		}
		start, end = size-n, size-1
	default:
		var err error
		if start, err = strconv.ParseInt(first, 10, 64); err != nil || start < 0 {
			return nil, ErrInvalid
		}
		end = size - 1
		if last != "" {
			if end, err = strconv.ParseInt(last, 10, 64); err != nil || end < start {
				return nil, ErrInvalid
			}
			if end > size-1 {
				end = size - 1
			}
		}
		if start >= size {
			return nil, ErrUnsatisfiable
		}
	}

	return &Range{Start: start, Length: end - start + 1, Size: size}, nil
}
