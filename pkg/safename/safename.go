// Package safename turns user supplied file names into names that are safe to
// store and display, and picks a free name when a sibling already uses one.
package safename

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const fallback = "file"

var spaces = regexp.MustCompile(`\s+`)

// Clean keeps unicode letters and digits plus `.-_ ()`, replaces every other
// rune with '_', collapses whitespace into '_' and NFC-normalizes the result so
// the same visual name always produces the same bytes.
func Clean(name string) string {
	base := strings.TrimSpace(name)
	base = strings.ReplaceAll(base, "\\", "/")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = norm.NFC.String(strings.TrimSpace(base))
	if base == "" {
		return fallback
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case strings.ContainsRune(".-_ ()", r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune('_')
		}
	}

	out := spaces.ReplaceAllString(strings.TrimSpace(b.String()), "_")
	if out == "" || strings.Trim(out, ".") == "" {
		return fallback
	}
	return out
}

// Resolve returns name when taken reports false for it, otherwise the first of
// "stem-1.ext", "stem-2.ext", ... that is free.
func Resolve(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem, ext = name, ""
	}
	for i := 1; ; i++ {
		candidate := stem + "-" + strconv.Itoa(i) + ext
		if !taken(candidate) {
			return candidate
		}
	}
}
