package dataprovider

import (
	"sort"
	"strings"
	"time"

	"github.com/forscht/filedeck/pkg/ns"
)

// File is one node of the remote tree. Directories have no size, content type
// or blob.
type File struct {
	Id          int64     `json:"id"`
	Name        string    `json:"filename" validate:"notblank,max=255"`
	ContentType string    `json:"content_type,omitempty"`
	Size        *int64    `json:"size,omitempty"`
	Dir         bool      `json:"is_directory"`
	Parent      ns.NullID `json:"parent_id"`
	CTime       time.Time `json:"created_at"`
	BlobKey     string    `json:"-"`
}

// SortFiles orders directories first, then by case-insensitive name.
func SortFiles(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Dir != files[j].Dir {
			return files[i].Dir
		}
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
}
