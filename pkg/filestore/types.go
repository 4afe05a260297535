package filestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FileEntry is one node of the remote tree. Wire field names stop here.
type FileEntry struct {
	ID          string
	Name        string
	IsDirectory bool
	// Size is nil for directories and when the store does not report it.
	Size        *int64
	ContentType string
	CreatedAt   time.Time
	// ParentID is nil for entries at the root.
	ParentID    *string
}

// record is the JSON shape the store sends.
type record struct {
	ID          flexID   `json:"id"`
	Filename    string   `json:"filename"`
	ContentType *string  `json:"content_type"`
	Size        *int64   `json:"size"`
	IsDirectory bool     `json:"is_directory"`
	ParentID    *flexID  `json:"parent_id"`
	CreatedAt   flexTime `json:"created_at"`
}

func (r *record) entry() FileEntry {
	e := FileEntry{
		ID:          string(r.ID),
		Name:        r.Filename,
		IsDirectory: r.IsDirectory,
		CreatedAt:   time.Time(r.CreatedAt),
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	if r.ContentType != nil {
		e.ContentType = *r.ContentType
	}
	if !r.IsDirectory && r.Size != nil {
		size := *r.Size
		e.Size = &size
	}
	if r.ParentID != nil && *r.ParentID != "" {
		parent := string(*r.ParentID)
		e.ParentID = &parent
	}
	return e
}

// flexID accepts a JSON number or string and keeps its decimal text.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

type flexTime time.Time

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"}

// UnmarshalJSON is lenient: the timestamp is only shown, so an unknown
// format decodes to the zero time instead of failing the whole listing.
func (f *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = flexTime{}
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*f = flexTime(t)
			return nil
		}
	}
	*f = flexTime{}
	return nil
}

type folderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type response struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
