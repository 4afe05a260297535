package manager

import (
	"context"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/forscht/filedeck/pkg/filestore"
)

func folderKey(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptr(s string) *string { return &s }

// fakeStore is an in-memory Store. Listings of a folder can be held back
// with hold, which ignores the request context on purpose.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	entries map[string]filestore.FileEntry

	lists   []string
	deletes []string
	uploads []string

	failList   error
	failUpload map[string]error
	failCreate error
	held       map[string]chan struct{}
	listed     chan string
	onUpload   func(name string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:    map[string]filestore.FileEntry{},
		failUpload: map[string]error{},
		held:       map[string]chan struct{}{},
		listed:     make(chan string, 64),
	}
}

func (f *fakeStore) add(name string, dir bool, parent *string) filestore.FileEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(name, dir, parent)
}

func (f *fakeStore) addLocked(name string, dir bool, parent *string) filestore.FileEntry {
	f.nextID++
	e := filestore.FileEntry{
		ID:          strconv.Itoa(f.nextID),
		Name:        name,
		IsDirectory: dir,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, f.nextID, 0, time.UTC),
	}
	if parent != nil {
		e.ParentID = ptr(*parent)
	}
	if !dir {
		size := int64(len(name))
		e.Size = &size
	}
	f.entries[e.ID] = e
	return e
}

// hold makes listings of folder block until the returned func is called.
func (f *fakeStore) hold(folder *string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.held[folderKey(folder)] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeStore) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists)
}

func (f *fakeStore) List(_ context.Context, parent *string) ([]filestore.FileEntry, error) {
	key := folderKey(parent)
	f.mu.Lock()
	f.lists = append(f.lists, key)
	ch := f.held[key]
	delete(f.held, key)
	f.mu.Unlock()
	f.listed <- key

	if ch != nil {
		<-ch
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]filestore.FileEntry, 0)
	for _, e := range f.entries {
		if folderKey(e.ParentID) == key {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) Upload(ctx context.Context, name string, r io.Reader, parent *string) (filestore.FileEntry, error) {
	if f.onUpload != nil {
		f.onUpload(name)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return filestore.FileEntry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, name)
	if err := f.failUpload[name]; err != nil {
		return filestore.FileEntry{}, err
	}
	if err := ctx.Err(); err != nil {
		return filestore.FileEntry{}, err
	}
	return f.addLocked(name, false, parent), nil
}

func (f *fakeStore) CreateFolder(_ context.Context, name string, parent *string) (filestore.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return filestore.FileEntry{}, f.failCreate
	}
	return f.addLocked(name, true, parent), nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if _, ok := f.entries[id]; !ok {
		return &filestore.RequestError{Op: filestore.OpDelete, Status: 404, Text: "Not Found"}
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeStore) DownloadURL(id string) string {
	return "http://store.test/files/download/" + id
}

var errBoom = &filestore.RequestError{Op: "upload", Status: 500, Text: "boom"}

