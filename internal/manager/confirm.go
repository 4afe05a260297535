package manager

import "github.com/forscht/filedeck/pkg/filestore"

// Kind names an action that needs the user's confirmation.
type Kind int

const (
	KindDelete Kind = iota
	KindDownload
	kindCount
)

func (k Kind) String() string {
	if k == KindDownload {
		return "download"
	}
	return "delete"
}

// Target is the snapshot of an entry taken when a confirmation is requested.
// It stays valid after a refresh drops the entry from the listing.
type Target struct {
	ID          string
	Name        string
	Size        *int64
	IsDirectory bool
}

func targetOf(e filestore.FileEntry) Target {
	t := Target{ID: e.ID, Name: e.Name, IsDirectory: e.IsDirectory}
	if e.Size != nil {
		size := *e.Size
		t.Size = &size
	}
	return t
}

// Gate holds at most one open confirmation per kind. A new request replaces
// the pending one.
type Gate struct {
	open [kindCount]*Target
}

func (g *Gate) Request(kind Kind, t Target) {
	g.open[kind] = &t
}

// Pending returns the open target of kind.
func (g *Gate) Pending(kind Kind) (Target, bool) {
	if t := g.open[kind]; t != nil {
		return *t, true
	}
	return Target{}, false
}

// take closes kind and returns its target. ok is false when it was not open.
func (g *Gate) take(kind Kind) (t Target, ok bool) {
	t, ok = g.Pending(kind)
	g.open[kind] = nil
	return t, ok
}

// Cancel closes kind without side effects. It is a no-op when closed.
func (g *Gate) Cancel(kind Kind) {
	g.open[kind] = nil
}
