package manager

import (
	"iter"
	"strings"

	"github.com/forscht/filedeck/pkg/filestore"
)

// Listing caches the entries of the folder that was fetched last and filters
// them by the search term on demand.
//
// Every fetch takes a ticket from begin. A result is applied only if it was
// requested for the folder that is still current and no later ticket has
// settled already, so a slow response for a folder the user left is dropped.
// A failed fetch settles its ticket too, which keeps an older success from
// overwriting the newer error.
type Listing struct {
	entries    []filestore.FileEntry
	searchTerm string

	issued  uint64 // last ticket handed out
	settled uint64 // newest ticket that was applied or failed
}

func (l *Listing) begin() uint64 {
	l.issued++
	return l.issued
}

// accept reports whether the result of ticket, fetched for folder, may
// replace the entries while current is the current folder.
func (l *Listing) accept(ticket uint64, folder, current *string) bool {
	return sameFolder(folder, current) && ticket > l.settled
}

// apply replaces the entries wholesale.
func (l *Listing) apply(ticket uint64, entries []filestore.FileEntry) {
	l.entries = entries
	l.settled = ticket
}

// fail settles ticket without touching the entries.
func (l *Listing) fail(ticket uint64) {
	l.settled = ticket
}

// latest reports whether ticket is the newest one issued.
func (l *Listing) latest(ticket uint64) bool {
	return ticket == l.issued
}

// Entries returns the cached entries. The slice is replaced, never modified,
// so callers may keep it.
func (l *Listing) Entries() []filestore.FileEntry {
	return l.entries
}

func (l *Listing) SearchTerm() string {
	return l.searchTerm
}

func (l *Listing) SetSearchTerm(term string) {
	l.searchTerm = term
}

func (l *Listing) Find(id string) (filestore.FileEntry, bool) {
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return filestore.FileEntry{}, false
}

// Visible yields the entries whose name contains the search term, ignoring
// case. The sequence can be ranged over any number of times.
func (l *Listing) Visible() iter.Seq[filestore.FileEntry] {
	return filterEntries(l.entries, l.searchTerm)
}

func filterEntries(entries []filestore.FileEntry, term string) iter.Seq[filestore.FileEntry] {
	needle := strings.ToLower(term)
	return func(yield func(filestore.FileEntry) bool) {
		for _, e := range entries {
			if needle != "" && !strings.Contains(strings.ToLower(e.Name), needle) {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
