package manager

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forscht/filedeck/pkg/filestore"
)

func names(entries []filestore.FileEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestVisibleFilter(t *testing.T) {
	var l Listing
	l.apply(l.begin(), []filestore.FileEntry{
		{ID: "1", Name: "Rapor.pdf"},
		{ID: "2", Name: "resim.PNG"},
		{ID: "3", Name: "Raporlar", IsDirectory: true},
	})

	assert.Equal(t, []string{"Rapor.pdf", "resim.PNG", "Raporlar"}, names(slices.Collect(l.Visible())))

	l.SetSearchTerm("RAP")
	assert.Equal(t, []string{"Rapor.pdf", "Raporlar"}, names(slices.Collect(l.Visible())))

	l.SetSearchTerm("png")
	assert.Equal(t, []string{"resim.PNG"}, names(slices.Collect(l.Visible())))

	l.SetSearchTerm("zzz")
	assert.Empty(t, slices.Collect(l.Visible()))
	assert.Len(t, l.Entries(), 3, "filtering never touches the entries")
}

func TestVisibleIsRestartable(t *testing.T) {
	var l Listing
	l.apply(l.begin(), []filestore.FileEntry{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}})
	seq := l.Visible()

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	// early stop
	for e := range seq {
		assert.Equal(t, "a", e.Name)
		break
	}
}

func TestAcceptOrdering(t *testing.T) {
	var l Listing
	a := ptr("a")
	old := l.begin()
	fresh := l.begin()

	assert.True(t, l.accept(fresh, a, ptr("a")))
	l.apply(fresh, nil)
	assert.False(t, l.accept(old, a, ptr("a")), "older ticket after a newer one was applied")
	assert.False(t, l.accept(l.begin(), a, nil), "folder no longer current")
	assert.True(t, l.latest(3))
}

func TestAcceptAfterNewerFailure(t *testing.T) {
	var l Listing
	a := ptr("a")
	old := l.begin()
	fresh := l.begin()

	l.fail(fresh)
	assert.False(t, l.accept(old, a, ptr("a")), "older ticket after a newer one failed")
	assert.True(t, l.accept(l.begin(), a, ptr("a")))
}
