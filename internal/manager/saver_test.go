package manager

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDownloader struct {
	content string
	err     error
}

func (f fakeDownloader) Download(_ context.Context, _ string, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, f.content)
	if err != nil {
		return int64(n), err
	}
	return int64(n), f.err
}

// gatedDownloader writes the content for an id only after every expected
// download has started.
type gatedDownloader struct {
	started *sync.WaitGroup
	content map[string]string
}

func (g gatedDownloader) Download(_ context.Context, id string, w io.Writer) (int64, error) {
	g.started.Done()
	g.started.Wait()
	n, err := io.WriteString(w, g.content[id])
	return int64(n), err
}

func TestFileSaverConcurrentSavesKeepBothFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewNoticeQueue(10)
	var started sync.WaitGroup
	started.Add(2)
	s := NewFileSaver(fs, "/dl", gatedDownloader{
		started: &started,
		content: map[string]string{"1": "birinci", "2": "ikinci"},
	}, q)

	var wg sync.WaitGroup
	for _, target := range []Target{{ID: "1", Name: "a b.txt"}, {ID: "2", Name: "a_b.txt"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Save(context.Background(), target, "u")
		}()
	}
	wg.Wait()

	var got []string
	for _, name := range []string{"a_b.txt", "a_b-1.txt"} {
		data, err := afero.ReadFile(fs, filepath.Join("/dl", name))
		require.NoError(t, err, name)
		got = append(got, string(data))
	}
	assert.ElementsMatch(t, []string{"birinci", "ikinci"}, got)

	infos, err := afero.ReadDir(fs, "/dl")
	require.NoError(t, err)
	assert.Len(t, infos, 2, "no partial files left behind")
	assert.Equal(t, 0, q.Count(LevelError))
	assert.Len(t, q.Pending(), 2)
}

func TestFileSaverPicksFreeName(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewNoticeQueue(10)
	s := NewFileSaver(fs, "/indirilenler", fakeDownloader{content: "veri"}, q)
	target := Target{ID: "5", Name: "rapor.pdf"}

	s.Save(context.Background(), target, "http://x/files/download/5")
	s.Save(context.Background(), target, "http://x/files/download/5")

	for _, name := range []string{"rapor.pdf", "rapor-1.pdf"} {
		data, err := afero.ReadFile(fs, filepath.Join("/indirilenler", name))
		require.NoError(t, err, name)
		assert.Equal(t, "veri", string(data))
	}
	assert.Equal(t, 0, q.Count(LevelWarning))
	assert.Len(t, q.Pending(), 2)
}

func TestFileSaverCleansUpOnFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	q := NewNoticeQueue(10)
	s := NewFileSaver(fs, "/dl", fakeDownloader{content: "yarım", err: errors.New("reset")}, q)

	s.Save(context.Background(), Target{ID: "1", Name: "../a.bin"}, "u")

	infos, err := afero.ReadDir(fs, "/dl")
	require.NoError(t, err)
	assert.Empty(t, infos, "partial file removed")
	require.Equal(t, 1, q.Count(LevelError))
	assert.Equal(t, "Download failed", q.Pending()[0].Title)
}
