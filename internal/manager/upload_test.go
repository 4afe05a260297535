package manager

import (
	"io"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadNames(files []Upload) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	sort.Strings(names)
	return names
}

func TestCollectUploads(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/a.txt", []byte("aaa"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/b.jpg", []byte("b"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/sub/c.txt", []byte("c"), 0o644))

	t.Run("single file", func(t *testing.T) {
		files, err := CollectUploads(fs, "/in/a.txt")
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "a.txt", files[0].Name)
		assert.EqualValues(t, 3, files[0].Size)

		rc, err := files[0].Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "aaa", string(data))
	})

	t.Run("directory is one level deep", func(t *testing.T) {
		files, err := CollectUploads(fs, " /in ")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.jpg"}, uploadNames(files))
	})

	t.Run("pattern", func(t *testing.T) {
		files, err := CollectUploads(fs, "/in/*.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt"}, uploadNames(files))
	})

	t.Run("no match", func(t *testing.T) {
		_, err := CollectUploads(fs, "/in/*.pdf")
		assert.Error(t, err)
	})

	t.Run("blank", func(t *testing.T) {
		_, err := CollectUploads(fs, "  ")
		assert.Error(t, err)
	})
}

func TestUploadFromPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/not.txt", []byte("abc"), 0o644))

	up, err := UploadFromPath(fs, "/src/not.txt")
	require.NoError(t, err)
	assert.Equal(t, "not.txt", up.Name)
	assert.Equal(t, int64(3), up.Size)
	rc, err := up.Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "abc", string(data))

	_, err = UploadFromPath(fs, "/src")
	assert.Error(t, err)
}
