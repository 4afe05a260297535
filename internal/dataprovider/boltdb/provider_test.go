package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dp "github.com/forscht/filedeck/internal/dataprovider"
	"github.com/forscht/filedeck/pkg/ns"
)

func newProvider(t *testing.T) dp.DataProvider {
	t.Helper()
	p, err := New(&Config{DbPath: filepath.Join(t.TempDir(), "filedeck.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func size(n int64) *int64 { return &n }

func TestCreateAndChildren(t *testing.T) {
	p := newProvider(t)

	docs, err := p.Create(&dp.File{Name: "Belgeler", Dir: true})
	require.NoError(t, err)
	assert.NotZero(t, docs.Id)
	assert.False(t, docs.Parent.Valid())
	assert.False(t, docs.CTime.IsZero())

	_, err = p.Create(&dp.File{Name: "rapor.pdf", Size: size(10), ContentType: "application/pdf"})
	require.NoError(t, err)
	inner, err := p.Create(&dp.File{Name: "notlar.txt", Size: size(3), Parent: ns.NullID(docs.Id)})
	require.NoError(t, err)
	assert.Equal(t, ns.NullID(docs.Id), inner.Parent)

	root, err := p.Children(0)
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, "Belgeler", root[0].Name, "directories sort first")
	assert.Equal(t, "rapor.pdf", root[1].Name)
	assert.Equal(t, int64(10), *root[1].Size)

	kids, err := p.Children(ns.NullID(docs.Id))
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, inner.Id, kids[0].Id)
}

func TestCreateResolvesSiblingCollisions(t *testing.T) {
	p := newProvider(t)

	first, err := p.Create(&dp.File{Name: "X", Dir: true})
	require.NoError(t, err)
	second, err := p.Create(&dp.File{Name: "X", Dir: true})
	require.NoError(t, err)

	assert.Equal(t, "X", first.Name)
	assert.Equal(t, "X-1", second.Name)
	assert.NotEqual(t, first.Id, second.Id)

	// same name in a different folder is free
	nested, err := p.Create(&dp.File{Name: "X", Dir: true, Parent: ns.NullID(first.Id)})
	require.NoError(t, err)
	assert.Equal(t, "X", nested.Name)
}

func TestCreateInvalidParent(t *testing.T) {
	p := newProvider(t)

	file, err := p.Create(&dp.File{Name: "a.txt", Size: size(1)})
	require.NoError(t, err)

	_, err = p.Create(&dp.File{Name: "b.txt", Parent: ns.NullID(file.Id)})
	assert.ErrorIs(t, err, dp.ErrInvalidParent)

	_, err = p.Create(&dp.File{Name: "b.txt", Parent: 424242})
	assert.ErrorIs(t, err, dp.ErrInvalidParent)

	_, err = p.Children(ns.NullID(file.Id))
	assert.ErrorIs(t, err, dp.ErrInvalidParent)
}

func TestDeleteSubtree(t *testing.T) {
	p := newProvider(t)

	top, err := p.Create(&dp.File{Name: "Projeler", Dir: true})
	require.NoError(t, err)
	mid, err := p.Create(&dp.File{Name: "2024", Dir: true, Parent: ns.NullID(top.Id)})
	require.NoError(t, err)
	leaf, err := p.Create(&dp.File{Name: "plan.txt", Parent: ns.NullID(mid.Id), BlobKey: "blob-1"})
	require.NoError(t, err)
	keep, err := p.Create(&dp.File{Name: "keep.txt"})
	require.NoError(t, err)

	removed, err := p.Delete(top.Id)
	require.NoError(t, err)
	require.Len(t, removed, 3)
	var keys []string
	for _, f := range removed {
		keys = append(keys, f.BlobKey)
	}
	assert.Contains(t, keys, "blob-1")

	for _, id := range []int64{top.Id, mid.Id, leaf.Id} {
		_, err = p.Get(id)
		assert.ErrorIs(t, err, dp.ErrNotExist)
	}

	root, err := p.Children(0)
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, keep.Id, root[0].Id)

	_, err = p.Delete(top.Id)
	assert.ErrorIs(t, err, dp.ErrNotExist)
}
