package manager

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forscht/filedeck/pkg/filestore"
)

type harness struct {
	store   *fakeStore
	notices *NoticeQueue
	ctrl    *Controller
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{store: newFakeStore(), notices: NewNoticeQueue(100)}
	opts.Notifier = h.notices
	h.ctrl = New(h.store, opts)
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) levels() []Level {
	var out []Level
	for _, n := range h.notices.Pending() {
		out = append(out, n.Level)
	}
	return out
}

func memUpload(name, content string) Upload {
	return Upload{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func waitListed(t *testing.T, s *fakeStore, folder string) {
	t.Helper()
	for {
		select {
		case got := <-s.listed:
			if got == folder {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("list(%q) was never issued", folder)
		}
	}
}

func TestRefreshAndEnterFolder(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	docs := h.store.add("Docs", true, nil)
	h.store.add("a.txt", false, nil)
	inner := h.store.add("inner.txt", false, &docs.ID)

	require.True(t, h.ctrl.Refresh(ctx))
	assert.Len(t, h.ctrl.Entries(), 2)

	require.True(t, h.ctrl.EnterFolder(ctx, docs.ID))
	assert.Equal(t, docs.ID, *h.ctrl.CurrentFolder())
	path := h.ctrl.Path()
	require.Len(t, path, 2)
	assert.Equal(t, "Docs", path[1].Name)
	require.Len(t, h.ctrl.Entries(), 1)
	assert.Equal(t, inner.ID, h.ctrl.Entries()[0].ID)
	for _, e := range h.ctrl.Entries() {
		assert.Equal(t, docs.ID, *e.ParentID)
	}

	// files and unknown ids are not folders
	assert.False(t, h.ctrl.EnterFolder(ctx, inner.ID))
	assert.False(t, h.ctrl.EnterFolder(ctx, "nope"))
	assert.Equal(t, docs.ID, *h.ctrl.CurrentFolder())

	require.True(t, h.ctrl.GoToBreadcrumb(ctx, 0))
	assert.Nil(t, h.ctrl.CurrentFolder())
	assert.Len(t, h.ctrl.Entries(), 2)

	assert.False(t, h.ctrl.GoToBreadcrumb(ctx, 3))
	assert.False(t, h.ctrl.Up(ctx))
}

func TestStaleNavigationResponseDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	slow := h.store.add("Slow", true, nil)
	h.store.add("root.txt", false, nil)
	h.store.add("in-slow.txt", false, &slow.ID)
	require.True(t, h.ctrl.Refresh(ctx))
	waitListed(t, h.store, "")

	release := h.store.hold(&slow.ID)
	done := make(chan bool)
	go func() { done <- h.ctrl.EnterFolder(ctx, slow.ID) }()
	waitListed(t, h.store, slow.ID)

	// the user leaves before the slow listing answers
	require.True(t, h.ctrl.GoHome(ctx))
	release()
	assert.False(t, <-done, "slow listing must be discarded")

	assert.Nil(t, h.ctrl.CurrentFolder())
	assert.ElementsMatch(t, []string{"Slow", "root.txt"}, names(h.ctrl.Entries()))
	assert.False(t, h.ctrl.Snapshot().Loading)
}

func TestStaleRefreshForSameFolderDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.store.add("first.txt", false, nil)

	release := h.store.hold(nil)
	done := make(chan bool)
	go func() { done <- h.ctrl.Refresh(ctx) }()
	waitListed(t, h.store, "")

	h.store.add("second.txt", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))
	assert.Len(t, h.ctrl.Entries(), 2)

	// make the late answer distinguishable, then let it through
	h.store.add("third.txt", false, nil)
	release()
	assert.False(t, <-done)
	assert.Len(t, h.ctrl.Entries(), 2, "older request must not overwrite a newer result")
}

func TestOlderSuccessDoesNotClearNewerFailure(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.store.add("a.txt", false, nil)

	release := h.store.hold(nil)
	done := make(chan bool)
	go func() { done <- h.ctrl.Refresh(ctx) }()
	waitListed(t, h.store, "")

	h.store.mu.Lock()
	h.store.failList = &filestore.RequestError{Op: filestore.OpList, Status: 503, Text: "Service Unavailable"}
	h.store.mu.Unlock()
	assert.False(t, h.ctrl.Refresh(ctx))
	require.NotEmpty(t, h.ctrl.ListingError())

	h.store.mu.Lock()
	h.store.failList = nil
	h.store.mu.Unlock()
	release()
	assert.False(t, <-done)
	assert.NotEmpty(t, h.ctrl.ListingError(), "older success must not clear the newer error")
	assert.Empty(t, h.ctrl.Entries())
}

func TestListingErrorPersistsUntilRetry(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.store.add("a.txt", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))

	h.store.mu.Lock()
	h.store.failList = &filestore.RequestError{Op: filestore.OpList, Status: 503, Text: "Service Unavailable"}
	h.store.mu.Unlock()

	assert.False(t, h.ctrl.Refresh(ctx))
	assert.Equal(t, "The file server ran into a problem (503).", h.ctrl.ListingError())
	assert.Len(t, h.ctrl.Entries(), 1, "entries survive a failed refresh")

	// still failing
	assert.False(t, h.ctrl.Retry(ctx))
	assert.NotEmpty(t, h.ctrl.Snapshot().ListingError)

	h.store.mu.Lock()
	h.store.failList = nil
	h.store.mu.Unlock()
	assert.True(t, h.ctrl.Retry(ctx))
	assert.Empty(t, h.ctrl.ListingError())
}

func TestSearch(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	h.store.add("Tatil.jpg", false, nil)
	h.store.add("fatura.pdf", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))

	assert.Len(t, h.ctrl.VisibleEntries(), 2)

	h.ctrl.SetSearchTerm("TATIL")
	assert.Equal(t, []string{"Tatil.jpg"}, names(h.ctrl.VisibleEntries()))
	assert.Equal(t, "TATIL", h.ctrl.SearchTerm())

	h.ctrl.SetSearchTerm("xyz")
	assert.Empty(t, h.ctrl.VisibleEntries())
	assert.Len(t, h.ctrl.Entries(), 2)
	snap := h.ctrl.Snapshot()
	assert.Empty(t, snap.Entries)
	assert.Equal(t, 2, snap.TotalEntries)

	h.ctrl.SetSearchTerm("")
	assert.Len(t, h.ctrl.VisibleEntries(), 2)
}

func TestCreateFolderRoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	parent := h.store.add("Projeler", true, nil)
	require.True(t, h.ctrl.Refresh(ctx))
	require.True(t, h.ctrl.EnterFolder(ctx, parent.ID))

	h.ctrl.OpenCreateFolder()
	require.True(t, h.ctrl.CreateFolder(ctx, "  X  "))
	assert.False(t, h.ctrl.CreateFolderOpen())

	var xs []filestore.FileEntry
	for _, e := range h.ctrl.Entries() {
		if e.Name == "X" {
			xs = append(xs, e)
		}
	}
	require.Len(t, xs, 1)
	assert.True(t, xs[0].IsDirectory)
	assert.Equal(t, parent.ID, *xs[0].ParentID)

	// no dedup on the client, the second call creates a second entry
	require.True(t, h.ctrl.CreateFolder(ctx, "X"))
	count := 0
	for _, e := range h.ctrl.Entries() {
		if e.Name == "X" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestCreateFolderFailures(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	before := h.store.listCount()

	h.ctrl.OpenCreateFolder()
	assert.False(t, h.ctrl.CreateFolder(ctx, "   "))
	assert.False(t, h.ctrl.CreateFolder(ctx, "a/b"))
	assert.True(t, h.ctrl.CreateFolderOpen())
	assert.Equal(t, []Level{LevelWarning, LevelWarning}, h.levels())

	h.store.failCreate = &filestore.RequestError{Op: filestore.OpCreateFolder, Status: 400, Text: "bad name"}
	assert.False(t, h.ctrl.CreateFolder(ctx, "ok"))
	assert.True(t, h.ctrl.CreateFolderOpen(), "dialog stays open for another try")
	pending := h.notices.Pending()
	last := pending[len(pending)-1]
	assert.Equal(t, LevelError, last.Level)
	assert.Equal(t, "The file server refused the request: bad name", last.Message)
	assert.Equal(t, before, h.store.listCount(), "failed creates never refresh")
}

func TestUploadBatchContinuesPastFailure(t *testing.T) {
	var mu sync.Mutex
	var progress []float64
	h := newHarness(t, Options{})
	h.ctrl.onChange = func() {
		s := h.ctrl.Snapshot()
		if s.Uploading {
			mu.Lock()
			progress = append(progress, s.UploadProgress)
			mu.Unlock()
		}
	}
	ctx := context.Background()
	h.store.failUpload["b.txt"] = errBoom
	before := h.store.listCount()

	res := h.ctrl.UploadFiles(ctx, []Upload{memUpload("a.txt", "1"), memUpload("b.txt", "2"), memUpload("c.txt", "3")})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1.0, res.Progress)
	assert.False(t, res.Cancelled)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b.txt", res.Failures[0].FileName)
	assert.ErrorIs(t, res.Failures[0], errBoom)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, h.store.uploads, "uploads run in order")
	assert.Equal(t, before+1, h.store.listCount(), "one refresh after the batch")
	assert.Len(t, h.ctrl.Entries(), 2)

	mu.Lock()
	assert.Contains(t, progress, 1.0)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	mu.Unlock()

	snap := h.ctrl.Snapshot()
	assert.False(t, snap.Uploading)
	assert.Equal(t, 0.0, snap.UploadProgress)
}

func TestUploadBatchAllFailedDoesNotRefresh(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.failUpload["a.txt"] = errBoom
	before := h.store.listCount()

	res := h.ctrl.UploadFiles(context.Background(), []Upload{memUpload("a.txt", "1")})
	assert.Equal(t, 0, res.Succeeded)
	assert.False(t, res.Refreshed)
	assert.Equal(t, before, h.store.listCount())
	assert.Equal(t, []Level{LevelError}, h.levels())
}

func TestUploadEmptyBatch(t *testing.T) {
	h := newHarness(t, Options{})
	res := h.ctrl.UploadFiles(context.Background(), nil)
	assert.Equal(t, UploadResult{}, res)
	assert.Zero(t, h.store.listCount())
	assert.Empty(t, h.store.uploads)
}

func TestUploadOpenFailure(t *testing.T) {
	h := newHarness(t, Options{})
	bad := Upload{Name: "gone.txt", Open: func() (io.ReadCloser, error) { return nil, errors.New("no such file") }}
	res := h.ctrl.UploadFiles(context.Background(), []Upload{bad, memUpload("ok.txt", "x")})
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "gone.txt", res.Failures[0].FileName)
}

func TestUploadCancelStopsBatch(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.onUpload = func(name string) {
		if name == "b.txt" {
			cancel()
		}
	}
	before := h.store.listCount()

	res := h.ctrl.UploadFiles(ctx, []Upload{memUpload("a.txt", "1"), memUpload("b.txt", "2"), memUpload("c.txt", "3")})
	assert.True(t, res.Cancelled)
	assert.Equal(t, 1, res.Succeeded)
	assert.NotContains(t, h.store.uploads, "c.txt")
	assert.True(t, res.Refreshed, "what made it is still shown")
	assert.Equal(t, before+1, h.store.listCount())
}

func TestDeleteCancelNeverCallsStore(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	a := h.store.add("a.txt", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))

	require.True(t, h.ctrl.RequestDelete(a.ID))
	pending, ok := h.ctrl.Pending(KindDelete)
	require.True(t, ok)
	assert.Equal(t, "a.txt", pending.Name)

	h.ctrl.Cancel(KindDelete)
	_, ok = h.ctrl.Pending(KindDelete)
	assert.False(t, ok)

	// confirming after cancel is a no-op
	assert.False(t, h.ctrl.ConfirmDelete(ctx))
	assert.Empty(t, h.store.deletes)
	assert.Len(t, h.ctrl.Entries(), 1)
}

func TestConfirmDelete(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	a := h.store.add("a.txt", false, nil)
	b := h.store.add("b.txt", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))

	require.True(t, h.ctrl.OpenPreview(b.ID))
	require.True(t, h.ctrl.RequestDelete(a.ID))
	// a second request replaces the first
	require.True(t, h.ctrl.RequestDelete(b.ID))

	require.True(t, h.ctrl.ConfirmDelete(ctx))
	assert.Equal(t, []string{b.ID}, h.store.deletes)
	_, open := h.ctrl.Preview()
	assert.False(t, open, "preview of the deleted entry is closed")
	assert.Equal(t, []string{"a.txt"}, names(h.ctrl.Entries()))
}

func TestConfirmDeleteSnapshotSurvivesRefresh(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	a := h.store.add("a.txt", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))
	require.True(t, h.ctrl.RequestDelete(a.ID))

	// the entry vanishes remotely and a refresh evicts it
	require.NoError(t, h.store.Delete(ctx, a.ID))
	require.True(t, h.ctrl.Refresh(ctx))
	pending, ok := h.ctrl.Pending(KindDelete)
	require.True(t, ok)
	assert.Equal(t, "a.txt", pending.Name)

	assert.False(t, h.ctrl.ConfirmDelete(ctx))
	assert.Equal(t, LevelError, h.levels()[len(h.levels())-1])
}

func TestRequestRequiresListedEntry(t *testing.T) {
	h := newHarness(t, Options{})
	ctx := context.Background()
	dir := h.store.add("Dir", true, nil)
	require.True(t, h.ctrl.Refresh(ctx))

	assert.False(t, h.ctrl.RequestDelete("missing"))
	assert.False(t, h.ctrl.RequestDownload(dir.ID), "folders cannot be downloaded")
	assert.True(t, h.ctrl.RequestDelete(dir.ID))
	assert.False(t, h.ctrl.OpenPreview(dir.ID))
}

type recordingSaver struct {
	got chan string
}

func (s *recordingSaver) Save(_ context.Context, target Target, url string) {
	s.got <- target.Name + " " + url
}

func TestConfirmDownloadHandsOffToSaver(t *testing.T) {
	saver := &recordingSaver{got: make(chan string, 1)}
	h := newHarness(t, Options{Saver: saver})
	ctx := context.Background()
	f := h.store.add("foto.jpg", false, nil)
	require.True(t, h.ctrl.Refresh(ctx))

	assert.False(t, h.ctrl.ConfirmDownload(ctx), "nothing pending")
	require.True(t, h.ctrl.RequestDownload(f.ID))
	require.True(t, h.ctrl.ConfirmDownload(ctx))
	h.ctrl.WaitDownloads()

	assert.Equal(t, "foto.jpg http://store.test/files/download/"+f.ID, <-saver.got)
	_, ok := h.ctrl.Pending(KindDownload)
	assert.False(t, ok)
}

func TestViewModeAndDialogs(t *testing.T) {
	h := newHarness(t, Options{ViewMode: ViewList})
	assert.Equal(t, ViewList, h.ctrl.ViewMode())
	h.ctrl.SetViewMode(ViewGrid)
	assert.Equal(t, ViewGrid, h.ctrl.Snapshot().ViewMode)

	mode, err := ParseViewMode("LIST")
	require.NoError(t, err)
	assert.Equal(t, ViewList, mode)
	_, err = ParseViewMode("tiles")
	assert.Error(t, err)

	h.ctrl.OpenCreateFolder()
	assert.True(t, h.ctrl.Snapshot().CreateFolderOpen)
	h.ctrl.CancelCreateFolder()
	assert.False(t, h.ctrl.CreateFolderOpen())
}

func TestStartInFolder(t *testing.T) {
	h := newHarness(t, Options{Folder: &Crumb{ID: ptr("1"), Name: "docs"}})
	docs := h.store.add("docs", true, nil)
	require.Equal(t, "1", docs.ID)
	h.store.add("inside.txt", false, &docs.ID)

	require.True(t, h.ctrl.Refresh(context.Background()))
	path := h.ctrl.Path()
	require.Len(t, path, 2)
	assert.Equal(t, RootName, path[0].Name)
	assert.Equal(t, "docs", path[1].Name)
	require.Len(t, h.ctrl.Entries(), 1)
	assert.Equal(t, "inside.txt", h.ctrl.Entries()[0].Name)

	require.True(t, h.ctrl.Up(context.Background()))
	assert.Nil(t, h.ctrl.CurrentFolder())
}
