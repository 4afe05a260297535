// Package manager holds the state of a file manager session: the folder being
// browsed, its listing, the pending confirmations and the upload in progress.
// The Controller is safe for concurrent use. Remote calls run without its
// lock held, and every failure is turned into a Notice instead of an error.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"sync"

	vd "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/forscht/filedeck/pkg/filestore"
	"github.com/forscht/filedeck/pkg/validator"
)

// Store is the remote file store. *filestore.Client implements it.
type Store interface {
	List(ctx context.Context, parent *string) ([]filestore.FileEntry, error)
	Upload(ctx context.Context, name string, r io.Reader, parent *string) (filestore.FileEntry, error)
	CreateFolder(ctx context.Context, name string, parent *string) (filestore.FileEntry, error)
	Delete(ctx context.Context, id string) error
	DownloadURL(id string) string
}

type ViewMode int

const (
	ViewGrid ViewMode = iota
	ViewList
)

func (v ViewMode) String() string {
	if v == ViewList {
		return "list"
	}
	return "grid"
}

// ParseViewMode maps "grid" and "list" to a ViewMode.
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "grid":
		return ViewGrid, nil
	case "list":
		return ViewList, nil
	}
	return ViewGrid, fmt.Errorf("unknown view mode %q", s)
}

type Options struct {
	Notifier Notifier
	Saver    Saver
	ViewMode ViewMode
	// Folder is a folder below the root to start in. Nil starts at the root.
	Folder *Crumb
	// OnChange is called after every state change, without the lock held.
	OnChange func()
}

type Controller struct {
	store    Store
	notifier Notifier
	saver    Saver
	onChange func()
	validate *validator.Validate

	mu         sync.Mutex
	nav        *Navigation
	listing    Listing
	gate       Gate
	loading    bool
	listErr    string
	batch      *uploadBatch
	preview    *Target
	folderOpen bool
	viewMode   ViewMode
	cancelList context.CancelFunc

	saves sync.WaitGroup
}

func New(store Store, opts Options) *Controller {
	nav := NewNavigation()
	if opts.Folder != nil && opts.Folder.ID != nil {
		nav.Enter(*opts.Folder.ID, opts.Folder.Name)
	}
	return &Controller{
		store:    store,
		notifier: opts.Notifier,
		saver:    opts.Saver,
		onChange: opts.OnChange,
		validate: validator.New(),
		nav:      nav,
		viewMode: opts.ViewMode,
	}
}

// Snapshot is a consistent copy of the state for rendering.
type Snapshot struct {
	CurrentFolder    *string
	Path             []Crumb
	Entries          []filestore.FileEntry // visible entries only
	TotalEntries     int
	SearchTerm       string
	ViewMode         ViewMode
	Loading          bool
	ListingError     string
	Uploading        bool
	UploadProgress   float64
	UploadCurrent    string
	UploadCompleted  int
	UploadTotal      int
	PendingDelete    *Target
	PendingDownload  *Target
	Preview          *Target
	CreateFolderOpen bool
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		CurrentFolder:    c.nav.Current(),
		Path:             c.nav.Path(),
		Entries:          slices.Collect(c.listing.Visible()),
		TotalEntries:     len(c.listing.Entries()),
		SearchTerm:       c.listing.SearchTerm(),
		ViewMode:         c.viewMode,
		Loading:          c.loading,
		ListingError:     c.listErr,
		Uploading:        c.batch != nil,
		UploadProgress:   c.batch.progress(),
		CreateFolderOpen: c.folderOpen,
	}
	if c.batch != nil {
		s.UploadCurrent = c.batch.current
		s.UploadCompleted = c.batch.completed
		s.UploadTotal = c.batch.total
	}
	if t, ok := c.gate.Pending(KindDelete); ok {
		s.PendingDelete = &t
	}
	if t, ok := c.gate.Pending(KindDownload); ok {
		s.PendingDownload = &t
	}
	if c.preview != nil {
		p := *c.preview
		s.Preview = &p
	}
	return s
}

func (c *Controller) CurrentFolder() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav.Current()
}

func (c *Controller) Path() []Crumb {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nav.Path()
}

// Entries returns the whole cached listing, ignoring the search term.
func (c *Controller) Entries() []filestore.FileEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listing.Entries()
}

// ListingError is the message of the last failed refresh, empty once a
// refresh succeeds.
func (c *Controller) ListingError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listErr
}

// Refresh fetches the current folder. It reports whether the result was
// applied.
func (c *Controller) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	folder := c.nav.Current()
	ticket := c.listing.begin()
	c.loading = true
	c.mu.Unlock()
	c.changed()

	return c.fetch(ctx, ticket, folder)
}

// Retry repeats the listing after a failure.
func (c *Controller) Retry(ctx context.Context) bool {
	return c.Refresh(ctx)
}

func (c *Controller) fetch(ctx context.Context, ticket uint64, folder *string) bool {
	entries, err := c.store.List(ctx, folder)

	c.mu.Lock()
	if c.listing.latest(ticket) {
		c.loading = false
	}
	if !c.listing.accept(ticket, folder, c.nav.Current()) {
		c.mu.Unlock()
		log.Debug().Str("c", "manager").Uint64("ticket", ticket).Msg("discarding stale listing")
		c.changed()
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// superseded by a newer navigation
			c.mu.Unlock()
			c.changed()
			return false
		}
		c.listing.fail(ticket)
		c.listErr = userMessage(err)
		c.mu.Unlock()
		log.Warn().Str("c", "manager").Err(err).Msg("listing failed")
		c.changed()
		return false
	}
	c.listing.apply(ticket, entries)
	c.listErr = ""
	c.mu.Unlock()

	log.Debug().Str("c", "manager").Int("count", len(entries)).Msg("listing refreshed")
	c.changed()
	return true
}

// navigate applies move and lists the folder it leads to. A listing still
// in flight for the previous folder is cancelled.
func (c *Controller) navigate(ctx context.Context, move func(*Navigation) error) bool {
	c.mu.Lock()
	if err := move(c.nav); err != nil {
		c.mu.Unlock()
		c.notify(LevelWarning, "Cannot open folder", err.Error())
		return false
	}
	if c.cancelList != nil {
		c.cancelList()
	}
	listCtx, cancel := context.WithCancel(ctx)
	c.cancelList = cancel
	c.preview = nil
	folder := c.nav.Current()
	ticket := c.listing.begin()
	c.loading = true
	c.mu.Unlock()
	c.changed()
	defer cancel()

	return c.fetch(listCtx, ticket, folder)
}

// EnterFolder opens the directory id of the current listing.
func (c *Controller) EnterFolder(ctx context.Context, id string) bool {
	return c.navigate(ctx, func(n *Navigation) error {
		e, ok := c.listing.Find(id)
		if !ok {
			return fmt.Errorf("%s is not in this folder", id)
		}
		if !e.IsDirectory {
			return fmt.Errorf("%s is not a folder", e.Name)
		}
		n.Enter(e.ID, e.Name)
		return nil
	})
}

// GoToBreadcrumb returns to the index-th folder of the path.
func (c *Controller) GoToBreadcrumb(ctx context.Context, index int) bool {
	return c.navigate(ctx, func(n *Navigation) error {
		return n.GoTo(index)
	})
}

// Up moves to the parent folder.
func (c *Controller) Up(ctx context.Context) bool {
	return c.navigate(ctx, func(n *Navigation) error {
		if !n.Up() {
			return errors.New("already at the root")
		}
		return nil
	})
}

func (c *Controller) GoHome(ctx context.Context) bool {
	return c.navigate(ctx, func(n *Navigation) error {
		n.Home()
		return nil
	})
}

func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	c.listing.SetSearchTerm(term)
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) SearchTerm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listing.SearchTerm()
}

// Visible yields the entries matching the search term as of the call.
func (c *Controller) Visible() iter.Seq[filestore.FileEntry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return filterEntries(c.listing.Entries(), c.listing.SearchTerm())
}

func (c *Controller) VisibleEntries() []filestore.FileEntry {
	return slices.Collect(c.Visible())
}

func (c *Controller) SetViewMode(mode ViewMode) {
	c.mu.Lock()
	c.viewMode = mode
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) ViewMode() ViewMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMode
}

func (c *Controller) OpenCreateFolder() {
	c.mu.Lock()
	c.folderOpen = true
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) CancelCreateFolder() {
	c.mu.Lock()
	c.folderOpen = false
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) CreateFolderOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.folderOpen
}

// CreateFolder creates name in the current folder. On success the dialog
// closes and the listing is refreshed; on failure the dialog stays open.
func (c *Controller) CreateFolder(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if err := c.validate.Name(name); err != nil {
		c.notify(LevelWarning, "Invalid folder name", folderNameProblem(err))
		return false
	}

	parent := c.CurrentFolder()
	entry, err := c.store.CreateFolder(ctx, name, parent)
	if err != nil {
		c.fail("Could not create folder", err)
		return false
	}
	log.Debug().Str("c", "manager").Str("id", entry.ID).Str("name", entry.Name).Msg("folder created")

	c.CancelCreateFolder()
	c.notify(LevelSuccess, "Folder created", entry.Name)
	c.Refresh(ctx)
	return true
}

func folderNameProblem(err error) string {
	var verrs vd.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Tag() {
		case "notblank":
			return "Folder name cannot be empty."
		case "max":
			return "Folder name is too long."
		case "regex":
			return "Folder name cannot contain slashes."
		}
	}
	return "Folder name is not valid."
}

func (c *Controller) OpenPreview(id string) bool {
	c.mu.Lock()
	e, ok := c.listing.Find(id)
	if ok && !e.IsDirectory {
		t := targetOf(e)
		c.preview = &t
	}
	c.mu.Unlock()
	if !ok || e.IsDirectory {
		return false
	}
	c.changed()
	return true
}

// DownloadURL is the address the store serves id's content from.
func (c *Controller) DownloadURL(id string) string {
	return c.store.DownloadURL(id)
}

func (c *Controller) ClosePreview() {
	c.mu.Lock()
	c.preview = nil
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) Preview() (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.preview == nil {
		return Target{}, false
	}
	return *c.preview, true
}

// RequestDelete opens the delete confirmation for id.
func (c *Controller) RequestDelete(id string) bool {
	return c.request(KindDelete, id)
}

// RequestDownload opens the download confirmation for the file id.
func (c *Controller) RequestDownload(id string) bool {
	return c.request(KindDownload, id)
}

func (c *Controller) request(kind Kind, id string) bool {
	c.mu.Lock()
	e, found := c.listing.Find(id)
	ok := found && !(kind == KindDownload && e.IsDirectory)
	if ok {
		c.gate.Request(kind, targetOf(e))
	}
	c.mu.Unlock()

	switch {
	case !found:
		c.notify(LevelWarning, "Nothing to "+kind.String(), "The item is not in this folder.")
	case !ok:
		c.notify(LevelWarning, "Cannot download", e.Name+" is a folder.")
	default:
		c.changed()
	}
	return ok
}

// Pending returns the open confirmation of kind.
func (c *Controller) Pending(kind Kind) (Target, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.Pending(kind)
}

// Cancel closes the confirmation of kind. It never touches the store.
func (c *Controller) Cancel(kind Kind) {
	c.mu.Lock()
	c.gate.Cancel(kind)
	c.mu.Unlock()
	c.changed()
}

// ConfirmDelete deletes the pending target and refreshes. It does nothing
// when no delete is pending.
func (c *Controller) ConfirmDelete(ctx context.Context) bool {
	c.mu.Lock()
	t, ok := c.gate.take(KindDelete)
	if ok && c.preview != nil && c.preview.ID == t.ID {
		c.preview = nil
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.changed()

	if err := c.store.Delete(ctx, t.ID); err != nil {
		c.fail("Delete failed", err)
		return false
	}
	log.Debug().Str("c", "manager").Str("id", t.ID).Msg("deleted")
	c.notify(LevelSuccess, "Deleted", t.Name)
	c.Refresh(ctx)
	return true
}

// ConfirmDownload hands the pending target to the saver and returns at once.
// It does nothing when no download is pending.
func (c *Controller) ConfirmDownload(ctx context.Context) bool {
	c.mu.Lock()
	t, ok := c.gate.take(KindDownload)
	c.mu.Unlock()
	if !ok {
		return false
	}
	c.changed()

	url := c.store.DownloadURL(t.ID)
	if c.saver == nil {
		log.Warn().Str("c", "manager").Str("url", url).Msg("no saver configured, download dropped")
		return true
	}
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		c.saver.Save(ctx, t, url)
	}()
	return true
}

// WaitDownloads blocks until every started download has returned.
func (c *Controller) WaitDownloads() {
	c.saves.Wait()
}

// UploadFiles uploads files one after the other into the current folder.
// A failed file is reported and the batch moves on. The listing is
// refreshed once at the end if anything was uploaded. Cancelling ctx stops
// the batch before the next file.
func (c *Controller) UploadFiles(ctx context.Context, files []Upload) UploadResult {
	res := UploadResult{Total: len(files)}
	if len(files) == 0 {
		return res
	}

	c.mu.Lock()
	if c.batch != nil {
		c.mu.Unlock()
		c.notify(LevelWarning, "Upload in progress", "Wait for the current upload to finish.")
		return res
	}
	batch := &uploadBatch{total: len(files)}
	c.batch = batch
	parent := c.nav.Current()
	c.mu.Unlock()
	c.changed()

	for _, f := range files {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		c.mu.Lock()
		batch.current = f.Name
		c.mu.Unlock()
		c.changed()

		err := c.uploadOne(ctx, f, parent)

		c.mu.Lock()
		batch.completed++
		if err == nil {
			batch.succeeded++
		}
		c.mu.Unlock()

		if err != nil {
			failed := &UploadItemFailed{FileName: f.Name, Cause: err}
			res.Failures = append(res.Failures, failed)
			log.Warn().Str("c", "manager").Err(failed).Msg("upload failed")
			c.notify(LevelError, "Upload failed", f.Name+": "+userMessage(err))
		}
		c.changed()
	}

	c.mu.Lock()
	res.Succeeded = batch.succeeded
	res.Progress = batch.progress()
	c.batch = nil
	c.mu.Unlock()
	c.changed()

	if res.Succeeded > 0 {
		c.notify(LevelSuccess, "Upload finished", fmt.Sprintf("%d of %d files uploaded.", res.Succeeded, res.Total))
		// the files are stored even if the caller gave up on the batch
		c.Refresh(context.WithoutCancel(ctx))
		res.Refreshed = true
	}
	return res
}

func (c *Controller) uploadOne(ctx context.Context, f Upload, parent *string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	entry, err := c.store.Upload(ctx, f.Name, rc, parent)
	if err != nil {
		return err
	}
	log.Debug().Str("c", "manager").Str("id", entry.ID).Str("name", entry.Name).Msg("uploaded")
	return nil
}

// Close stops the listing in flight, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.cancelList != nil {
		c.cancelList()
		c.cancelList = nil
	}
	c.mu.Unlock()
}

func (c *Controller) fail(title string, err error) {
	log.Warn().Str("c", "manager").Err(err).Msg(title)
	c.notify(LevelError, title, userMessage(err))
}

func (c *Controller) notify(level Level, title, message string) {
	if c.notifier != nil {
		c.notifier.Notify(Notice{Level: level, Title: title, Message: message})
	}
}

func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
