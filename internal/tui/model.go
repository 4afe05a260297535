package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/forscht/filedeck/internal/manager"
	"github.com/forscht/filedeck/pkg/filestore"
)

const (
	cellWidth     = 24
	maxNotices    = 3
	reservedLines = 14
)

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeNewFolder
	modeUpload
)

type changedMsg struct{}

// Changes turns controller change callbacks into messages for the program.
// One buffered signal covers any burst of changes.
type Changes chan struct{}

func NewChanges() Changes {
	return make(Changes, 1)
}

// Notify is meant to be used as manager.Options.OnChange.
func (c Changes) Notify() {
	select {
	case c <- struct{}{}:
	default:
	}
}

// Notifier queues notices on q and signals a change.
func (c Changes) Notifier(q *manager.NoticeQueue) manager.Notifier {
	return manager.NotifierFunc(func(n manager.Notice) {
		q.Notify(n)
		c.Notify()
	})
}

func (c Changes) wait() tea.Cmd {
	return func() tea.Msg {
		<-c
		return changedMsg{}
	}
}

// Model is the bubbletea front end over a manager.Controller. Remote work
// runs in commands; the model re-renders when the controller signals a change.
type Model struct {
	ctx     context.Context
	ctrl    *manager.Controller
	notices *manager.NoticeQueue
	changes Changes
	fs      afero.Fs

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	bar     progress.Model
	input   textinput.Model

	mode         mode
	cursor       int
	folder       string
	width        int
	height       int
	cancelUpload context.CancelFunc
}

// New builds the model. fs is where upload paths are read from.
func New(ctx context.Context, ctrl *manager.Controller, notices *manager.NoticeQueue, changes Changes, fs afero.Fs) *Model {
	input := textinput.New()
	input.CharLimit = 255

	return &Model{
		ctx:     ctx,
		ctrl:    ctrl,
		notices: notices,
		changes: changes,
		fs:      fs,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		input:   input,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.run(m.ctrl.Refresh), m.changes.wait(), m.spinner.Tick)
}

func (m *Model) Cursor() int {
	return m.cursor
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil
	case changedMsg:
		m.sync()
		return m, m.changes.wait()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	if m.mode != modeBrowse {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// run executes a controller operation off the update loop.
func (m *Model) run(op func(context.Context) bool) tea.Cmd {
	return func() tea.Msg {
		op(m.ctx)
		return nil
	}
}

// sync reconciles local view state with the controller.
func (m *Model) sync() {
	snap := m.ctrl.Snapshot()
	if folder := folderID(snap.CurrentFolder); folder != m.folder {
		m.folder = folder
		m.cursor = 0
	}
	m.clamp(len(snap.Entries))
	if m.mode == modeNewFolder && !snap.CreateFolderOpen {
		m.closeInput()
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	switch m.mode {
	case modeSearch:
		return m.searchKey(msg)
	case modeNewFolder:
		return m.newFolderKey(msg)
	case modeUpload:
		return m.uploadKey(msg)
	}

	snap := m.ctrl.Snapshot()
	switch {
	case snap.PendingDelete != nil:
		return m.confirmKey(msg, manager.KindDelete)
	case snap.PendingDownload != nil:
		return m.confirmKey(msg, manager.KindDownload)
	case snap.Preview != nil:
		return m.previewKey(msg, *snap.Preview)
	}
	return m.browseKey(msg, snap)
}

func (m *Model) browseKey(msg tea.KeyMsg, snap manager.Snapshot) tea.Cmd {
	n := len(snap.Entries)
	selected, hasSelection := m.selected(snap.Entries)

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.move(-m.columns(snap.ViewMode), n)
	case key.Matches(msg, m.keys.Down):
		m.move(m.columns(snap.ViewMode), n)
	case key.Matches(msg, m.keys.Left):
		if snap.ViewMode == manager.ViewGrid {
			m.move(-1, n)
		}
	case key.Matches(msg, m.keys.Right):
		if snap.ViewMode == manager.ViewGrid {
			m.move(1, n)
		}
	case key.Matches(msg, m.keys.Open):
		if !hasSelection {
			return nil
		}
		if selected.IsDirectory {
			id := selected.ID
			return m.run(func(ctx context.Context) bool { return m.ctrl.EnterFolder(ctx, id) })
		}
		m.ctrl.OpenPreview(selected.ID)
	case key.Matches(msg, m.keys.Back):
		return m.run(m.ctrl.Up)
	case key.Matches(msg, m.keys.Home):
		return m.run(m.ctrl.GoHome)
	case key.Matches(msg, m.keys.Crumb):
		index := int(msg.String()[0] - '1')
		if index < len(snap.Path) {
			return m.run(func(ctx context.Context) bool { return m.ctrl.GoToBreadcrumb(ctx, index) })
		}
	case key.Matches(msg, m.keys.Refresh):
		if snap.ListingError != "" {
			return m.run(m.ctrl.Retry)
		}
		return m.run(m.ctrl.Refresh)
	case key.Matches(msg, m.keys.Search):
		return m.openInput(modeSearch, "search this folder", snap.SearchTerm)
	case key.Matches(msg, m.keys.NewFolder):
		m.ctrl.OpenCreateFolder()
		return m.openInput(modeNewFolder, "folder name", "")
	case key.Matches(msg, m.keys.Upload):
		return m.openInput(modeUpload, "file, folder or pattern", "")
	case key.Matches(msg, m.keys.Delete):
		if hasSelection {
			m.ctrl.RequestDelete(selected.ID)
		}
	case key.Matches(msg, m.keys.Download):
		if hasSelection {
			m.ctrl.RequestDownload(selected.ID)
		}
	case key.Matches(msg, m.keys.ToggleView):
		if snap.ViewMode == manager.ViewGrid {
			m.ctrl.SetViewMode(manager.ViewList)
		} else {
			m.ctrl.SetViewMode(manager.ViewGrid)
		}
	case key.Matches(msg, m.keys.Dismiss):
		m.notices.DismissAll()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Cancel):
		switch {
		case snap.Uploading && m.cancelUpload != nil:
			m.cancelUpload()
		case snap.SearchTerm != "":
			m.ctrl.SetSearchTerm("")
			m.cursor = 0
		}
	}
	return nil
}

func (m *Model) confirmKey(msg tea.KeyMsg, kind manager.Kind) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		if kind == manager.KindDelete {
			return m.run(m.ctrl.ConfirmDelete)
		}
		return m.run(m.ctrl.ConfirmDownload)
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Cancel(kind)
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	}
	return nil
}

func (m *Model) previewKey(msg tea.KeyMsg, t manager.Target) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Open), key.Matches(msg, m.keys.Cancel):
		m.ctrl.ClosePreview()
	case key.Matches(msg, m.keys.Download):
		m.ctrl.RequestDownload(t.ID)
	case key.Matches(msg, m.keys.Delete):
		m.ctrl.RequestDelete(t.ID)
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	}
	return nil
}

func (m *Model) searchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.SetSearchTerm("")
		m.closeInput()
		return nil
	case tea.KeyEnter:
		m.closeInput()
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetSearchTerm(m.input.Value())
	m.cursor = 0
	return cmd
}

func (m *Model) newFolderKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.CancelCreateFolder()
		m.closeInput()
		return nil
	case tea.KeyEnter:
		// the input closes once the controller closes the dialog
		name := m.input.Value()
		return m.run(func(ctx context.Context) bool { return m.ctrl.CreateFolder(ctx, name) })
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) uploadKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return nil
	case tea.KeyEnter:
		pattern := m.input.Value()
		m.closeInput()
		files, err := manager.CollectUploads(m.fs, pattern)
		if err != nil {
			m.notices.Notify(manager.Notice{Level: manager.LevelWarning, Title: "Nothing to upload", Message: err.Error()})
			return nil
		}
		ctx, cancel := context.WithCancel(m.ctx)
		m.cancelUpload = cancel
		return func() tea.Msg {
			defer cancel()
			m.ctrl.UploadFiles(ctx, files)
			return nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) openInput(md mode, placeholder, value string) tea.Cmd {
	m.mode = md
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = modeBrowse
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) selected(entries []filestore.FileEntry) (filestore.FileEntry, bool) {
	if m.cursor < 0 || m.cursor >= len(entries) {
		return filestore.FileEntry{}, false
	}
	return entries[m.cursor], true
}

func (m *Model) move(delta, n int) {
	next := m.cursor + delta
	if next < 0 || next >= n {
		return
	}
	m.cursor = next
}

func (m *Model) clamp(n int) {
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) columns(view manager.ViewMode) int {
	if view == manager.ViewList {
		return 1
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	return max(1, width/cellWidth)
}

// rows is how many rows of entries fit on screen, 0 meaning no limit.
func (m *Model) rows() int {
	if m.height <= 0 {
		return 0
	}
	return max(1, m.height-reservedLines)
}

func (m *Model) View() string {
	snap := m.ctrl.Snapshot()

	sections := []string{m.header(snap)}
	if line := m.inputLine(snap); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.body(snap))
	if snap.Uploading {
		sections = append(sections, m.uploadView(snap))
	}
	if dialog := m.dialog(snap); dialog != "" {
		sections = append(sections, dialog)
	} else if snap.Preview != nil {
		sections = append(sections, m.previewView(*snap.Preview))
	}
	if notices := m.noticeView(); notices != "" {
		sections = append(sections, notices)
	}
	sections = append(sections, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) header(snap manager.Snapshot) string {
	crumbs := make([]string, len(snap.Path))
	for i, c := range snap.Path {
		label := fmt.Sprintf("%d:%s", i+1, c.Name)
		if i == len(snap.Path)-1 {
			crumbs[i] = CurrentCrumbStyle.Render(label)
		} else {
			crumbs[i] = CrumbStyle.Render(label)
		}
	}
	line := TitleStyle.Render("filedeck") + " " + strings.Join(crumbs, CrumbStyle.Render(" / "))
	if snap.Loading {
		line += " " + m.spinner.View()
	}
	return line
}

func (m *Model) inputLine(snap manager.Snapshot) string {
	switch m.mode {
	case modeSearch:
		return "Search: " + m.input.View()
	case modeNewFolder:
		return "New folder: " + m.input.View()
	case modeUpload:
		return "Upload: " + m.input.View()
	}
	if snap.SearchTerm != "" {
		return StatusStyle.Render(fmt.Sprintf("Filter %q: %d of %d (esc to clear)", snap.SearchTerm, len(snap.Entries), snap.TotalEntries))
	}
	return ""
}

func (m *Model) body(snap manager.Snapshot) string {
	switch {
	case snap.ListingError != "":
		return ErrorStyle.Render(snap.ListingError) + "\n" + StatusStyle.Render("Press r to retry.")
	case snap.Loading && snap.TotalEntries == 0:
		return m.spinner.View() + " Loading..."
	case len(snap.Entries) == 0 && snap.SearchTerm != "":
		return StatusStyle.Render(fmt.Sprintf("Nothing matches %q.", snap.SearchTerm))
	case len(snap.Entries) == 0:
		return StatusStyle.Render("This folder is empty.")
	}
	if snap.ViewMode == manager.ViewList {
		return m.listView(snap.Entries)
	}
	return m.gridView(snap.Entries, m.columns(snap.ViewMode))
}

func (m *Model) gridView(entries []filestore.FileEntry, cols int) string {
	var lines []string
	for start := 0; start < len(entries); start += cols {
		end := min(start+cols, len(entries))
		cells := make([]string, 0, cols)
		for i := start; i < end; i++ {
			cells = append(cells, CellStyle.Render(m.styleEntry(entries[i], i, truncate(entryLabel(entries[i]), cellWidth-2))))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	from, to := window(len(lines), m.cursor/cols, m.rows())
	return lipgloss.JoinVertical(lipgloss.Left, lines[from:to]...)
}

func (m *Model) listView(entries []filestore.FileEntry) string {
	nameWidth := 40
	if m.width > 0 {
		nameWidth = max(16, m.width-50)
	}
	from, to := window(len(entries), m.cursor, m.rows())
	lines := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		e := entries[i]
		kind := e.ContentType
		if e.IsDirectory {
			kind = "folder"
		}
		row := fmt.Sprintf("%-*s %9s  %-22s %s",
			nameWidth, truncate(entryLabel(e), nameWidth),
			formatSize(e.Size),
			truncate(kind, 22),
			e.CreatedAt.Local().Format("2006-01-02 15:04"))
		lines = append(lines, m.styleEntry(e, i, row))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) styleEntry(e filestore.FileEntry, index int, text string) string {
	switch {
	case index == m.cursor:
		return SelectedStyle.Render(text)
	case e.IsDirectory:
		return DirectoryStyle.Render(text)
	default:
		return FileStyle.Render(text)
	}
}

func (m *Model) uploadView(snap manager.Snapshot) string {
	current := min(snap.UploadCompleted+1, snap.UploadTotal)
	status := fmt.Sprintf("Uploading %s (%d/%d)", snap.UploadCurrent, current, snap.UploadTotal)
	return status + "\n" + m.bar.ViewAs(snap.UploadProgress) + StatusStyle.Render("  esc to cancel")
}

func (m *Model) dialog(snap manager.Snapshot) string {
	var question string
	switch {
	case snap.PendingDelete != nil:
		t := snap.PendingDelete
		if t.IsDirectory {
			question = fmt.Sprintf("Delete folder %q and everything in it?", t.Name)
		} else {
			question = fmt.Sprintf("Delete %q?", t.Name)
		}
	case snap.PendingDownload != nil:
		t := snap.PendingDownload
		question = fmt.Sprintf("Download %q (%s)?", t.Name, formatSize(t.Size))
	default:
		return ""
	}
	return DialogStyle.Render(question + "\n" + StatusStyle.Render("y confirm · n cancel"))
}

func (m *Model) previewView(t manager.Target) string {
	return PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(t.Name),
		"Size: "+formatSize(t.Size),
		"URL:  "+m.ctrl.DownloadURL(t.ID),
		StatusStyle.Render("d download · x delete · esc close"),
	))
}

func (m *Model) noticeView() string {
	pending := m.notices.Pending()
	if len(pending) == 0 {
		return ""
	}
	hidden := 0
	if len(pending) > maxNotices {
		hidden = len(pending) - maxNotices
		pending = pending[hidden:]
	}

	lines := make([]string, 0, len(pending)+1)
	for _, n := range pending {
		text := n.Title
		if n.Message != "" {
			text += ": " + n.Message
		}
		lines = append(lines, noticeStyle(n.Level).Render(text))
	}
	if hidden > 0 {
		lines = append(lines, StatusStyle.Render(fmt.Sprintf("+%d more, c to clear", hidden)))
	}
	return strings.Join(lines, "\n")
}

func noticeStyle(level manager.Level) lipgloss.Style {
	switch level {
	case manager.LevelError:
		return ErrorStyle
	case manager.LevelWarning:
		return WarningStyle
	case manager.LevelSuccess:
		return SuccessStyle
	default:
		return StatusStyle
	}
}

func entryLabel(e filestore.FileEntry) string {
	if e.IsDirectory {
		return "▸ " + e.Name
	}
	return "  " + e.Name
}

// window returns the [from, to) slice of total rows that keeps cursor
// visible when only size rows fit.
func window(total, cursor, size int) (int, int) {
	if size <= 0 || total <= size {
		return 0, total
	}
	from := max(0, cursor-size+1)
	return from, min(total, from+size)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}

func formatSize(size *int64) string {
	if size == nil || *size < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(*size))
}

func folderID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
