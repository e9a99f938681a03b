// Package tui renders the navigator in a bubbletea program: a bucket list,
// an object table for the current prefix, a preview pane and prompts for
// transfers.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/fetch"
	"github.com/slmtnm/s3ranger/internal/listing"
	"github.com/slmtnm/s3ranger/internal/logger"
	"github.com/slmtnm/s3ranger/internal/nav"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
	"github.com/slmtnm/s3ranger/internal/transfer"
)

// ViewMode represents the current screen.
type ViewMode int

const (
	ViewBuckets ViewMode = iota
	ViewBrowser
	ViewPreview
	ViewHelp
	ViewPrompt
	ViewConfirm
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	sizeWidth     = 12
	dateWidth     = 18
	timeLayout    = "2006-01-02 15:04"
)

// Options configures a Model.
type Options struct {
	Client       store.Client
	Strategy     nav.Strategy
	FetchTimeout time.Duration
	Concurrency  int
	DownloadDir  string
	// Start opens this location right away instead of the bucket list.
	Start   pathkey.Location
	Logger  *logger.Logger
	Context context.Context
}

// Model is the bubbletea model. It also receives the navigator's display
// notifications, so it must be used through a pointer.
type Model struct {
	ctx    context.Context
	client store.Client
	nav    *nav.Navigator
	engine *transfer.Engine
	log    *logger.Logger

	viewMode ViewMode
	prevMode ViewMode

	buckets        []store.Bucket
	loadingBuckets bool
	bucketTable    table.Model

	location    pathkey.Location
	objectTable table.Model
	focus       string

	previewLoc pathkey.Location
	preview    viewport.Model

	prompt  operation
	target  pathkey.Location
	input   textinput.Model
	pending pathkey.Location

	downloadDir string
	busy        int
	status      string
	err         error

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	width, height int
	startCmd      tea.Cmd
}

var _ nav.Listener = (*Model)(nil)

// New creates the model. The navigator is built here so that its
// notifications land on the model.
func New(opts Options) (*Model, error) {
	if opts.Client == nil {
		return nil, errs.New(errs.KindInvalidInput, "no store client")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	m := &Model{
		ctx:            opts.Context,
		client:         opts.Client,
		engine:         transfer.New(opts.Client, opts.Concurrency, opts.Logger),
		log:            opts.Logger,
		viewMode:       ViewBuckets,
		loadingBuckets: true,
		downloadDir:    opts.DownloadDir,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		width:          defaultWidth,
		height:         defaultHeight,
	}
	coord := fetch.NewCoordinator(opts.Client, opts.FetchTimeout, opts.Logger)
	m.nav = nav.New(coord, nav.Options{Strategy: opts.Strategy, Listener: m, Logger: opts.Logger})

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot

	m.input = textinput.New()
	m.input.CharLimit = 1024
	m.input.Cursor.SetMode(cursor.CursorStatic)

	m.bucketTable = newTable([]table.Column{{Title: "BUCKET"}, {Title: "REGION"}, {Title: "CREATED"}})
	m.objectTable = newTable([]table.Column{{Title: "NAME"}, {Title: "SIZE"}, {Title: "MODIFIED"}})
	m.preview = viewport.New(defaultWidth, defaultHeight)
	m.resize(defaultWidth, defaultHeight)

	if !opts.Start.IsZero() {
		task, err := m.nav.Open(opts.Start)
		if err != nil {
			return nil, err
		}
		m.viewMode = ViewBrowser
		m.startCmd = fetchCmd(task)
	}
	return m, nil
}

func newTable(columns []table.Column) table.Model {
	return table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithStyles(table.Styles{
			Header:   headerStyle.Padding(0, 1),
			Cell:     fileStyle.Padding(0, 1),
			Selected: selectedStyle,
		}),
	)
}

// Navigator exposes the navigation state.
func (m *Model) Navigator() *nav.Navigator { return m.nav }

// Mode returns the current screen.
func (m *Model) Mode() ViewMode { return m.viewMode }

// Init starts loading buckets and, when a start location was given, its
// listing.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadBuckets(), m.startCmd)
}

// ViewChanged implements nav.Listener.
func (m *Model) ViewChanged(rows []listing.EntryRow) {
	cur := m.objectTable.Cursor()
	m.objectTable.SetRows(objectRows(rows))
	if m.focus != "" {
		if i := m.nav.Tracker().IndexOf(m.focus, listing.KindFolder); i >= 0 {
			cur = i
			m.focus = ""
		} else if len(rows) > 0 {
			m.focus = ""
		}
	}
	setCursor(&m.objectTable, cur)
}

// NavigationChanged implements nav.Listener.
func (m *Model) NavigationChanged(loc pathkey.Location) {
	m.location = loc
	m.err = nil
	setCursor(&m.objectTable, 0)
}

// ErrorOccurred implements nav.Listener.
func (m *Model) ErrorOccurred(err error) {
	m.fail(err)
}

func (m *Model) notify(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.err = nil
}

func (m *Model) fail(err error) {
	m.err = err
	m.status = ""
}

// setCursor clamps i to the table rows.
func setCursor(t *table.Model, i int) {
	n := len(t.Rows())
	switch {
	case n == 0 || i < 0:
		i = 0
	case i >= n:
		i = n - 1
	}
	t.SetCursor(i)
}

func objectRows(rows []listing.EntryRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		switch r.Kind {
		case listing.KindParent:
			out = append(out, table.Row{r.Name, "", ""})
		case listing.KindFolder:
			out = append(out, table.Row{r.Name + pathkey.Separator, humanize.IBytes(r.Size), formatTime(r.LastModified)})
		default:
			out = append(out, table.Row{r.Name, humanize.IBytes(r.Size), formatTime(r.LastModified)})
		}
	}
	return out
}

func bucketRows(buckets []store.Bucket) []table.Row {
	out := make([]table.Row, 0, len(buckets))
	for _, b := range buckets {
		created := ""
		if !b.CreatedAt.IsZero() {
			created = humanize.Time(b.CreatedAt)
		}
		out = append(out, table.Row{b.Name, b.Region, created})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width

	tableHeight := height - 8
	if tableHeight < 3 {
		tableHeight = 3
	}
	nameWidth := width - sizeWidth - dateWidth - 8
	if nameWidth < 20 {
		nameWidth = 20
	}
	m.objectTable.SetColumns([]table.Column{
		{Title: "NAME", Width: nameWidth},
		{Title: "SIZE", Width: sizeWidth},
		{Title: "MODIFIED", Width: dateWidth},
	})
	m.objectTable.SetHeight(tableHeight)
	m.objectTable.SetWidth(width)

	m.bucketTable.SetColumns([]table.Column{
		{Title: "BUCKET", Width: nameWidth},
		{Title: "REGION", Width: sizeWidth},
		{Title: "CREATED", Width: dateWidth},
	})
	m.bucketTable.SetHeight(tableHeight)
	m.bucketTable.SetWidth(width)

	m.preview.Width = width - 4
	m.preview.Height = height - 7
	if m.preview.Height < 3 {
		m.preview.Height = 3
	}
	m.input.Width = width - 10
}

// Update handles messages and keys.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bucketsLoadedMsg:
		m.loadingBuckets = false
		if msg.err != nil {
			m.log.ErrorWith("failed to list buckets", msg.err, nil)
			m.fail(msg.err)
			return m, nil
		}
		m.buckets = msg.buckets
		m.bucketTable.SetRows(bucketRows(msg.buckets))
		setCursor(&m.bucketTable, m.bucketTable.Cursor())
		return m, nil

	case listingMsg:
		m.nav.Deliver(msg.result)
		return m, nil

	case previewLoadedMsg:
		if m.viewMode != ViewPreview || msg.loc != m.previewLoc {
			return m, nil
		}
		if msg.err != nil {
			m.viewMode = ViewBrowser
			m.fail(msg.err)
			return m, nil
		}
		m.preview.SetContent(previewText(msg))
		m.preview.GotoTop()
		return m, nil

	case transferDoneMsg:
		return m, m.transferDone(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	switch m.viewMode {
	case ViewPrompt:
		return m.updatePrompt(msg)
	case ViewConfirm:
		return m.updateConfirm(msg)
	}

	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}

	switch m.viewMode {
	case ViewBuckets:
		return m.updateBuckets(msg)
	case ViewBrowser:
		return m.updateBrowser(msg)
	case ViewPreview:
		return m.updatePreview(msg)
	case ViewHelp:
		return m.updateHelp(msg)
	}
	return nil
}

func (m *Model) updateBuckets(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Open):
		i := m.bucketTable.Cursor()
		if i < 0 || i >= len(m.buckets) {
			return nil
		}
		task, err := m.nav.SelectBucket(m.buckets[i].Name)
		if err != nil {
			m.fail(err)
			return nil
		}
		m.viewMode = ViewBrowser
		return fetchCmd(task)

	case key.Matches(msg, m.keys.Refresh):
		m.loadingBuckets = true
		return m.loadBuckets()

	case key.Matches(msg, m.keys.Help):
		m.showHelp()
		return nil
	}

	var cmd tea.Cmd
	m.bucketTable, cmd = m.bucketTable.Update(msg)
	return cmd
}

func (m *Model) updateBrowser(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Open):
		return m.open()

	case key.Matches(msg, m.keys.Back):
		return m.goUp()

	case key.Matches(msg, m.keys.Refresh):
		return fetchCmd(m.nav.Refresh())

	case key.Matches(msg, m.keys.Download):
		loc, ok := m.selected()
		if !ok {
			m.notify("Select a file or folder to download")
			return nil
		}
		return m.openPrompt(opDownload, loc, m.downloadDir)

	case key.Matches(msg, m.keys.Upload):
		return m.openPrompt(opUpload, m.nav.Location(), "")

	case key.Matches(msg, m.keys.Delete):
		loc, ok := m.selected()
		if !ok {
			m.notify("Select a file or folder to delete")
			return nil
		}
		m.pending = loc
		m.viewMode = ViewConfirm
		return nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp()
		return nil
	}

	var cmd tea.Cmd
	m.objectTable, cmd = m.objectTable.Update(msg)
	return cmd
}

// open acts on the row under the cursor.
func (m *Model) open() tea.Cmd {
	i := m.objectTable.Cursor()
	row, ok := m.nav.Tracker().RowAt(i)
	if !ok {
		return nil
	}

	switch row.Kind {
	case listing.KindParent:
		return m.goUp()
	case listing.KindFolder:
		task, err := m.nav.EnterFolder(row.Name)
		if err != nil {
			m.fail(err)
			return nil
		}
		return fetchCmd(task)
	case listing.KindFile:
		loc, _ := m.nav.Tracker().LocationFor(i)
		m.viewMode = ViewPreview
		m.previewLoc = loc
		m.preview.SetContent("Loading...")
		return m.loadPreview(loc)
	}
	return nil
}

// goUp leaves the current folder, or returns to the bucket list from a
// bucket root.
func (m *Model) goUp() tea.Cmd {
	ctx := m.nav.Context()
	if len(ctx.Stack) == 0 {
		m.nav.Reset()
		m.viewMode = ViewBuckets
		for i, b := range m.buckets {
			if b.Name == ctx.Bucket {
				setCursor(&m.bucketTable, i)
			}
		}
		return nil
	}
	m.focus = ctx.Stack[len(ctx.Stack)-1]
	return fetchCmd(m.nav.GoUp())
}

func (m *Model) selected() (pathkey.Location, bool) {
	return m.nav.Tracker().LocationFor(m.objectTable.Cursor())
}

func (m *Model) showHelp() {
	m.prevMode = m.viewMode
	m.viewMode = ViewHelp
}

func (m *Model) openPrompt(op operation, target pathkey.Location, value string) tea.Cmd {
	m.prompt = op
	m.target = target
	m.viewMode = ViewPrompt
	m.input.Reset()
	m.input.SetValue(value)
	m.input.CursorEnd()
	switch op {
	case opDownload:
		m.input.Placeholder = "local directory"
	default:
		m.input.Placeholder = "local file or directory"
	}
	return m.input.Focus()
}

func (m *Model) updatePrompt(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.input.Blur()
		m.viewMode = ViewBrowser
		return nil

	case msg.Type == tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.viewMode = ViewBrowser
		if value == "" {
			m.fail(errs.Newf(errs.KindInvalidInput, "no local path given for %s", m.prompt))
			return nil
		}
		m.busy++
		switch m.prompt {
		case opDownload:
			m.notify("Downloading '%s' to %s...", m.target.Name(), value)
			return m.download(m.target, value)
		default:
			m.notify("Uploading %s to %s...", value, folderURI(m.target))
			return m.upload(value, m.target)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) updateConfirm(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.viewMode = ViewBrowser
		m.busy++
		m.notify("Deleting '%s'...", m.pending.Name())
		return m.remove(m.pending)
	case key.Matches(msg, m.keys.Deny):
		m.viewMode = ViewBrowser
		m.notify("Delete cancelled")
	}
	return nil
}

func (m *Model) updatePreview(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Cancel) {
		m.viewMode = ViewBrowser
		m.previewLoc = pathkey.Location{}
		m.preview.SetContent("")
		return nil
	}
	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return cmd
}

func (m *Model) updateHelp(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Cancel) {
		m.viewMode = m.prevMode
	}
	return nil
}

func (m *Model) transferDone(msg transferDoneMsg) tea.Cmd {
	if m.busy > 0 {
		m.busy--
	}

	var refresh tea.Cmd
	if msg.op != opDownload && msg.report.Objects > 0 && msg.target.Bucket == m.location.Bucket {
		refresh = fetchCmd(m.nav.Refresh())
	}
	if msg.err != nil {
		m.fail(fmt.Errorf("%s failed: %w", msg.op, msg.err))
		return refresh
	}

	size := humanize.IBytes(msg.report.Bytes)
	switch msg.op {
	case opDownload:
		if msg.target.IsFolder() {
			m.notify("✓ Downloaded %s objects from '%s' (%s)", humanize.Comma(int64(msg.report.Objects)), msg.target.Name(), size)
		} else {
			m.notify("✓ Downloaded '%s' (%s)", msg.target.Name(), size)
		}
	case opUpload:
		m.notify("✓ Uploaded %s objects to %s (%s)", humanize.Comma(int64(msg.report.Objects)), folderURI(msg.target), size)
	case opDelete:
		if msg.target.IsFolder() {
			m.notify("✓ Deleted %s objects under '%s'", humanize.Comma(int64(msg.report.Objects)), msg.target.Name())
		} else {
			m.notify("✓ Deleted '%s'", msg.target.Name())
		}
	}
	return refresh
}

// folderURI renders a folder location with its trailing separator.
func folderURI(loc pathkey.Location) string {
	if loc.IsZero() {
		return pathkey.Scheme + "://"
	}
	if loc.Key == "" {
		return loc.String() + pathkey.Separator
	}
	return loc.String()
}
