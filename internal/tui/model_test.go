package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/listing"
	"github.com/slmtnm/s3ranger/internal/nav"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
	"github.com/slmtnm/s3ranger/internal/store/memory"
)

var modified = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded() *memory.Store {
	s := memory.New(memory.WithPageSize(2))
	s.Put("bkt", "logs/app.log", []byte("line one\nline two\n"), modified)
	s.Put("bkt", "logs/2024/debug.log", []byte("dbg"), modified)
	s.Put("bkt", "readme.txt", []byte("hello"), modified)
	s.Put("other", "x.bin", []byte{0, 1, 2}, modified)
	return s
}

func newModel(t *testing.T, s *memory.Store, opts Options) *Model {
	t.Helper()
	opts.Client = s
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = time.Second
	}
	m, err := New(opts)
	require.NoError(t, err)
	drain(m, m.Init())
	return m
}

// drain runs cmd and every command it produces, feeding this package's
// messages back into the model. Timer-driven widget messages are dropped.
func drain(m *Model, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case bucketsLoadedMsg, listingMsg, previewLoadedMsg, transferDoneMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func press(m *Model, k string) tea.Cmd {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func names(m *Model) []string {
	var out []string
	for _, r := range m.nav.Rows() {
		out = append(out, r.Name)
	}
	return out
}

func pointAt(t *testing.T, m *Model, name string, kind listing.Kind) {
	t.Helper()
	i := m.nav.Tracker().IndexOf(name, kind)
	require.GreaterOrEqual(t, i, 0, "row %q not in view", name)
	m.objectTable.SetCursor(i)
}

func TestModel_SelectBucket(t *testing.T) {
	m := newModel(t, seeded(), Options{})
	assert.Equal(t, ViewBuckets, m.Mode())
	require.Len(t, m.buckets, 2)
	assert.Contains(t, m.View(), "bkt")

	drain(m, press(m, "enter"))
	assert.Equal(t, ViewBrowser, m.Mode())
	assert.Equal(t, pathkey.New("bkt", ""), m.location)
	assert.Equal(t, []string{"logs", "readme.txt"}, names(m))
	assert.Len(t, m.objectTable.Rows(), 2)
	assert.Contains(t, m.View(), "s3://bkt/")
}

func TestModel_EnterAndLeaveFolder(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", "")})
	pointAt(t, m, "logs", listing.KindFolder)

	drain(m, press(m, "enter"))
	assert.Equal(t, "logs/", m.nav.Prefix())
	assert.Equal(t, []string{"..", "2024", "app.log"}, names(m))
	assert.Equal(t, 0, m.objectTable.Cursor())
	assert.Contains(t, m.View(), "s3://bkt/logs/")

	// the parent row leads back up, with the cursor on the folder just left
	drain(m, press(m, "enter"))
	assert.Equal(t, "", m.nav.Prefix())
	assert.Equal(t, m.nav.Tracker().IndexOf("logs", listing.KindFolder), m.objectTable.Cursor())

	// back from a bucket root returns to the bucket list
	drain(m, press(m, "h"))
	assert.Equal(t, ViewBuckets, m.Mode())
	assert.Equal(t, nav.StateNoBucket, m.nav.State())
	assert.Equal(t, 0, m.bucketTable.Cursor())
}

func TestModel_StartLocation(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", "logs/2024/"), Strategy: nav.StrategyEager})
	assert.Equal(t, ViewBrowser, m.Mode())
	assert.Equal(t, []string{"..", "debug.log"}, names(m))

	drain(m, press(m, "backspace"))
	assert.Equal(t, "logs/", m.nav.Prefix())
	assert.Equal(t, []string{"..", "2024", "app.log"}, names(m))
}

func TestNew_RejectsBadStart(t *testing.T) {
	_, err := New(Options{Client: seeded(), Start: pathkey.New("a/b", "")})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = New(Options{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestModel_Preview(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", "logs/")})
	pointAt(t, m, "app.log", listing.KindFile)

	drain(m, press(m, "enter"))
	assert.Equal(t, ViewPreview, m.Mode())
	assert.Equal(t, pathkey.New("bkt", "logs/app.log"), m.previewLoc)
	view := m.View()
	assert.Contains(t, view, "line two")
	assert.Contains(t, view, "Preview: s3://bkt/logs/app.log")

	press(m, "esc")
	assert.Equal(t, ViewBrowser, m.Mode())
}

func TestModel_PreviewIgnoredAfterLeaving(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", "")})
	pointAt(t, m, "readme.txt", listing.KindFile)

	cmd := press(m, "enter")
	press(m, "h")
	drain(m, cmd)
	assert.Equal(t, ViewBrowser, m.Mode())
	assert.NoError(t, m.err)
}

func TestPreviewText(t *testing.T) {
	assert.Equal(t, "[Binary file - cannot preview]", previewText(previewLoadedMsg{binary: true}))
	assert.Equal(t, "[Empty file]", previewText(previewLoadedMsg{}))
	assert.Equal(t, "   1 │ a\n   2 │ b\n", previewText(previewLoadedMsg{content: "a\nb\n"}))
	assert.Contains(t, previewText(previewLoadedMsg{content: "a", truncated: true}), "[Preview truncated at 256 KiB]")
}

func TestTrimPartialRune(t *testing.T) {
	euro := []byte("€") // three bytes
	assert.Equal(t, []byte("ab"), trimPartialRune(append([]byte("ab"), euro[:2]...)))
	assert.Equal(t, append([]byte("ab"), euro...), trimPartialRune(append([]byte("ab"), euro...)))
	assert.Equal(t, []byte("abc"), trimPartialRune([]byte("abc")))
}

func TestModel_Download(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", ""), DownloadDir: "~/Downloads"})
	pointAt(t, m, "logs", listing.KindFolder)

	press(m, "d")
	require.Equal(t, ViewPrompt, m.Mode())
	assert.Equal(t, "~/Downloads", m.input.Value())

	dest := t.TempDir()
	m.input.SetValue(dest)
	drain(m, press(m, "enter"))
	assert.Equal(t, ViewBrowser, m.Mode())
	require.NoError(t, m.err)
	assert.Equal(t, 0, m.busy)
	assert.Equal(t, "✓ Downloaded 2 objects from 'logs' (21 B)", m.status)

	data, err := os.ReadFile(filepath.Join(dest, "logs", "app.log"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
}

func TestModel_DownloadNeedsSelection(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", "logs/")})
	m.objectTable.SetCursor(0) // parent row

	press(m, "d")
	assert.Equal(t, ViewBrowser, m.Mode())
	assert.Equal(t, "Select a file or folder to download", m.status)
}

func TestModel_PromptCancelAndEmpty(t *testing.T) {
	m := newModel(t, seeded(), Options{Start: pathkey.New("bkt", "")})

	press(m, "u")
	require.Equal(t, ViewPrompt, m.Mode())
	press(m, "q")
	assert.Equal(t, ViewPrompt, m.Mode(), "q is text inside a prompt")
	press(m, "esc")
	assert.Equal(t, ViewBrowser, m.Mode())

	press(m, "u")
	m.input.SetValue("  ")
	press(m, "enter")
	assert.True(t, errs.IsInvalidInput(m.err))
}

func TestModel_UploadRefreshes(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))
	s := seeded()
	m := newModel(t, s, Options{Start: pathkey.New("bkt", "logs/")})

	press(m, "u")
	m.input.SetValue(src)
	drain(m, press(m, "enter"))
	require.NoError(t, m.err)
	assert.Equal(t, "✓ Uploaded 1 objects to s3://bkt/logs/ (2 B)", m.status)
	assert.Contains(t, s.Keys("bkt"), "logs/notes.txt")
	assert.Equal(t, []string{"..", "2024", "app.log", "notes.txt"}, names(m))
}

func TestModel_DeleteConfirm(t *testing.T) {
	s := seeded()
	m := newModel(t, s, Options{Start: pathkey.New("bkt", "")})
	pointAt(t, m, "readme.txt", listing.KindFile)

	press(m, "x")
	require.Equal(t, ViewConfirm, m.Mode())
	assert.Contains(t, m.View(), "Delete 's3://bkt/readme.txt'? (y/n)")
	press(m, "n")
	assert.Equal(t, ViewBrowser, m.Mode())
	assert.Equal(t, "Delete cancelled", m.status)
	assert.Contains(t, s.Keys("bkt"), "readme.txt")

	press(m, "x")
	drain(m, press(m, "y"))
	require.NoError(t, m.err)
	assert.Equal(t, "✓ Deleted 'readme.txt'", m.status)
	assert.NotContains(t, s.Keys("bkt"), "readme.txt")
	assert.Equal(t, []string{"logs"}, names(m))
}

func TestModel_DeleteFolder(t *testing.T) {
	s := seeded()
	m := newModel(t, s, Options{Start: pathkey.New("bkt", "")})
	pointAt(t, m, "logs", listing.KindFolder)

	press(m, "x")
	assert.Contains(t, m.View(), "and everything under it")
	drain(m, press(m, "y"))
	assert.Equal(t, "✓ Deleted 2 objects under 'logs'", m.status)
	assert.Equal(t, []string{"readme.txt"}, names(m))
}

func TestModel_ListingFailure(t *testing.T) {
	s := seeded()
	m := newModel(t, s, Options{Start: pathkey.New("bkt", "")})
	require.Equal(t, []string{"logs", "readme.txt"}, names(m))

	s.SetListHook(func(ctx context.Context, bucket, prefix, token string) error {
		return errs.New(errs.KindPermissionDenied, "access denied")
	})
	drain(m, press(m, "r"))
	assert.True(t, errs.IsPermissionDenied(m.err))
	assert.Equal(t, []string{"logs", "readme.txt"}, names(m), "rows survive a failed refresh")
	assert.Contains(t, m.View(), "Error: ")
}

func TestModel_BucketListFailure(t *testing.T) {
	m, err := New(Options{Client: failingBuckets{seeded()}})
	require.NoError(t, err)
	drain(m, m.Init())
	assert.True(t, errs.IsPermissionDenied(m.err))
	assert.False(t, m.loadingBuckets)
	assert.Contains(t, m.View(), "No buckets found.")
}

func TestModel_HelpAndQuit(t *testing.T) {
	m := newModel(t, seeded(), Options{})

	press(m, "?")
	assert.Equal(t, ViewHelp, m.Mode())
	assert.Contains(t, m.View(), "s3ranger - Help")
	press(m, "esc")
	assert.Equal(t, ViewBuckets, m.Mode())

	cmd := press(m, "q")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestObjectRows(t *testing.T) {
	rows := objectRows([]listing.EntryRow{
		{Name: listing.ParentName, Kind: listing.KindParent},
		{Name: "logs", Kind: listing.KindFolder, Size: 1536},
		{Name: "a.txt", Kind: listing.KindFile, Size: 11},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, table.Row{"..", "", ""}, rows[0])
	assert.Equal(t, table.Row{"logs/", "1.5 KiB", ""}, rows[1])
	assert.Equal(t, table.Row{"a.txt", "11 B", ""}, rows[2])
}

type failingBuckets struct{ *memory.Store }

func (failingBuckets) ListBuckets(context.Context) ([]store.Bucket, error) {
	return nil, errs.New(errs.KindPermissionDenied, "list buckets denied")
}
