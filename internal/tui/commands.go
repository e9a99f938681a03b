package tui

import (
	"bytes"
	"io"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/fetch"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
	"github.com/slmtnm/s3ranger/internal/transfer"
)

// MaxPreviewBytes caps how much of an object the preview reads.
const MaxPreviewBytes = 256 * 1024

type operation int

const (
	opDownload operation = iota
	opUpload
	opDelete
)

func (o operation) String() string {
	switch o {
	case opDownload:
		return "download"
	case opUpload:
		return "upload"
	case opDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Messages for async operations
type (
	bucketsLoadedMsg struct {
		buckets []store.Bucket
		err     error
	}

	listingMsg struct {
		result fetch.Result
	}

	previewLoadedMsg struct {
		loc       pathkey.Location
		content   string
		binary    bool
		truncated bool
		err       error
	}

	transferDoneMsg struct {
		op     operation
		target pathkey.Location
		local  string
		report transfer.Report
		err    error
	}
)

// fetchCmd runs a navigator task in the background.
func fetchCmd(task fetch.Task) tea.Cmd {
	if task == nil {
		return nil
	}
	return func() tea.Msg {
		return listingMsg{result: task()}
	}
}

func (m *Model) loadBuckets() tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		buckets, err := client.ListBuckets(ctx)
		return bucketsLoadedMsg{buckets: buckets, err: err}
	}
}

func (m *Model) loadPreview(loc pathkey.Location) tea.Cmd {
	ctx, client := m.ctx, m.client
	return func() tea.Msg {
		body, err := client.GetObject(ctx, loc)
		if err != nil {
			return previewLoadedMsg{loc: loc, err: err}
		}
		defer body.Close()

		data, err := io.ReadAll(io.LimitReader(body, MaxPreviewBytes+1))
		if err != nil {
			return previewLoadedMsg{loc: loc, err: errs.Wrap(errs.KindStoreFailed, "failed to read "+loc.String(), err)}
		}
		msg := previewLoadedMsg{loc: loc}
		if len(data) > MaxPreviewBytes {
			data = trimPartialRune(data[:MaxPreviewBytes])
			msg.truncated = true
		}
		if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
			msg.binary = true
			return msg
		}
		msg.content = string(data)
		return msg
	}
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off by the read limit.
func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax && i < len(data); i++ {
		if utf8.RuneStart(data[len(data)-1-i]) {
			if !utf8.FullRune(data[len(data)-1-i:]) {
				return data[:len(data)-1-i]
			}
			break
		}
	}
	return data
}

func (m *Model) download(loc pathkey.Location, destDir string) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		rep, err := engine.Download(ctx, loc, destDir)
		return transferDoneMsg{op: opDownload, target: loc, local: destDir, report: rep, err: err}
	}
}

func (m *Model) upload(localPath string, dest pathkey.Location) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		rep, err := engine.Upload(ctx, localPath, dest)
		return transferDoneMsg{op: opUpload, target: dest, local: localPath, report: rep, err: err}
	}
}

func (m *Model) remove(loc pathkey.Location) tea.Cmd {
	ctx, engine := m.ctx, m.engine
	return func() tea.Msg {
		rep, err := engine.Delete(ctx, loc)
		return transferDoneMsg{op: opDelete, target: loc, report: rep, err: err}
	}
}
