package tui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/slmtnm/s3ranger/internal/pathkey"
)

// View renders the current screen.
func (m *Model) View() string {
	switch m.viewMode {
	case ViewPreview:
		return m.viewPreview()
	case ViewHelp:
		return m.viewHelp()
	default:
		return m.viewBrowser()
	}
}

func (m *Model) header() string {
	path := pathkey.Scheme + "://"
	if m.viewMode != ViewBuckets && !m.location.IsZero() {
		path = folderURI(m.location)
	}
	return titleStyle.Render("s3ranger") + pathStyle.Render(path)
}

func (m *Model) statusLine() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("Error: " + m.err.Error())
	case m.busy > 0:
		return spinnerStyle.Render(m.spinner.View()) + " " + m.status
	case m.status != "":
		return successStyle.Render(m.status)
	default:
		return ""
	}
}

func (m *Model) viewBrowser() string {
	var s strings.Builder

	s.WriteString(m.header())
	s.WriteString("\n")
	s.WriteString(m.statusLine())
	s.WriteString("\n\n")

	if m.viewMode == ViewBuckets || m.nav.Location().IsZero() {
		s.WriteString(m.bucketPane())
	} else {
		s.WriteString(m.objectPane())
	}
	s.WriteString("\n")

	switch m.viewMode {
	case ViewPrompt:
		label := "Download " + m.target.String() + " to:"
		if m.prompt == opUpload {
			label = "Upload into " + folderURI(m.target) + " from:"
		}
		s.WriteString(promptStyle.Render(label + "\n" + m.input.View()))
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("enter: confirm • esc: cancel"))
	case ViewConfirm:
		question := fmt.Sprintf("Delete '%s'? (y/n)", m.pending.String())
		if m.pending.IsFolder() {
			question = fmt.Sprintf("Delete folder '%s' and everything under it? (y/n)", m.pending.String())
		}
		s.WriteString(promptStyle.Render(errorStyle.Render(question)))
	default:
		s.WriteString(m.help.View(m.keys))
	}
	return s.String()
}

func (m *Model) bucketPane() string {
	switch {
	case m.loadingBuckets:
		return spinnerStyle.Render(m.spinner.View()) + " Loading buckets..."
	case len(m.buckets) == 0:
		return "No buckets found."
	default:
		return m.bucketTable.View()
	}
}

func (m *Model) objectPane() string {
	empty := len(m.objectTable.Rows()) == 0
	switch {
	case m.nav.Loading() && empty:
		return spinnerStyle.Render(m.spinner.View()) + " Loading..."
	case empty:
		return "No objects found in this location."
	}

	out := m.objectTable.View()
	if m.nav.Loading() {
		out += "\n" + spinnerStyle.Render(m.spinner.View()) + " Refreshing..."
	}
	return out
}

func (m *Model) viewPreview() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Preview: " + m.previewLoc.String()))
	s.WriteString("\n")
	s.WriteString(previewStyle.Render(m.preview.View()))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(fmt.Sprintf("%3.f%% • ↑/k,↓/j: scroll • pgup/pgdn: page • ←/h/esc: back • q: quit", m.preview.ScrollPercent()*100)))
	return s.String()
}

// previewText numbers the lines of a loaded object.
func previewText(msg previewLoadedMsg) string {
	if msg.binary {
		return "[Binary file - cannot preview]"
	}
	if msg.content == "" {
		return "[Empty file]"
	}

	lines := strings.Split(strings.TrimSuffix(msg.content, "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%4d │ %s\n", i+1, line)
	}
	if msg.truncated {
		fmt.Fprintf(&b, "\n[Preview truncated at %s]", humanize.IBytes(MaxPreviewBytes))
	}
	return b.String()
}

func (m *Model) viewHelp() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("s3ranger - Help"))
	s.WriteString("\n\n")
	s.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	s.WriteString("\n\n")
	s.WriteString(`Browsing:
  Buckets are listed first; open one to browse it like a file system.
  Folders are derived from "/" in object keys. Sizes of folders are the
  total of everything under them.
  Going back from a bucket root returns to the bucket list.

Transfers:
  d  download the selected file or folder to a local directory
  u  upload a local file or directory into the current folder
  x  delete the selected file, or a folder with everything under it

Configuration:
  Settings come from ~/.s3ranger.toml, an s3cmd .s3cfg file, S3RANGER_*
  and AWS_* environment variables, and command-line flags.
  Run "s3ranger configure" for an interactive setup.
`)
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc/?: back • q: quit"))
	return s.String()
}
