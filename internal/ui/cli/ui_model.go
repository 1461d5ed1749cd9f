package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cobolscan/internal/core/ports"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	abortedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	diagnosticStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

// outlineEntry is one line of the outline drill-down.
type outlineEntry struct {
	name  string
	style string
	line  int
	depth int
}

type model struct {
	issueList list.Model
	fileList  list.Model
	mode      panelMode
	querySvc  ports.QueryService

	reports    []ports.ScanReport
	files      []ports.FileStatus
	lastUpdate time.Time
	fileCount  int

	outlineFile      string
	outline          []outlineEntry
	hasOutline       bool
	outlineErr       string
	selectedTokIndex int
	sourceJumpStatus string
}

type panelMode int

const (
	panelIssues panelMode = iota
	panelFiles
)

type updateMsg struct {
	reports   []ports.ScanReport
	files     []ports.FileStatus
	fileCount int
}

type sourceJumpResultMsg struct {
	target string
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 8
		if height < 5 {
			height = 5
		}
		m.issueList.SetSize(width, height)
		m.fileList.SetSize(width, height)
	case updateMsg:
		m.reports = msg.reports
		m.files = msg.files
		m.fileCount = msg.fileCount
		m.lastUpdate = time.Now()
		m.outlineErr = ""

		m.issueList.SetItems(issueItems(m.reports))

		fileItems := make([]list.Item, 0, len(m.files))
		for _, f := range m.files {
			title := filepath.Base(f.Path)
			if f.ProgramID != "" {
				title += " (" + f.ProgramID + ")"
			}
			desc := fmt.Sprintf("format=%s copybooks=%d diagnostics=%d", f.Format, f.Copybooks, f.Diagnostics)
			if f.Aborted {
				desc += " aborted"
			}
			fileItems = append(fileItems, item{title: title, desc: desc})
		}
		m.fileList.SetItems(fileItems)
		if m.hasOutline {
			m, _ = refreshOutline(m)
		}
	case sourceJumpResultMsg:
		if msg.err != nil {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Source jump failed: %v", msg.err))
		} else {
			m.sourceJumpStatus = statusStyle.Render(fmt.Sprintf("Opened source: %s", msg.target))
		}
	}

	var cmd tea.Cmd
	if m.mode == panelIssues {
		m.issueList, cmd = m.issueList.Update(msg)
	} else {
		m.fileList, cmd = m.fileList.Update(msg)
	}
	return m, cmd
}

// issueItems lists aborted scans first, then one item per diagnostic.
func issueItems(reports []ports.ScanReport) []list.Item {
	items := []list.Item{}
	for _, r := range reports {
		if r.Aborted {
			items = append(items, item{
				title: "Scan Aborted",
				desc:  r.Path,
			})
		}
	}
	for _, r := range reports {
		for _, d := range r.Diagnostics {
			file := d.File
			if file == "" {
				file = r.Path
			}
			items = append(items, item{
				title: d.Code,
				desc:  fmt.Sprintf("%s at %s:%d", d.Message, file, d.Line),
			})
		}
	}
	return items
}

func (m model) counts() (aborted, diagnostics int) {
	for _, r := range m.reports {
		if r.Aborted {
			aborted++
		}
		diagnostics += len(r.Diagnostics)
	}
	return aborted, diagnostics
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d files | %d rescanned",
		m.lastUpdate.Format("15:04:05"), m.fileCount, len(m.reports)))

	var summary string
	aborted, diagnostics := m.counts()
	if aborted == 0 && diagnostics == 0 {
		summary = successStyle.Render("Workspace Clean")
	} else {
		summary = fmt.Sprintf("%s | %s",
			abortedStyle.Render(fmt.Sprintf("%d aborted", aborted)),
			diagnosticStyle.Render(fmt.Sprintf("%d diagnostics", diagnostics)))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("COBOL Workspace Monitor"), status, summary)
	help := renderHelp(m)

	body := m.issueList.View()
	if m.mode == panelFiles {
		body = renderFilePanel(m)
	}
	if m.sourceJumpStatus != "" {
		body += "\n\n" + m.sourceJumpStatus
	}

	return docStyle.Render(header + "\n" + help + "\n\n" + body)
}

func initialModel(service ports.QueryService) model {
	issueList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	issueList.Title = "Diagnostics"
	issueList.SetShowStatusBar(false)
	issueList.SetFilteringEnabled(true)

	fileList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	fileList.Title = "Workspace Files"
	fileList.SetShowStatusBar(false)
	fileList.SetFilteringEnabled(true)

	return model{
		issueList:  issueList,
		fileList:   fileList,
		mode:       panelIssues,
		querySvc:   service,
		lastUpdate: time.Now(),
	}
}

func renderHelp(m model) string {
	keys := "Keys: tab panel | / filter | enter outline | esc back | j/k token cursor | o open source | q quit"
	if m.mode == panelIssues {
		keys = "Keys: tab panel | / filter | q quit"
	}
	return statusStyle.Render(keys)
}

func renderFilePanel(m model) string {
	summary := m.fileList.View()
	details := renderFileSummary(m)
	if m.hasOutline {
		details = renderOutline(m)
	}
	return summary + "\n\n" + details
}

func renderFileSummary(m model) string {
	if len(m.files) == 0 {
		return statusStyle.Render("No files scanned.")
	}
	idx := m.fileList.Index()
	if idx < 0 || idx >= len(m.files) {
		idx = 0
	}
	selected := m.files[idx]
	return strings.Join([]string{
		"Selected File",
		fmt.Sprintf("  Path: %s", selected.Path),
		fmt.Sprintf("  Program: %s", selected.ProgramID),
		fmt.Sprintf("  Format: %s", selected.Format),
		fmt.Sprintf("  Copybooks: %d", selected.Copybooks),
		fmt.Sprintf("  Diagnostics: %d", selected.Diagnostics),
		"  Press enter for the outline.",
	}, "\n")
}

const outlineWindow = 20

func renderOutline(m model) string {
	if m.outlineErr != "" {
		return abortedStyle.Render("Outline error: " + m.outlineErr)
	}
	lines := []string{fmt.Sprintf("Outline: %s (%d tokens)", m.outlineFile, len(m.outline))}
	start := 0
	if m.selectedTokIndex >= outlineWindow {
		start = m.selectedTokIndex - outlineWindow + 1
	}
	for i := start; i < len(m.outline) && i < start+outlineWindow; i++ {
		e := m.outline[i]
		prefix := "   "
		if i == m.selectedTokIndex {
			prefix = " ->"
		}
		lines = append(lines, fmt.Sprintf("%s %s%s (%s, line %d)", prefix, strings.Repeat("  ", e.depth), e.name, e.style, e.line))
	}
	if len(m.outline) == 0 {
		lines = append(lines, "   none")
	}
	lines = append(lines, "  Press esc to close the outline, o to jump to the highlighted token.")
	return strings.Join(lines, "\n")
}
