package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"cobolscan/internal/engine/scanner"

	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelIssues {
			m.mode = panelFiles
		} else {
			m.mode = panelIssues
		}
		return m, nil
	}

	if m.mode != panelFiles {
		var cmd tea.Cmd
		m.issueList, cmd = m.issueList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter":
		return openOutline(m)
	case "esc", "backspace":
		m.hasOutline = false
		m.outlineErr = ""
		m.selectedTokIndex = 0
		return m, nil
	case "j":
		if m.hasOutline && len(m.outline) > 0 {
			if m.selectedTokIndex < len(m.outline)-1 {
				m.selectedTokIndex++
			}
			return m, nil
		}
	case "k":
		if m.hasOutline && len(m.outline) > 0 {
			if m.selectedTokIndex > 0 {
				m.selectedTokIndex--
			}
			return m, nil
		}
	case "o":
		if !m.hasOutline {
			return m, nil
		}
		target, ok := selectedSourceTarget(m)
		if !ok {
			m.sourceJumpStatus = statusStyle.Render("No source target available.")
			return m, nil
		}
		return m, jumpToSourceCmd(target)
	}

	var cmd tea.Cmd
	m.fileList, cmd = m.fileList.Update(msg)
	return m, cmd
}

// openOutline loads the outline of the highlighted file.
func openOutline(m model) (model, tea.Cmd) {
	if len(m.files) == 0 {
		return m, nil
	}
	idx := m.fileList.Index()
	if idx < 0 || idx >= len(m.files) {
		idx = 0
	}
	m.outlineFile = m.files[idx].Path
	m.selectedTokIndex = 0
	return refreshOutline(m)
}

// refreshOutline rescans the open outline file, keeping the cursor in range.
func refreshOutline(m model) (model, tea.Cmd) {
	if m.querySvc == nil || m.outlineFile == "" {
		return m, nil
	}
	toks, err := m.querySvc.Outline(context.Background(), m.outlineFile)
	if err != nil {
		m.outlineErr = err.Error()
		m.outline = nil
		m.hasOutline = true
		return m, nil
	}
	m.outline = outlineEntries(toks)
	m.outlineErr = ""
	m.hasOutline = true
	if m.selectedTokIndex >= len(m.outline) {
		m.selectedTokIndex = 0
	}
	return m, nil
}

// outlineEntries flattens toks into outline lines with their nesting depth.
func outlineEntries(toks []*scanner.Token) []outlineEntry {
	byID := make(map[scanner.TokenID]*scanner.Token, len(toks))
	for _, t := range toks {
		byID[t.ID] = t
	}
	out := make([]outlineEntry, 0, len(toks))
	for _, t := range toks {
		if t.IgnoreInOutlineView {
			continue
		}
		depth := 0
		for p := t.Parent; p != scanner.NoToken && depth < 32; depth++ {
			parent, ok := byID[p]
			if !ok {
				break
			}
			p = parent.Parent
		}
		out = append(out, outlineEntry{name: t.Name, style: t.Style.String(), line: t.StartLine, depth: depth})
	}
	return out
}

type sourceTarget struct {
	file string
	line int
}

func selectedSourceTarget(m model) (sourceTarget, bool) {
	if m.outlineFile == "" {
		return sourceTarget{}, false
	}
	if len(m.outline) == 0 {
		return sourceTarget{file: m.outlineFile, line: 1}, true
	}
	idx := m.selectedTokIndex
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.outline) {
		idx = len(m.outline) - 1
	}
	return sourceTarget{file: m.outlineFile, line: m.outline[idx].line}, true
}

func jumpToSourceCmd(target sourceTarget) tea.Cmd {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	args := []string{target.file}
	if strings.Contains(editor, "vim") || strings.Contains(editor, "nvim") || strings.HasSuffix(editor, "/vi") || editor == "vi" {
		args = []string{fmt.Sprintf("+%d", target.line), target.file}
	}
	cmd := exec.Command(editor, args...)
	label := fmt.Sprintf("%s:%d", target.file, target.line)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return sourceJumpResultMsg{target: label, err: err}
	})
}
