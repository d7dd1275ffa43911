package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/scanx-wasm/bindings"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	formatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entry struct {
	file   string
	result bindings.ReadResult
}

type browseState int

const (
	stateList browseState = iota
	stateFilter
	stateDetail
)

type browseModel struct {
	entries  []entry
	visible  []int
	filter   textinput.Model
	detail   string
	err      error
	selected int
	state    browseState
}

func newBrowseModel(all []fileResults) *browseModel {
	m := &browseModel{state: stateList}
	for _, fr := range all {
		for _, r := range fr.Results {
			m.entries = append(m.entries, entry{file: fr.File, result: r})
		}
	}
	m.filter = textinput.New()
	m.filter.Placeholder = "format or text"
	m.filter.Prompt = "filter: "
	m.filter.Width = 40
	m.applyFilter()
	return m
}

func runBrowser(all []fileResults) error {
	_, err := tea.NewProgram(newBrowseModel(all), tea.WithAltScreen()).Run()
	return err
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, e := range m.entries {
		if q == "" ||
			strings.Contains(strings.ToLower(string(e.result.Format)), q) ||
			strings.Contains(strings.ToLower(e.result.Text), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "enter", "esc":
			m.filter.Blur()
			m.state = stateList
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateList && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateList && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "/":
		if m.state == stateList {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateList:
			if len(m.visible) > 0 {
				m.showDetail()
			}
		case stateDetail:
			m.state = stateList
		}

	case "esc":
		if m.state == stateDetail {
			m.state = stateList
			m.detail = ""
			m.err = nil
		}
	}
	return m, nil
}

func (m *browseModel) showDetail() {
	e := m.entries[m.visible[m.selected]]
	r := e.result
	r.Symbol.Data = nil
	out, err := yaml.Marshal(r)
	m.detail, m.err = string(out), err
	m.state = stateDetail
}

func (m *browseModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("scanx"))
	b.WriteString(fmt.Sprintf(" %d barcodes\n\n", len(m.entries)))

	switch m.state {
	case stateList, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		if len(m.visible) == 0 {
			b.WriteString("No barcodes found.\n")
		}
		for i, idx := range m.visible {
			line := m.formatEntry(m.entries[idx])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter details • / filter • q quit"))

	case stateDetail:
		e := m.entries[m.visible[m.selected]]
		b.WriteString(fmt.Sprintf("%s in %s:\n\n", formatStyle.Render(string(e.result.Format)), e.file))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.detail))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("esc back • q quit"))
	}
	return b.String()
}

func (m *browseModel) formatEntry(e entry) string {
	text := e.result.Text
	if len(text) > 48 {
		text = text[:45] + "..."
	}
	return fmt.Sprintf("%-16s %s  %s", formatStyle.Render(string(e.result.Format)), text, helpStyle.Render(e.file))
}
