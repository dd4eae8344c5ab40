package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pageSize = 20

type browserModel struct {
	layout   *layout
	filter   textinput.Model
	visible  []int
	selected int
	offset   int
	state    browserState
}

type browserState int

const (
	stateBrowse browserState = iota
	stateFilter
)

func newBrowserModel(l *layout) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "path"
	ti.Prompt = "/"
	ti.Width = 40
	m := &browserModel{layout: l, filter: ti}
	m.applyFilter()
	return m
}

// applyFilter keeps the nodes whose path contains the filter text.
func (m *browserModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, n := range m.layout.nodes {
		if q == "" || strings.Contains(strings.ToLower(n.path), q) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected, m.offset = 0, 0
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.filter.Blur()
			m.state = stateBrowse
			return m, nil
		case "esc":
			m.filter.SetValue("")
			m.filter.Blur()
			m.state = stateBrowse
			m.applyFilter()
			return m, nil
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
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.visible)-1 {
			m.selected++
		}
	case "pgdown":
		m.selected = min(m.selected+pageSize, max(len(m.visible)-1, 0))
	case "pgup":
		m.selected = max(m.selected-pageSize, 0)
	case "/":
		m.state = stateFilter
		return m, m.filter.Focus()
	case "esc":
		m.filter.SetValue("")
		m.applyFilter()
	}

	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+pageSize {
		m.offset = m.selected - pageSize + 1
	}
	return m, nil
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("zc inspect"))
	b.WriteString(" ")
	b.WriteString(m.layout.f.String())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.layout.summary()))
	b.WriteString("\n\n")

	if m.state == stateFilter || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	if len(m.visible) == 0 {
		b.WriteString("No matching values.\n")
	}
	end := min(m.offset+pageSize, len(m.visible))
	for i := m.offset; i < end; i++ {
		n := m.layout.nodes[m.visible[i]]
		line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", n.depth), n.label+":", n.value)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + strings.Repeat("  ", n.depth) + labelStyle.Render(n.label+":") + " " + valueStyle.Render(n.value))
		}
		b.WriteString("\n")
	}

	if len(m.visible) > 0 {
		b.WriteString("\n")
		path := m.layout.nodes[m.visible[m.selected]].path
		if path == "" {
			path = "(root)"
		}
		b.WriteString(pathStyle.Render(path))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.state == stateFilter {
		b.WriteString(helpStyle.Render("enter apply • esc clear"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • / filter • esc clear • q quit"))
	}
	return b.String()
}
