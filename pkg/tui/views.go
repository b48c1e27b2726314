package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#7aa2f7", Dark: "#7aa2f7"})
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("205")).
			Bold(true)
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)
)

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var main string
	switch m.screen {
	case screenPlugins:
		main = m.pluginsView()
	case screenEntities:
		main = m.entitiesView()
	case screenBody:
		main = m.viewport.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		main,
		m.statusView(),
		m.help.View(m.keys),
	)
}

func (m Model) headerView() string {
	switch m.screen {
	case screenEntities:
		return titleStyle.Render(m.plugin.Name) + mutedStyle.Render("  "+m.plugin.ID)
	case screenBody:
		return titleStyle.Render(m.ref.String())
	}
	name := m.catalog.Name()
	if name == "" {
		name = "Marketplace"
	}
	return titleStyle.Render(name) + mutedStyle.Render(fmt.Sprintf("  %d plugins", m.catalog.Len()))
}

// window returns the bounds of the rows to show so that selected stays
// visible.
func (m Model) window(total, selected int) (int, int) {
	rows := max(m.height-chromeHeight, 1)
	if total <= rows {
		return 0, total
	}
	start := min(max(selected-rows/2, 0), total-rows)
	return start, start + rows
}

func (m Model) pluginsView() string {
	var b strings.Builder
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(mutedStyle.Render("No plugins match."))
		return b.String()
	}

	start, end := m.window(len(m.visible), m.pluginIdx)
	for i := start; i < end; i++ {
		p := m.visible[i]
		line := fmt.Sprintf("%-32s %s", p.ID, categoryStyle.Render(p.Category))
		if i == m.pluginIdx {
			line = selectedStyle.Render(fmt.Sprintf("%-32s", p.ID)) + " " + categoryStyle.Render(p.Category)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) entitiesView() string {
	var b strings.Builder
	if m.plugin.Description != "" {
		b.WriteString(mutedStyle.Render(m.plugin.Description))
		b.WriteString("\n")
	}
	if len(m.refs) == 0 {
		b.WriteString(mutedStyle.Render("This plugin provides no entities."))
		return b.String()
	}

	start, end := m.window(len(m.refs), m.refIdx)
	for i := start; i < end; i++ {
		ref := m.refs[i]
		label := fmt.Sprintf("%-8s %s", ref.Kind.Singular(), ref.Entity)
		if i == m.refIdx {
			label = selectedStyle.Render(label)
		}
		b.WriteString(label)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderBody() string {
	if m.body == nil {
		return ""
	}
	var b strings.Builder
	if m.body.Description != "" {
		b.WriteString(categoryStyle.Render(m.body.Description))
		b.WriteString("\n\n")
	}
	text := m.body.Text
	if m.width > 0 {
		text = lipgloss.NewStyle().Width(m.width).Render(text)
	}
	b.WriteString(text)
	return b.String()
}

func (m Model) statusView() string {
	text := m.status
	if text == "" {
		text = statusLine(m)
	}
	return statusStyle.Render(text)
}

func statusLine(m Model) string {
	switch m.screen {
	case screenEntities:
		return fmt.Sprintf("%s │ %d entities", m.plugin.Category, len(m.refs))
	case screenBody:
		return fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100)
	}
	return shortDigest(m.catalog)
}

func shortDigest(c *catalog.Catalog) string {
	d := c.Digest()
	if d == "" {
		return ""
	}
	enc := d.Encoded()
	if len(enc) > 12 {
		enc = enc[:12]
	}
	return string(d.Algorithm()) + ":" + enc
}
