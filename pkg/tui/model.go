// Package tui is a terminal browser for a plugin catalog. Plugins and their
// entity identifiers come from the catalog index; a body is loaded only when
// the user opens that entity.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/content"
)

type screen int

const (
	screenPlugins screen = iota
	screenEntities
	screenBody
)

// chromeHeight is the space taken by the header, status and help lines.
const chromeHeight = 5

// bodyLoadedMsg carries the result of a lazy body load.
type bodyLoadedMsg struct {
	ref  catalog.Ref
	body *content.Body
	err  error
}

// Model is the browser state.
type Model struct {
	ctx     context.Context
	catalog *catalog.Catalog

	visible   []catalog.PluginSummary
	pluginIdx int

	plugin catalog.Plugin
	refs   []catalog.Ref
	refIdx int

	ref  catalog.Ref
	body *content.Body

	screen    screen
	filter    textinput.Model
	filtering bool
	viewport  viewport.Model
	help      help.Model
	keys      keyMap

	width   int
	height  int
	loading bool
	status  string
	ready   bool
}

// NewModel creates a browser over c.
func NewModel(ctx context.Context, c *catalog.Catalog) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by id, name or category"
	ti.CharLimit = 64

	m := Model{
		ctx:      ctx,
		catalog:  c,
		filter:   ti,
		viewport: viewport.New(0, 0),
		help:     help.New(),
		keys:     defaultKeyMap(),
	}
	m.applyFilter()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles the message updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 1)
		m.ready = true
		if m.body != nil {
			m.viewport.SetContent(m.renderBody())
		}
		return m, nil

	case bodyLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.ref = msg.ref
		m.body = msg.body
		m.status = ""
		m.screen = screenBody
		m.viewport.SetContent(m.renderBody())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

		switch m.screen {
		case screenPlugins:
			return m.updatePlugins(msg)
		case screenEntities:
			return m.updateEntities(msg)
		case screenBody:
			return m.updateBody(msg)
		}
	}

	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updatePlugins(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.pluginIdx = max(m.pluginIdx-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.pluginIdx = min(m.pluginIdx+1, max(len(m.visible)-1, 0))
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		cmd := m.filter.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Open):
		if len(m.visible) == 0 {
			return m, nil
		}
		p, err := m.catalog.Resolve(m.visible[m.pluginIdx].ID)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.plugin = p
		m.refs = p.Refs()
		m.refIdx = 0
		m.status = ""
		m.screen = screenEntities
	case key.Matches(msg, m.keys.Back):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.applyFilter()
		}
	}
	return m, nil
}

func (m Model) updateEntities(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.refIdx = max(m.refIdx-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.refIdx = min(m.refIdx+1, max(len(m.refs)-1, 0))
	case key.Matches(msg, m.keys.Back):
		m.screen = screenPlugins
		m.status = ""
	case key.Matches(msg, m.keys.Open):
		if len(m.refs) == 0 || m.loading {
			return m, nil
		}
		m.loading = true
		m.status = "Loading " + m.refs[m.refIdx].String() + "..."
		return m, m.loadBody(m.refs[m.refIdx])
	}
	return m, nil
}

func (m Model) updateBody(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.screen = screenEntities
		m.body = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) loadBody(ref catalog.Ref) tea.Cmd {
	c, ctx := m.catalog, m.ctx
	return func() tea.Msg {
		body, err := c.LoadEntityBody(ctx, ref)
		return bodyLoadedMsg{ref: ref, body: body, err: err}
	}
}

func (m *Model) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	visible := make([]catalog.PluginSummary, 0, m.catalog.Len())
	for _, p := range m.catalog.Plugins() {
		if query == "" || matches(p, query) {
			visible = append(visible, p)
		}
	}
	m.visible = visible
	m.pluginIdx = min(m.pluginIdx, max(len(m.visible)-1, 0))
}

func matches(p catalog.PluginSummary, query string) bool {
	for _, field := range []string{p.ID, p.Name, p.Category} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
