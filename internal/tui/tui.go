// Package tui implements the Bubble Tea pager for stored capsules.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/diff"
)

// Model is the Bubble Tea model for paging through one capsule's diff.
type Model struct {
	caps *capsule.Capsule
	ds   *diff.DiffSet

	viewport viewport.Model
	ready    bool

	// Line offsets of each file header inside the rendered content, for
	// n/N jumps.
	fileOffsets []int
	fileIndex   int

	lines []string
}

// New builds a pager model for a capsule. The diff is parsed strictly
// here; a capsule whose stored diff no longer parses falls back to raw
// lines.
func New(c *capsule.Capsule) Model {
	m := Model{caps: c}
	if ds, err := diff.Parse(c.Diff); err == nil && len(ds.Files) > 0 {
		m.ds = ds
		m.lines, m.fileOffsets = renderDiffSet(ds)
	} else {
		m.lines = strings.Split(strings.TrimRight(c.Diff, "\n"), "\n")
		m.fileOffsets = []int{0}
	}
	return m
}

// Show runs the pager until the user quits.
func Show(c *capsule.Capsule) error {
	p := tea.NewProgram(New(c), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.NextFile):
			if m.fileIndex < len(m.fileOffsets)-1 {
				m.fileIndex++
				m.viewport.SetYOffset(m.fileOffsets[m.fileIndex])
			}
			return m, nil

		case key.Matches(msg, keys.PrevFile):
			if m.fileIndex > 0 {
				m.fileIndex--
				m.viewport.SetYOffset(m.fileOffsets[m.fileIndex])
			}
			return m, nil

		case key.Matches(msg, keys.Top):
			m.viewport.GotoTop()
			return m, nil

		case key.Matches(msg, keys.Bottom):
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.helpView()
}

func (m Model) headerView() string {
	meta := m.caps.Meta
	banner := fmt.Sprintf("%s %s  %s",
		riskStyle(meta.Risk).Render(strings.ToUpper(meta.Risk.String())),
		meta.CapsuleID,
		metaKeyStyle.Render("["+meta.ApprovalStatus.String()+"]"))

	added, removed := m.caps.DiffStats()
	status := statusBarStyle.Render(fmt.Sprintf("%d file(s)  +%d -%d  %d%%",
		len(m.fileOffsets), added, removed, int(m.viewport.ScrollPercent()*100)))

	return banner + "\n" + status
}

func (m Model) helpView() string {
	return helpBarStyle.Render("↑/↓ scroll · n/N file · g/G top/bottom · q quit")
}
