// Package tui renders the indicator view in a terminal.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"iocviewer/internal/threat"
	"iocviewer/internal/view"
)

// chromeLines is the number of lines around the list: title, query,
// status and footer.
const chromeLines = 4

// Controller is the part of view.Controller the model drives.
type Controller interface {
	SelectSource(source threat.SourceID) error
	Retry()
	QueryInput(text string)
	Scroll(offset int)
	Resize(height int)
}

type snapshotMsg view.Snapshot

// Mailbox holds the latest snapshot published by the controller. Put never
// blocks, so it is safe to call from a controller observer.
type Mailbox struct {
	ch chan view.Snapshot
}

func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan view.Snapshot, 1)}
}

// Put replaces any snapshot not yet consumed. It expects a single producer.
func (b *Mailbox) Put(s view.Snapshot) {
	select {
	case <-b.ch:
	default:
	}
	b.ch <- s
}

func (b *Mailbox) wait() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-b.ch)
	}
}

// Attach configures ctrl for one-line rows and routes its snapshots into a
// new mailbox. The returned func unsubscribes.
func Attach(ctrl *view.Controller) (*Mailbox, func()) {
	box := NewMailbox()
	ctrl.SetRowSize(1)
	cancel := ctrl.Subscribe(box.Put)
	return box, cancel
}

// Model is the bubbletea model of the viewer.
type Model struct {
	ctrl    Controller
	box     *Mailbox
	sources []threat.SourceID
	input   textinput.Model
	help    help.Model

	snap   view.Snapshot
	scroll int
	width  int
	height int
}

func New(ctrl Controller, box *Mailbox, sources []threat.SourceID) Model {
	ti := textinput.New()
	ti.Placeholder = "Search IP..."
	ti.Prompt = "/ "
	ti.Focus()

	if len(sources) == 0 {
		sources = threat.ListSources()
	}
	return Model{
		ctrl:    ctrl,
		box:     box,
		sources: sources,
		input:   ti,
		help:    help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.box.wait())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = view.Snapshot(msg)
		if m.scroll > m.maxScroll() {
			m.scrollTo(m.maxScroll())
		}
		return m, m.box.wait()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 1)
		m.help.Width = msg.Width
		m.ctrl.Resize(m.listHeight())
		return m, nil

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scrollTo(m.scroll - 3)
		case tea.MouseButtonWheelDown:
			m.scrollTo(m.scroll + 3)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Source):
			m.resetScroll()
			if err := m.ctrl.SelectSource(m.nextSource()); err != nil {
				m.snap.Err = err
			}
			return m, nil
		case key.Matches(msg, keys.Retry):
			m.ctrl.Retry()
			return m, nil
		case key.Matches(msg, keys.Up):
			m.scrollTo(m.scroll - 1)
			return m, nil
		case key.Matches(msg, keys.Down):
			m.scrollTo(m.scroll + 1)
			return m, nil
		case key.Matches(msg, keys.PageUp):
			m.scrollTo(m.scroll - m.listHeight())
			return m, nil
		case key.Matches(msg, keys.PageDown):
			m.scrollTo(m.scroll + m.listHeight())
			return m, nil
		case key.Matches(msg, keys.Top):
			m.scrollTo(0)
			return m, nil
		case key.Matches(msg, keys.Bottom):
			m.scrollTo(m.maxScroll())
			return m, nil
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.resetScroll()
		m.ctrl.QueryInput(after)
	}
	return m, cmd
}

func (m *Model) scrollTo(offset int) {
	offset = min(max(offset, 0), m.maxScroll())
	if offset == m.scroll {
		return
	}
	m.scroll = offset
	m.ctrl.Scroll(offset)
}

// resetScroll moves back to the top. The controller is told even when the
// local offset is already 0, since it may still hold an older one.
func (m *Model) resetScroll() {
	m.scroll = 0
	m.ctrl.Scroll(0)
}

func (m Model) maxScroll() int {
	return max(m.snap.Window.TotalExtent-m.listHeight(), 0)
}

func (m Model) listHeight() int {
	return max(m.height-chromeLines, 0)
}

func (m Model) nextSource() threat.SourceID {
	for i, s := range m.sources {
		if s == m.snap.Source {
			return m.sources[(i+1)%len(m.sources)]
		}
	}
	return m.sources[0]
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.title())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.status())
	b.WriteString("\n")

	lines := m.listLines()
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for i := len(lines); i < m.listHeight(); i++ {
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render(fmt.Sprintf("Showing %d of %d IOCs", m.snap.Matched, m.snap.Total)))
	b.WriteString("  ")
	b.WriteString(m.help.ShortHelpView(keys.help()))
	return b.String()
}

func (m Model) title() string {
	name := m.snap.SourceName
	if name == "" {
		name = string(m.snap.Source)
	}
	t := titleStyle.Render("IOC Viewer · " + name)
	if !m.snap.FetchedAt.IsZero() {
		t += subtleStyle.Render(fmt.Sprintf("  %s, fetched %s",
			m.snap.IndicatorType, m.snap.FetchedAt.Format("2006-01-02 15:04:05 MST")))
	}
	return t
}

func (m Model) status() string {
	switch m.snap.Phase {
	case view.PhaseLoading:
		return subtleStyle.Render(fmt.Sprintf("Loading %s...", m.snap.Source))
	case view.PhaseError:
		return errorStyle.Render(fmt.Sprintf("Error: %v (ctrl+r to retry)", m.snap.Err))
	case view.PhaseLoaded:
		if m.snap.Matched == 0 {
			return subtleStyle.Render("No matching indicators")
		}
	}
	return ""
}

// listLines returns the rows that fall inside the viewport; overscan rows
// are not drawn.
func (m Model) listLines() []string {
	height := m.listHeight()
	top := m.snap.Window.ScrollOffset
	lines := make([]string, 0, height)
	for _, row := range m.snap.Rows {
		line := row.Offset - top
		if line < 0 || line >= height {
			continue
		}
		for len(lines) < line {
			lines = append(lines, "")
		}
		text := fmt.Sprintf("%7d  %-39s  %8s  %s",
			row.DisplayIndex, row.Address, strconv.FormatFloat(row.Score, 'f', -1, 64), row.Severity)
		lines = append(lines, severityStyle(row.Severity).Render(text))
	}
	return lines
}
