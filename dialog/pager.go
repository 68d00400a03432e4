package dialog

import (
	"io"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")).Padding(0, 1)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
)

const pagerChrome = 5 // title, summary, blank line, footer, status

// Pager shows the alert in a scrollable full-screen terminal view. The plain
// text is written to Out after the pager closes so it stays in scrollback.
type Pager struct {
	In  io.Reader
	Out io.Writer
	// Copy puts text on the clipboard. Defaults to the system clipboard.
	Copy func(string) error
}

func (p *Pager) Present(a Alert) error {
	copyFn := p.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}
	m := newPagerModel(a, copyFn)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(p.In), tea.WithOutput(p.Out))
	if _, err := prog.Run(); err != nil {
		return err
	}
	return Console{Out: p.Out}.Present(a)
}

type pagerModel struct {
	alert    Alert
	viewport viewport.Model
	copy     func(string) error
	status   string
	width    int
}

func newPagerModel(a Alert, copyFn func(string) error) *pagerModel {
	vp := viewport.New(80, 20)
	vp.SetContent(a.Detail)
	return &pagerModel{alert: a, viewport: vp, copy: copyFn, width: 80}
}

func (m *pagerModel) Init() tea.Cmd {
	return nil
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc", "enter":
			return m, tea.Quit
		case "c":
			if err := m.copy(m.alert.Detail); err != nil {
				m.status = "copy failed: " + err.Error()
			} else {
				m.status = "copied to clipboard"
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-pagerChrome, 1)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *pagerModel) View() string {
	summary := lipgloss.NewStyle().Width(m.width).Render(summaryStyle.Render(m.alert.Summary))
	footer := footerStyle.Render("↑/↓: scroll • c: copy • q/Enter: close")
	return titleStyle.Render(m.alert.Title) + "\n" +
		summary + "\n\n" +
		m.viewport.View() + "\n" +
		footer + "\n" +
		statusStyle.Render(m.status)
}
