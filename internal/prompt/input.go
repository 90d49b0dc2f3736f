// pattern: Functional Core

package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type inputModel struct {
	title     string
	input     textinput.Model
	done      bool
	cancelled bool
	styles    *styles
}

func newInputModel(title string, st *styles) inputModel {
	ti := textinput.New()
	ti.Placeholder = "describe the change"
	ti.CharLimit = 200
	ti.Width = 60
	ti.Focus()
	return inputModel{title: title, input: ti, styles: st}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.title().Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.styles.help().Render("enter confirm, esc cancel"))
	b.WriteString("\n")
	return b.String()
}

// Value returns the trimmed entered text.
func (m inputModel) Value() string {
	return strings.TrimSpace(m.input.Value())
}
