// pattern: Functional Core

package prompt

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type menuModel struct {
	title     string
	choices   []Choice
	cursor    int
	done      bool
	cancelled bool
	styles    *styles
}

func newMenuModel(title string, choices []Choice, st *styles) menuModel {
	return menuModel{title: title, choices: choices, styles: st}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		m.done = true
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m menuModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.title().Render(m.title))
	b.WriteString("\n\n")
	for i, c := range m.choices {
		if i == m.cursor {
			b.WriteString(m.styles.selected().Render("> " + c.Label))
		} else {
			b.WriteString(m.styles.unselected().Render("  " + c.Label))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.styles.help().Render("up/down move, enter select, esc cancel"))
	b.WriteString("\n")
	return b.String()
}
