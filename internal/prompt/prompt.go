// pattern: Imperative Shell

// Package prompt renders the interactive decision menus and the
// commit-message input used after a supervised agent exits. Rendering
// goes to stderr so stdout stays reserved for machine-readable paths.
package prompt

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled reports a prompt dismissed without a choice (esc, ctrl+c).
var ErrCancelled = errors.New("cancelled")

// Choice is one selectable menu entry. Key is what the caller switches
// on; Label is what the user sees.
type Choice struct {
	Key   string
	Label string
}

// Prompter asks the user questions on the controlling terminal.
type Prompter struct {
	styles *styles
}

// New creates a Prompter styled with the given theme flavor.
func New(theme string) *Prompter {
	return &Prompter{styles: newStyles(theme)}
}

// Select presents a vertical menu and returns the chosen Choice's Key.
func (p *Prompter) Select(title string, choices []Choice) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("no choices to present")
	}
	m := newMenuModel(title, choices, p.styles)
	final, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	result := final.(menuModel)
	if result.cancelled {
		return "", ErrCancelled
	}
	return result.choices[result.cursor].Key, nil
}

// CommitMessage asks for a single-line commit message. An empty submit
// counts as a cancel.
func (p *Prompter) CommitMessage() (string, error) {
	m := newInputModel("Commit message", p.styles)
	final, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	result := final.(inputModel)
	if result.cancelled || result.Value() == "" {
		return "", ErrCancelled
	}
	return result.Value(), nil
}
