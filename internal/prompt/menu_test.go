package prompt

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keyMsg(s string) tea.Msg {
	switch s {
	case "up", "down", "enter", "esc":
		types := map[string]tea.KeyType{
			"up":    tea.KeyUp,
			"down":  tea.KeyDown,
			"enter": tea.KeyEnter,
			"esc":   tea.KeyEsc,
		}
		return tea.KeyMsg{Type: types[s]}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testChoices() []Choice {
	return []Choice{
		{Key: "merge", Label: "Merge now"},
		{Key: "reopen", Label: "Reopen the agent"},
		{Key: "leave", Label: "Exit, keep the worktree"},
	}
}

func TestMenuNavigationClampsAtEdges(t *testing.T) {
	m := newMenuModel("After exit", testChoices(), newStyles("mocha"))

	next, _ := m.Update(keyMsg("up"))
	m = next.(menuModel)
	if m.cursor != 0 {
		t.Errorf("cursor after up at top = %d, want 0", m.cursor)
	}

	for i := 0; i < 5; i++ {
		next, _ = m.Update(keyMsg("down"))
		m = next.(menuModel)
	}
	if m.cursor != 2 {
		t.Errorf("cursor after repeated down = %d, want 2", m.cursor)
	}
}

func TestMenuEnterSelects(t *testing.T) {
	m := newMenuModel("After exit", testChoices(), newStyles("mocha"))
	next, _ := m.Update(keyMsg("down"))
	m = next.(menuModel)
	next, cmd := m.Update(keyMsg("enter"))
	m = next.(menuModel)
	if !m.done || m.cancelled {
		t.Errorf("done=%v cancelled=%v after enter", m.done, m.cancelled)
	}
	if cmd == nil {
		t.Error("enter did not quit the program")
	}
	if m.choices[m.cursor].Key != "reopen" {
		t.Errorf("selected key = %q, want reopen", m.choices[m.cursor].Key)
	}
}

func TestMenuEscCancels(t *testing.T) {
	m := newMenuModel("After exit", testChoices(), newStyles("mocha"))
	next, _ := m.Update(keyMsg("esc"))
	m = next.(menuModel)
	if !m.cancelled {
		t.Error("esc did not cancel")
	}
}

func TestMenuViewMarksCursor(t *testing.T) {
	m := newMenuModel("After exit", testChoices(), newStyles("mocha"))
	view := m.View()
	if !strings.Contains(view, "After exit") {
		t.Error("view missing title")
	}
	if !strings.Contains(view, "> Merge now") {
		t.Errorf("view does not mark first entry:\n%s", view)
	}
}

func TestFlavorFallsBackToMocha(t *testing.T) {
	if flavorFromName("nope") != flavorFromName("mocha") {
		t.Error("unknown theme did not fall back to mocha")
	}
}
