package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func press(m ConfirmModel, keys ...tea.KeyMsg) ConfirmModel {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(ConfirmModel)
	}
	return m
}

func TestConfirmModel(t *testing.T) {
	tests := []struct {
		name string
		def  Decision
		key  tea.KeyMsg
		want Decision
	}{
		{"yes", Denied, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}, Accepted},
		{"upper yes", Denied, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Y")}, Accepted},
		{"no", Accepted, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")}, Denied},
		{"enter takes default", Denied, tea.KeyMsg{Type: tea.KeyEnter}, Denied},
		{"enter accepts default", Accepted, tea.KeyMsg{Type: tea.KeyEnter}, Accepted},
		{"escape", Accepted, tea.KeyMsg{Type: tea.KeyEsc}, Denied},
		{"other keys ignored", Denied, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}, Undecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := press(NewConfirm("Empty the trash?", tt.def), tt.key)
			if got := m.Selected(); got != tt.want {
				t.Errorf("Selected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfirmModelEnterWithoutDefault(t *testing.T) {
	m := press(NewConfirm("Proceed?", Undecided), tea.KeyMsg{Type: tea.KeyEnter})
	if m.done {
		t.Fatal("prompt finished without a decision")
	}
}
