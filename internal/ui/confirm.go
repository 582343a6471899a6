// Package ui holds the interactive terminal prompts.
package ui

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// Decision is the answer given to a confirmation prompt
type Decision int

const (
	Undecided Decision = iota
	Accepted
	Denied
)

func (d Decision) String() string {
	return [...]string{"undecided", "accepted", "denied"}[d]
}

func (d Decision) IsAccepted() bool { return d == Accepted }

var (
	promptStyle   = lipgloss.NewStyle().Bold(true)
	prefixStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	deniedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// ConfirmModel asks a yes/no question answered by a single key press
type ConfirmModel struct {
	Prompt   string
	Default  Decision
	Width    int
	decision Decision
	done     bool
}

// NewConfirm returns a prompt that falls back to def on enter
func NewConfirm(prompt string, def Decision) ConfirmModel {
	return ConfirmModel{Prompt: prompt, Default: def, Width: 80}
}

func (m ConfirmModel) Init() tea.Cmd { return nil }

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.decision = Accepted
	case "n", "esc", "ctrl+c", "q":
		m.decision = Denied
	case "enter":
		m.decision = m.Default
		if m.decision == Undecided {
			return m, nil
		}
	default:
		return m, nil
	}
	m.done = true
	return m, tea.Quit
}

func (m ConfirmModel) View() string {
	hint := "y/N"
	if m.Default == Accepted {
		hint = "Y/n"
	}
	prompt := wordwrap.String(m.Prompt, m.Width)
	line := fmt.Sprintf("%s %s %s ", prefixStyle.Render("?"), promptStyle.Render(prompt), hintStyle.Render("["+hint+"]"))
	if !m.done {
		return line
	}
	if m.decision.IsAccepted() {
		return line + acceptedStyle.Render("yes") + "\n"
	}
	return line + deniedStyle.Render("no") + "\n"
}

// Selected returns the decision once the prompt has finished
func (m ConfirmModel) Selected() Decision {
	return m.decision
}

// Confirm runs the prompt on the terminal and reports whether the user accepted
func Confirm(prompt string, opts ...tea.ProgramOption) bool {
	p := tea.NewProgram(NewConfirm(prompt, Denied), opts...)
	final, err := p.Run()
	if err != nil {
		slog.Error("confirm failed", "error", err)
		return false
	}
	return final.(ConfirmModel).Selected().IsAccepted()
}

// ConfirmWith runs the prompt against the given streams
func ConfirmWith(in io.Reader, out io.Writer, prompt string) bool {
	return Confirm(prompt, tea.WithInput(in), tea.WithOutput(out))
}
