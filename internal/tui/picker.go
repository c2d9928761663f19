package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"legalchat/internal/languages"
)

// picker is the per-message translation language chooser.
type picker struct {
	open    bool
	index   int
	input   textinput.Model
	options []string
	cursor  int
}

func newPicker() picker {
	ti := textinput.New()
	ti.Prompt = "language: "
	ti.Placeholder = "type to filter"
	ti.CharLimit = 32
	return picker{input: ti, options: languages.Supported}
}

// toggle opens the picker for message index, or closes it if it is already open for that message.
func (p picker) toggle(index int) picker {
	if p.open && p.index == index {
		return p.close()
	}
	p.open = true
	p.index = index
	p.input = newPicker().input
	p.input.Focus()
	p.options = languages.Filter("")
	p.cursor = 0
	return p
}

func (p picker) close() picker {
	p.open = false
	p.input.Blur()
	return p
}

func (p picker) update(msg tea.Msg) (picker, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up":
			if len(p.options) > 0 {
				p.cursor = (p.cursor - 1 + len(p.options)) % len(p.options)
			}
			return p, nil
		case "down":
			if len(p.options) > 0 {
				p.cursor = (p.cursor + 1) % len(p.options)
			}
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.options = languages.Filter(p.input.Value())
	if p.cursor >= len(p.options) {
		p.cursor = 0
	}
	return p, cmd
}

func (p picker) selected() (string, bool) {
	if len(p.options) == 0 {
		return "", false
	}
	return p.options[p.cursor], true
}
