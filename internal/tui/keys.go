package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start   key.Binding
	Select  key.Binding
	Advance key.Binding
	Restart key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "start"),
		),
		Select: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6"),
			key.WithHelp("1-6", "pick a box"),
		),
		Advance: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next level"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "play again"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Select, k.Advance, k.Restart, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// enable toggles bindings to match what the current phase accepts, so the
// help line only shows keys that do something.
func (k *keyMap) enable(start, sel, advance, restart bool) {
	k.Start.SetEnabled(start)
	k.Select.SetEnabled(sel)
	k.Advance.SetEnabled(advance)
	k.Restart.SetEnabled(restart)
}
