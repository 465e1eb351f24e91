package dashboard

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the dashboard's keybindings. Grounded on pkg/ui's
// KeyMap, trimmed to what this view actually does.
type keyMap struct {
	Quit key.Binding
	Help key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit, k.Help}}
}
