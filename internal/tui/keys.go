package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	Crop    key.Binding
	Commit  key.Binding
	Cancel  key.Binding
	Filter  key.Binding
	Undo    key.Binding
	Redo    key.Binding
	Save    key.Binding
	Copy    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		ZoomIn:  key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut: key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		Up:      key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "pan up")),
		Down:    key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "pan down")),
		Left:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "pan left")),
		Right:   key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "pan right")),
		Crop:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "crop / next ratio")),
		Commit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply crop")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "leave crop")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
		Undo:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
		Redo:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "redo")),
		Save:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy crop rect")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Crop, k.Commit, k.Filter, k.Undo, k.Save, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ZoomIn, k.ZoomOut, k.Up, k.Down, k.Left, k.Right},
		{k.Crop, k.Commit, k.Cancel, k.Copy},
		{k.Filter, k.Undo, k.Redo},
		{k.Save, k.Help, k.Quit},
	}
}
