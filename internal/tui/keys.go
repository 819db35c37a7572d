package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Increase key.Binding
	Decrease key.Binding
	HourUp   key.Binding
	HourDown key.Binding
	Press    key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down", "j"),
			key.WithHelp("tab", "next"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up", "k"),
			key.WithHelp("shift+tab", "prev"),
		),
		Increase: key.NewBinding(
			key.WithKeys("right", "l", "+"),
			key.WithHelp("→", "increase"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("left", "h", "-"),
			key.WithHelp("←", "decrease"),
		),
		HourUp: key.NewBinding(
			key.WithKeys("shift+right", "L"),
			key.WithHelp("shift+→", "hour +1"),
		),
		HourDown: key.NewBinding(
			key.WithKeys("shift+left", "H"),
			key.WithHelp("shift+←", "hour -1"),
		),
		Press: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "press"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Increase, k.Decrease, k.Press, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Press},
		{k.Increase, k.Decrease, k.HourUp, k.HourDown},
		{k.Quit},
	}
}
