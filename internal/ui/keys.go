package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the browser's keyboard bindings. Row navigation (j/k,
// pgup/pgdown, g/G) is left to the table.
type keyMap struct {
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding

	Search  key.Binding
	Confirm key.Binding
	Escape  key.Binding

	NextView     key.Binding
	NextResource key.Binding
	SortField    key.Binding
	SortDir      key.Binding
	NextPage     key.Binding
	PrevPage     key.Binding
	Reload       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "theme"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear"),
		),
		NextView: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "view"),
		),
		NextResource: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "collection"),
		),
		SortField: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort by"),
		),
		SortDir: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "asc/desc"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("right", "n"),
			key.WithHelp("→/n", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "p"),
			key.WithHelp("←/p", "prev page"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.NextView, k.SortField, k.NextPage, k.NextResource, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Search, k.Confirm, k.Escape},
		{k.NextView, k.SortField, k.SortDir},
		{k.NextPage, k.PrevPage, k.Reload},
		{k.NextResource, k.CycleTheme, k.Help, k.Quit},
	}
}
