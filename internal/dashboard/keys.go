package dashboard

import "github.com/charmbracelet/bubbles/key"

// browseKeys holds key bindings for browse mode.
type browseKeys struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Tab     key.Binding
	Refresh key.Binding
	Probe   key.Binding
	Filter  key.Binding
	Create  key.Binding
	Rename  key.Binding
	Clone   key.Binding
	Import  key.Binding
	Export  key.Binding
	Remove  key.Binding
	Copy    key.Binding
	Clear   key.Binding
	LogUp   key.Binding
	LogDown key.Binding
	Quit    key.Binding
}

// ShortHelp returns the browse mode bindings for the help bar.
func (k browseKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Refresh, k.Filter, k.Create, k.Rename, k.Clone, k.Import, k.Export, k.Remove, k.Quit}
}

// FullHelp returns the browse mode bindings grouped for expanded help.
func (k browseKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Tab},
		{k.Refresh, k.Probe, k.Filter, k.Copy},
		{k.Create, k.Rename, k.Clone, k.Import, k.Export, k.Remove},
		{k.LogUp, k.LogDown, k.Clear, k.Quit},
	}
}

// inputKeys holds key bindings for text entry (filter and prompts).
type inputKeys struct {
	Submit key.Binding
	Cancel key.Binding
}

// ShortHelp returns the input mode bindings for the help bar.
func (k inputKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cancel}
}

// FullHelp returns the input mode bindings grouped for expanded help.
func (k inputKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Submit, k.Cancel}}
}

// confirmKeys holds key bindings for the removal confirmation.
type confirmKeys struct {
	Yes key.Binding
	No  key.Binding
}

// ShortHelp returns the confirm mode bindings for the help bar.
func (k confirmKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No}
}

// FullHelp returns the confirm mode bindings grouped for expanded help.
func (k confirmKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Yes, k.No}}
}

// BrowseKeyMap returns the key bindings for browse mode.
func BrowseKeyMap() browseKeys {
	return browseKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "packages"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Probe: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "probe"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		Create: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "create"),
		),
		Rename: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "rename"),
		),
		Clone: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "clone"),
		),
		Import: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "import"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "remove"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy path"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear log"),
		),
		LogUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "log up"),
		),
		LogDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "log down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// InputKeyMap returns the key bindings for filter and prompt modes.
func InputKeyMap() inputKeys {
	return inputKeys{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ConfirmKeyMap returns the key bindings for confirm mode.
func ConfirmKeyMap() confirmKeys {
	return confirmKeys{
		Yes: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "remove"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
	}
}
