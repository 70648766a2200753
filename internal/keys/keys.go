package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Notification feed
	Bell        key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Remove      key.Binding

	// Manual match refresh
	Refresh key.Binding

	// Configuration
	Settings key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back/close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Bell: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "mark all read"),
		),
		Remove: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "remove"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "check for matches"),
		),
		Settings: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "settings"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Bell, k.Up, k.Down, k.Select, k.Back, k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Bell, k.MarkRead, k.MarkAllRead, k.Remove},
		{k.Refresh, k.Settings, k.Help},
	}
}

// WizardKeyMap holds the bindings of the match-confirmation wizard.
type WizardKeyMap struct {
	Next       key.Binding
	Prev       key.Binding
	Focus      key.Binding
	MethodPrev key.Binding
	MethodNext key.Binding
	Submit     key.Binding
	Close      key.Binding
}

// DefaultWizardKeyMap returns the wizard bindings.
func DefaultWizardKeyMap() *WizardKeyMap {
	return &WizardKeyMap{
		Next: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "next"),
		),
		Prev: key.NewBinding(
			key.WithKeys("esc", "shift+tab"),
			key.WithHelp("esc", "previous step"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		MethodPrev: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "contact method"),
		),
		MethodNext: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "contact method"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send contact details"),
		),
		Close: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("ctrl+w", "close"),
		),
	}
}

// ShortHelp returns the wizard bindings shown in the status bar.
func (k *WizardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Focus, k.MethodNext, k.Close}
}

// FullHelp returns all wizard bindings.
func (k *WizardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Submit},
		{k.Focus, k.MethodPrev, k.MethodNext, k.Close},
	}
}
