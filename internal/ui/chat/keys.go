// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit      key.Binding
	Newline     key.Binding
	NewChat     key.Binding
	PrevChat    key.Binding
	NextChat    key.Binding
	Export      key.Binding
	CopyCode    key.Binding
	CycleRole   key.Binding
	SetKey      key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Cancel      key.Binding
	Quit        key.Binding
	ToggleHelp  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("Alt+Enter", "newline"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("^N", "new chat"),
		),
		PrevChat: key.NewBinding(
			key.WithKeys("ctrl+up"),
			key.WithHelp("^↑", "prev chat"),
		),
		NextChat: key.NewBinding(
			key.WithKeys("ctrl+down"),
			key.WithHelp("^↓", "next chat"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("^E", "export"),
		),
		CopyCode: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("^Y", "copy code"),
		),
		CycleRole: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("^R", "role"),
		),
		SetKey: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("^K", "API key"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("^C", "quit"),
		),
		ToggleHelp: key.NewBinding(
			key.WithKeys("ctrl+h", "f1"),
			key.WithHelp("F1", "help"),
		),
	}
}

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewChat, k.CopyCode, k.CycleRole, k.ToggleHelp, k.Quit}
}

// FullHelp returns every binding, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Cancel},
		{k.NewChat, k.PrevChat, k.NextChat, k.Export},
		{k.CopyCode, k.CycleRole, k.SetKey},
		{k.PageUp, k.PageDown, k.ToggleHelp, k.Quit},
	}
}
