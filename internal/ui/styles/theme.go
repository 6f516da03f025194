// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Background modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// SidebarWidth is the width of the conversation list, borders included.
const SidebarWidth = 30

// Theme holds all the styled components of the TUI.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout
	App lipgloss.Style

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style
	HeaderRole  lipgloss.Style

	// Sidebar
	Sidebar           lipgloss.Style
	SidebarTitle      lipgloss.Style
	SidebarItem       lipgloss.Style
	SidebarItemActive lipgloss.Style
	SidebarMeta       lipgloss.Style

	// Transcript
	Transcript lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputFocused   lipgloss.Style
	KeyPrompt      lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	StatusText   lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Spinner
	Spinner lipgloss.Style

	// Toast
	Toast      lipgloss.Style
	ToastError lipgloss.Style
}

// NewTheme creates a theme for the given background mode. ModeAuto asks
// the terminal. The choice is applied to lipgloss globally so adaptive
// colors everywhere agree with it.
func NewTheme(mode string) *Theme {
	var isDark bool
	switch strings.ToLower(mode) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

// ModeFor maps the dark-mode setting to a background mode.
func ModeFor(dark bool) string {
	if dark {
		return ModeDark
	}
	return ModeLight
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()

	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.HeaderRole = lipgloss.NewStyle().
		Foreground(Purple).
		Italic(true)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		Width(SidebarWidth-2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		MarginBottom(1)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SidebarItemActive = lipgloss.NewStyle().
		Foreground(Purple).
		Background(SurfaceBright).
		Bold(true)

	t.SidebarMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Transcript
	t.Transcript = lipgloss.NewStyle().
		Padding(0, 1)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.InputFocused = t.InputContainer.
		BorderForeground(Cyan)

	t.KeyPrompt = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.StatusBusy = lipgloss.NewStyle().
		Foreground(Purple)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Spinner
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	// Toast
	t.Toast = lipgloss.NewStyle().
		Foreground(Emerald)

	t.ToastError = lipgloss.NewStyle().
		Foreground(Rose)
}

// Shortcut renders a key hint such as "^N new".
func (t *Theme) Shortcut(key, desc string) string {
	return t.ShortcutKey.Render(key) + " " + t.ShortcutDesc.Render(desc)
}
