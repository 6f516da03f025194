// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// View renders the whole screen.
func (m *Model) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.renderInput(),
	)
	if m.showSidebar() {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	}

	parts := []string{m.renderHeader(), main, m.renderStatus()}
	if m.showHelp {
		parts = append(parts, m.help.View(m.keys))
	}
	return m.theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// =============================================================================
// HEADER
// =============================================================================

func (m *Model) renderHeader() string {
	settings := m.ctrl.Settings()

	left := m.theme.HeaderTitle.Render("rigchat")
	right := m.theme.HeaderModel.Render(settings.EffectiveModel())
	if role := m.roleName(settings.ActiveRoleID); role != "" {
		right = m.theme.HeaderRole.Render(role) + "  " + right
	}

	inner := m.width - m.theme.Header.GetHorizontalFrameSize()
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) roleName(id string) string {
	if id == "" {
		return ""
	}
	for _, r := range m.ctrl.Roles() {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m *Model) renderSidebar() string {
	inner := styles.SidebarWidth - m.theme.Sidebar.GetHorizontalFrameSize()
	height := m.height - headerHeight - statusHeight - m.theme.Sidebar.GetVerticalFrameSize()
	if height < 1 {
		height = 1
	}

	lines := []string{m.theme.SidebarTitle.Render("Conversations")}
	activeID := m.ctrl.ActiveID()
	for _, conv := range m.ctrl.Conversations() {
		lines = append(lines, m.renderSidebarItem(conv, conv.ID == activeID, inner))
	}

	body := strings.Join(lines, "\n")
	return m.theme.Sidebar.Height(height).Render(body)
}

func (m *Model) renderSidebarItem(conv *model.Conversation, active bool, width int) string {
	title := util.TruncateWidth(util.CollapseWhitespace(conv.DisplayTitle()), width-2)
	if active {
		return m.theme.SidebarItemActive.Width(width).Render("› " + title)
	}
	return m.theme.SidebarItem.Render("  " + title)
}

// =============================================================================
// INPUT
// =============================================================================

func (m *Model) renderInput() string {
	width := m.transcriptWidth() - 2
	if m.askingKey {
		prompt := m.theme.KeyPrompt.Render("An OpenRouter API key is required. Enter to save, Esc to cancel.")
		body := lipgloss.JoinVertical(lipgloss.Left, prompt, m.keyInput.View(), "")
		return m.theme.InputFocused.Width(width).Render(body)
	}
	style := m.theme.InputContainer
	if !m.busy {
		style = m.theme.InputFocused
	}
	return style.Width(width).Render(m.textarea.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m *Model) renderStatus() string {
	var left string
	switch {
	case m.toast != "" && m.toastErr:
		left = m.theme.ToastError.Render(m.toast)
	case m.toast != "":
		left = m.theme.Toast.Render(m.toast)
	case m.busy:
		left = m.spinner.View() + " " + m.theme.StatusBusy.Render(StatusThinking)
	case m.ctrl.Phase() == session.PhaseErrored:
		left = m.theme.StatusError.Render(styles.IndicatorError + " Last reply failed")
	case !m.ctrl.Settings().HasCredential():
		left = m.theme.StatusText.Render("No API key set. Press ^K to add one.")
	default:
		left = m.theme.StatusText.Render(StatusIdle)
	}

	var hints []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, m.theme.Shortcut(h.Key, h.Desc))
	}
	right := strings.Join(hints, "  ")

	inner := m.width - m.theme.StatusBar.GetHorizontalFrameSize()
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		// Not enough room for hints.
		right = ""
		gap = inner - lipgloss.Width(left)
		if gap < 0 {
			gap = 0
		}
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
