// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.askingKey {
			return m.handleKeyPrompt(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case transcriptChangedMsg:
		m.refresh()
		return m, m.notifier.Wait(m.ctx)

	case submitDoneMsg:
		return m.handleSubmitDone(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case exportDoneMsg:
		if msg.err != nil {
			return m, m.showToast("Export failed: "+msg.err.Error(), true)
		}
		return m, m.showToast("Exported to "+msg.path, false)

	case copyDoneMsg:
		if msg.err != nil {
			return m, m.showToast("Copy failed: "+msg.err.Error(), true)
		}
		return m, tea.Batch(
			m.showToast("Code copied to clipboard", false),
			tea.Tick(render.CopiedDuration+100*time.Millisecond, func(time.Time) tea.Msg { return copiedExpiredMsg{} }),
		)

	case copiedExpiredMsg:
		m.refresh()
		return m, nil

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
			m.toastErr = false
		}
		return m, nil

	case ConfigReloadedMsg:
		return m.handleConfigReload(msg)
	}

	var cmd tea.Cmd
	if m.askingKey {
		m.keyInput, cmd = m.keyInput.Update(msg)
	} else {
		m.textarea, cmd = m.textarea.Update(msg)
	}
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m, m.submit(m.textarea.Value())

	case key.Matches(msg, m.keys.NewChat):
		if _, err := m.ctrl.CreateConversation(); err != nil {
			return m, m.showToast(err.Error(), true)
		}
		m.follow = true
		return m, nil

	case key.Matches(msg, m.keys.PrevChat):
		return m, m.switchRelative(-1)

	case key.Matches(msg, m.keys.NextChat):
		return m, m.switchRelative(1)

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.CopyCode):
		return m, m.copyCmd()

	case key.Matches(msg, m.keys.CycleRole):
		role, err := m.ctrl.CycleRole()
		if err != nil {
			return m, m.showToast(err.Error(), true)
		}
		return m, m.showToast("Role: "+role.Name, false)

	case key.Matches(msg, m.keys.SetKey):
		return m, m.focusKeyPrompt("")

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		m.follow = m.viewport.AtBottom()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		m.follow = m.viewport.AtBottom()
		return m, nil

	case key.Matches(msg, m.keys.ToggleHelp):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// handleKeyPrompt drives the masked API key input.
func (m *Model) handleKeyPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.pending = ""
		return m, m.blurKeyPrompt()

	case key.Matches(msg, m.keys.Submit):
		apiKey := strings.TrimSpace(m.keyInput.Value())
		if apiKey == "" {
			return m, nil
		}
		settings := m.ctrl.Settings()
		settings.APIKey = apiKey
		if err := m.ctrl.UpdateSettings(settings); err != nil {
			return m, m.showToast(err.Error(), true)
		}
		logging.For("tui").Info("API key updated")

		pending := m.pending
		m.pending = ""
		cmds := []tea.Cmd{m.blurKeyPrompt(), m.showToast("API key saved", false)}
		if pending != "" {
			cmds = append(cmds, m.submit(pending))
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit sends text on a goroutine. Blank text is ignored.
func (m *Model) submit(text string) tea.Cmd {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if m.busy {
		return m.showToast(session.ErrBusy.Error(), true)
	}
	m.textarea.Reset()
	m.busy = true
	m.follow = true

	ctrl, ctx := m.ctrl, m.ctx
	return tea.Batch(
		func() tea.Msg {
			return submitDoneMsg{text: text, err: ctrl.Submit(ctx, text)}
		},
		m.spinner.Tick,
	)
}

func (m *Model) handleSubmitDone(msg submitDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	switch {
	case msg.err == nil:
		return m, nil
	case errors.Is(msg.err, session.ErrMissingCredential):
		return m, m.focusKeyPrompt(msg.text)
	case errors.Is(msg.err, session.ErrBusy):
		m.textarea.SetValue(msg.text)
		return m, m.showToast(msg.err.Error(), true)
	default:
		// The transcript already carries the error inline.
		logging.For("tui").Warn("reply failed", "err", msg.err)
		return m, nil
	}
}

func (m *Model) switchRelative(delta int) tea.Cmd {
	if _, err := m.ctrl.SwitchRelative(delta); err != nil {
		return m.showToast(err.Error(), true)
	}
	m.follow = true
	return nil
}

// exportCmd writes the active conversation as plain text.
func (m *Model) exportCmd() tea.Cmd {
	ctrl, dir := m.ctrl, m.exportDir
	return func() tea.Msg {
		path, err := ctrl.ExportToFile("text", dir, false)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{path: path}
	}
}

func (m *Model) copyCmd() tea.Cmd {
	t := m.transcript
	return func() tea.Msg {
		return copyDoneMsg{err: t.CopyLastCodeBlock()}
	}
}

func (m *Model) handleConfigReload(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Config == nil {
		return m, nil
	}
	if mode := msg.Config.UI.Theme; mode != "" && mode != m.themeMode {
		m.themeMode = mode
		m.theme = styles.NewTheme(mode)
		m.spinner.Style = m.theme.Spinner
	}
	m.notifier.SetFPS(msg.Config.UI.RenderFPS)
	m.refresh()
	return m, m.showToast("Configuration reloaded", false)
}

// =============================================================================
// TOASTS
// =============================================================================

// showToast displays text in the status line until toastDuration passes.
func (m *Model) showToast(text string, isErr bool) tea.Cmd {
	m.toast = text
	m.toastErr = isErr
	m.toastSeq++
	return m.expireToast()
}

func (m *Model) expireToast() tea.Cmd {
	seq := m.toastSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}
