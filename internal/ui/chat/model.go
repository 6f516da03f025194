// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/transcript"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// inputLines is the height of the textarea, borders excluded.
	inputLines = 3

	// headerHeight and statusHeight are single lines.
	headerHeight = 1
	statusHeight = 1

	// minSidebarWidth is the terminal width below which the sidebar hides.
	minSidebarWidth = 80

	// StatusIdle is shown in the status line when nothing is in flight.
	StatusIdle = "AI can make mistakes."

	// StatusThinking is shown next to the spinner while a reply streams.
	StatusThinking = "Thinking…"

	inputPlaceholder = "Send a message…"
	keyPlaceholder   = "OpenRouter API key (sk-or-…)"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Model.
type Options struct {
	// Controller runs the session. Init must already have been called.
	Controller *session.Controller

	// Transcript is the renderer the controller draws into.
	Transcript *transcript.Transcript

	// ThemeMode is styles.ModeAuto, ModeDark or ModeLight.
	ThemeMode string

	// RenderFPS caps repaints while streaming. 0 means unthrottled.
	RenderFPS int

	// ExportDir is where Ctrl+E writes files. Empty means the working
	// directory.
	ExportDir string

	// Context bounds in-flight requests. Quitting cancels it.
	Context context.Context
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctrl       *session.Controller
	transcript *transcript.Transcript
	notifier   *changeNotifier

	keys  KeyMap
	theme *styles.Theme

	viewport viewport.Model
	textarea textarea.Model
	keyInput textinput.Model
	spinner  spinner.Model
	help     help.Model

	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int
	ready  bool

	busy      bool
	askingKey bool
	pending   string
	follow    bool
	showHelp  bool

	toast    string
	toastErr bool
	toastSeq int

	exportDir string
	themeMode string
}

// New creates the chat model and hooks it to the transcript.
func New(opts Options) *Model {
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(inputLines)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	ki := textinput.New()
	ki.Placeholder = keyPlaceholder
	ki.EchoMode = textinput.EchoPassword
	ki.EchoCharacter = '•'
	ki.Prompt = "🔑 "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	mode := opts.ThemeMode
	if mode == "" {
		mode = styles.ModeAuto
	}
	theme := styles.NewTheme(mode)
	sp.Style = theme.Spinner

	m := &Model{
		ctrl:       opts.Controller,
		transcript: opts.Transcript,
		notifier:   newChangeNotifier(opts.RenderFPS),
		keys:       keys,
		theme:      theme,
		viewport:   viewport.New(80, 20),
		textarea:   ta,
		keyInput:   ki,
		spinner:    sp,
		help:       help.New(),
		ctx:        ctx,
		cancel:     cancel,
		follow:     true,
		exportDir:  opts.ExportDir,
		themeMode:  mode,
	}
	m.viewport.KeyMap = viewport.KeyMap{
		PageUp:   keys.PageUp,
		PageDown: keys.PageDown,
	}
	m.transcript.OnChange(m.notifier.Signal)

	if err := m.ctrl.LoadError(); err != nil {
		m.toast = "Saved session was unreadable and has been reset"
		m.toastErr = true
	}
	return m
}

// Init starts the cursor blink and the repaint loop.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.notifier.Wait(m.ctx)}
	if m.toast != "" {
		cmds = append(cmds, m.expireToast())
	}
	return tea.Batch(cmds...)
}

// Close cancels any in-flight request.
func (m *Model) Close() {
	m.cancel()
}

// Busy reports whether a reply is streaming.
func (m *Model) Busy() bool {
	return m.busy
}

// AskingKey reports whether the masked API key prompt is shown.
func (m *Model) AskingKey() bool {
	return m.askingKey
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) showSidebar() bool {
	return m.width >= minSidebarWidth
}

func (m *Model) transcriptWidth() int {
	w := m.width
	if m.showSidebar() {
		w -= styles.SidebarWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

// resize recomputes component sizes after a window change.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	vh := height - headerHeight - (inputLines + 2) - statusHeight
	if vh < 3 {
		vh = 3
	}
	tw := m.transcriptWidth()
	m.viewport.Width = tw
	m.viewport.Height = vh

	// Border takes two columns.
	m.textarea.SetWidth(tw - 2)
	m.keyInput.Width = tw - 6
	m.help.Width = width

	m.ready = true
	m.refresh()
}

// refresh repaints the viewport from the transcript.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content := m.transcript.Render(m.viewport.Width - m.theme.Transcript.GetHorizontalFrameSize())
	m.viewport.SetContent(m.theme.Transcript.Render(content))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// focusKeyPrompt swaps the textarea for the masked key input.
func (m *Model) focusKeyPrompt(pending string) tea.Cmd {
	m.askingKey = true
	m.pending = pending
	m.textarea.Blur()
	m.keyInput.Reset()
	logging.For("tui").Debug("asking for API key", "pending", pending != "")
	return m.keyInput.Focus()
}

// blurKeyPrompt returns focus to the textarea.
func (m *Model) blurKeyPrompt() tea.Cmd {
	m.askingKey = false
	m.keyInput.Blur()
	m.keyInput.Reset()
	return m.textarea.Focus()
}
