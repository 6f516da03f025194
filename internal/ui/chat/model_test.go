// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// =============================================================================
// HELPERS
// =============================================================================

// replyCompleter streams a fixed reply.
type replyCompleter struct {
	body  string
	calls int
}

func (r *replyCompleter) SendConversation(ctx context.Context, s model.Settings, h []model.Message) (*cloud.Stream, error) {
	r.calls++
	return cloud.NewStream(strings.NewReader(r.body)), nil
}

func newTestModel(t *testing.T, apiKey string, completer session.Completer) *Model {
	t.Helper()

	defaults := model.DefaultSettings()
	defaults.APIKey = apiKey
	store := storage.NewSessionStore(storage.NewMemoryKV(), defaults)

	tr := transcript.New(render.NewPipeline(nil, nil))
	ctrl := session.NewController(session.Options{
		Store:     store,
		Completer: completer,
		Renderer:  tr,
		Roles:     config.BuiltinRoles(),
	})
	require.NoError(t, ctrl.Init())

	m := New(Options{
		Controller: ctrl,
		Transcript: tr,
		ThemeMode:  "dark",
		ExportDir:  t.TempDir(),
	})
	t.Cleanup(m.Close)
	m.resize(120, 40)
	return m
}

// findMsg runs cmd, expanding batches, and returns the first message of
// type T. Only use it on commands that return promptly.
func findMsg[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	var zero T
	if cmd == nil {
		t.Fatalf("nil command")
		return zero
	}
	switch msg := cmd().(type) {
	case T:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if got, ok := c().(T); ok {
				return got
			}
		}
	}
	t.Fatalf("no %T produced", zero)
	return zero
}

const okReply = "data: {\"choices\":[{\"delta\":{\"content\":\"Hello \"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n" +
	"data: [DONE]\n\n"

// =============================================================================
// SUBMIT
// =============================================================================

func TestModel_SubmitStreamsReply(t *testing.T) {
	completer := &replyCompleter{body: okReply}
	m := newTestModel(t, "sk-test", completer)

	m.textarea.SetValue("say hi")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.Busy())
	assert.Empty(t, m.textarea.Value(), "input should clear on send")

	done := findMsg[submitDoneMsg](t, cmd)
	require.NoError(t, done.err)

	m.Update(done)
	m.Update(transcriptChangedMsg{})
	assert.False(t, m.Busy())
	assert.Equal(t, 1, completer.calls)

	conv := m.ctrl.Active()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Hello world", conv.Messages[1].Content)

	view := m.View()
	assert.Contains(t, view, "Hello world")
	assert.Contains(t, view, "say hi")
	assert.Contains(t, view, StatusIdle)
}

func TestModel_BlankSubmitIgnored(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})

	m.textarea.SetValue("   \n  ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.Busy())
}

func TestModel_SubmitWhileBusyShowsToast(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	m.busy = true

	cmd := m.submit("again")
	require.NotNil(t, cmd)
	assert.Equal(t, session.ErrBusy.Error(), m.toast)
	assert.True(t, m.toastErr)
}

func TestModel_StatusShowsThinkingWhileBusy(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	m.busy = true
	assert.Contains(t, m.View(), StatusThinking)
}

// =============================================================================
// API KEY PROMPT
// =============================================================================

func TestModel_MissingKeyPromptsThenResubmits(t *testing.T) {
	completer := &replyCompleter{body: okReply}
	m := newTestModel(t, "", completer)

	cmd := m.submit("hello")
	done := findMsg[submitDoneMsg](t, cmd)
	require.ErrorIs(t, done.err, session.ErrMissingCredential)

	m.Update(done)
	require.True(t, m.AskingKey())
	assert.Equal(t, "hello", m.pending)
	assert.Contains(t, m.View(), "API key is required")
	assert.Empty(t, m.ctrl.Active().Messages, "nothing is stored without a key")

	m.keyInput.SetValue("  sk-new  ")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.AskingKey())
	assert.Equal(t, "sk-new", m.ctrl.Settings().APIKey)
	assert.True(t, m.Busy(), "pending text should be resubmitted")
	assert.Empty(t, m.pending)
}

func TestModel_EscCancelsKeyPrompt(t *testing.T) {
	m := newTestModel(t, "", &replyCompleter{body: okReply})

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlK})
	require.True(t, m.AskingKey())

	m.keyInput.SetValue("sk-ignored")
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.AskingKey())
	assert.Empty(t, m.ctrl.Settings().APIKey)
}

func TestModel_EmptyKeyIsNotSaved(t *testing.T) {
	m := newTestModel(t, "", &replyCompleter{body: okReply})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlK})

	m.keyInput.SetValue("   ")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.AskingKey())
	assert.Empty(t, m.ctrl.Settings().APIKey)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestModel_NewAndSwitchConversation(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	first := m.ctrl.ActiveID()

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Len(t, m.ctrl.Conversations(), 2)
	second := m.ctrl.ActiveID()
	assert.NotEqual(t, first, second)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlDown})
	assert.Equal(t, first, m.ctrl.ActiveID())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlUp})
	assert.Equal(t, second, m.ctrl.ActiveID())
}

func TestModel_CycleRole(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	before := m.ctrl.Settings().ActiveRoleID

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	after := m.ctrl.Settings().ActiveRoleID
	assert.NotEqual(t, before, after)
	assert.True(t, strings.HasPrefix(m.toast, "Role: "))
}

func TestModel_ExportWritesTextFile(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	done := findMsg[submitDoneMsg](t, m.submit("export me"))
	require.NoError(t, done.err)
	m.Update(done)

	msg := m.exportCmd()().(exportDoneMsg)
	require.NoError(t, msg.err)
	assert.True(t, strings.HasSuffix(msg.path, "chat-export_me.txt"))

	data, err := os.ReadFile(msg.path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[USER]:\nexport me")
	assert.Contains(t, string(data), "[ASSISTANT]:\nHello world")
}

func TestModel_CopyWithoutCodeBlockFails(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	msg := m.copyCmd()().(copyDoneMsg)
	assert.Error(t, msg.err)
}

// =============================================================================
// LAYOUT
// =============================================================================

func TestModel_SidebarHiddenWhenNarrow(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	assert.Contains(t, m.View(), "Conversations")

	m.Update(tea.WindowSizeMsg{Width: 60, Height: 30})
	assert.NotContains(t, m.View(), "Conversations")
	assert.Equal(t, 60, m.viewport.Width)
}

func TestModel_WelcomeShownForEmptyConversation(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	m.Update(transcriptChangedMsg{})
	assert.Contains(t, m.View(), "How can I help you today?")
}

func TestModel_QuitCancelsContext(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Error(t, m.ctx.Err())
}

func TestModel_ConfigReloadAppliesTheme(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	require.True(t, m.theme.IsDark)

	cfg := config.Default()
	cfg.UI.Theme = "light"
	m.Update(ConfigReloadedMsg{Config: cfg})
	assert.False(t, m.theme.IsDark)
	assert.Equal(t, "Configuration reloaded", m.toast)
}

// =============================================================================
// CHANGE NOTIFIER
// =============================================================================

func TestChangeNotifier_Coalesces(t *testing.T) {
	n := newChangeNotifier(0)
	n.Signal()
	n.Signal()
	n.Signal()
	assert.Len(t, n.ch, 1)

	msg := n.Wait(context.Background())()
	assert.IsType(t, transcriptChangedMsg{}, msg)
	assert.Len(t, n.ch, 0)
}

func TestChangeNotifier_WaitStopsOnCancel(t *testing.T) {
	n := newChangeNotifier(30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, n.Wait(ctx)())
}

func TestModel_TranscriptChangesSignal(t *testing.T) {
	m := newTestModel(t, "sk-test", &replyCompleter{body: okReply})
	// Drain the signal from Init's reset.
	select {
	case <-m.notifier.ch:
	default:
	}

	m.transcript.RenderMessage(model.RoleUser, "ping")
	assert.Len(t, m.notifier.ch, 1)
}
