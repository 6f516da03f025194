// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// HELPERS
// =============================================================================

// scriptedReader replays fixed input lines, then reports EOF.
type scriptedReader struct {
	lines   []string
	secrets []string
}

func (s *scriptedReader) ReadInput(prompt string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedReader) ReadSecret(prompt string) (string, error) {
	if len(s.secrets) == 0 {
		return "", io.EOF
	}
	secret := s.secrets[0]
	s.secrets = s.secrets[1:]
	return secret, nil
}

func (s *scriptedReader) Close() {}

type replyCompleter struct {
	calls int
}

func (r *replyCompleter) SendConversation(ctx context.Context, s model.Settings, h []model.Message) (*cloud.Stream, error) {
	r.calls++
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi there\"}}]}\n\ndata: [DONE]\n\n"
	return cloud.NewStream(strings.NewReader(body)), nil
}

func newTestController(t *testing.T, apiKey string, completer session.Completer) *session.Controller {
	t.Helper()
	defaults := model.DefaultSettings()
	defaults.APIKey = apiKey
	ctrl := session.NewController(session.Options{
		Store:     storage.NewSessionStore(storage.NewMemoryKV(), defaults),
		Completer: completer,
		Renderer:  nopRenderer{},
		Roles:     config.BuiltinRoles(),
	})
	require.NoError(t, ctrl.Init())
	return ctrl
}

func newTestREPL(t *testing.T, ctrl *session.Controller, input *scriptedReader) (*chatREPL, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return newChatREPL(ctrl, input, out, errOut, t.TempDir()), out, errOut
}

// isolateHome points config, storage and logs at a temp directory.
func isolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RIGCHAT_HOME", dir)
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("RIGCHAT_API_KEY", "")
	t.Setenv("RIGCHAT_MODEL", "")
	t.Setenv("RIGCHAT_STORAGE", "")
	t.Setenv("NO_COLOR", "1")
	t.Cleanup(func() {
		logging.Close()
	})
	return dir
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// =============================================================================
// QUESTION BUILDING
// =============================================================================

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		piped   bool
		want    string
		wantErr bool
	}{
		{"args only", []string{"what", "is", "go?"}, "", false, "what is go?", false},
		{"stdin only", nil, "package main\n", true, "package main", false},
		{"args and stdin", []string{"review"}, "func f() {}", true, "review\n\nfunc f() {}", false},
		{"stdin ignored when not piped", []string{"hi"}, "ignored", false, "hi", false},
		{"nothing", nil, "  \n", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildQuestion(tt.args, strings.NewReader(tt.stdin), tt.piped)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ExitUsageError, GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// CONVERSATION REFERENCES
// =============================================================================

func TestResolveConversation(t *testing.T) {
	convs := []*model.Conversation{
		{ID: "abc123"},
		{ID: "abd456"},
		{ID: "xyz789"},
	}

	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{"1", "abc123", nil},
		{"3", "xyz789", nil},
		{"abd456", "abd456", nil},
		{"xy", "xyz789", nil},
		{"0", "", session.ErrConversationNotFound},
		{"4", "", session.ErrConversationNotFound},
		{"nope", "", session.ErrConversationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := resolveConversation(convs, tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolveConversation(convs, "ab")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr, "shared prefix should be ambiguous")
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"validation", NewValidationError("x", "", "bad"), ExitUsageError},
		{"config", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}, ExitConfigError},
		{"credential", session.ErrMissingCredential, ExitAuthError},
		{"wrapped not found", fmt.Errorf("switch: %w", session.ErrConversationNotFound), ExitNotFoundError},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
		{"network", &cloud.NetworkError{Op: "send", Err: errors.New("refused")}, ExitNetworkError},
		{"command wraps cause", NewCommandError("ask", "stream", "failed", session.ErrMissingCredential), ExitAuthError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirm(strings.NewReader("y\n"), &out, "Sure?"))
	assert.True(t, confirm(strings.NewReader("YES\n"), &out, "Sure?"))
	assert.False(t, confirm(strings.NewReader("\n"), &out, "Sure?"))
	assert.False(t, confirm(strings.NewReader(""), &out, "Sure?"))
	assert.Contains(t, out.String(), "Sure? [y/N]")
}

// =============================================================================
// REPL
// =============================================================================

func TestREPL_SendsAndStoresReply(t *testing.T) {
	completer := &replyCompleter{}
	ctrl := newTestController(t, "sk-test", completer)
	repl, _, errOut := newTestREPL(t, ctrl, &scriptedReader{lines: []string{"hello", "", "/quit", "never read"}})

	require.NoError(t, repl.run(context.Background()))
	assert.Empty(t, errOut.String())
	assert.Equal(t, 1, completer.calls)

	msgs := ctrl.Active().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "Hi there", msgs[1].Content)
}

func TestREPL_PromptsForMissingKey(t *testing.T) {
	completer := &replyCompleter{}
	ctrl := newTestController(t, "", completer)
	repl, out, _ := newTestREPL(t, ctrl, &scriptedReader{
		lines:   []string{"hello"},
		secrets: []string{"  sk-new  "},
	})

	require.NoError(t, repl.run(context.Background()))
	assert.Contains(t, out.String(), "API key saved.")
	assert.Equal(t, "sk-new", ctrl.Settings().APIKey)
	assert.Equal(t, 1, completer.calls)
	assert.Len(t, ctrl.Active().Messages, 2)
}

func TestREPL_EmptyKeyIsRejected(t *testing.T) {
	ctrl := newTestController(t, "", &replyCompleter{})
	repl, _, errOut := newTestREPL(t, ctrl, &scriptedReader{
		lines:   []string{"hello"},
		secrets: []string{"   "},
	})

	require.NoError(t, repl.run(context.Background()))
	assert.Contains(t, errOut.String(), "must not be empty")
	assert.False(t, ctrl.Settings().HasCredential())
	assert.Empty(t, ctrl.Active().Messages, "nothing is sent without a key")
}

func TestREPL_SlashCommands(t *testing.T) {
	ctrl := newTestController(t, "sk-test", &replyCompleter{})
	first := ctrl.ActiveID()
	repl, out, errOut := newTestREPL(t, ctrl, &scriptedReader{})
	ctx := context.Background()

	cont, err := repl.handleSlash(ctx, "/new")
	require.NoError(t, err)
	assert.True(t, cont)
	assert.NotEqual(t, first, ctrl.ActiveID())
	assert.Len(t, ctrl.Conversations(), 2)

	_, err = repl.handleSlash(ctx, "/switch 2")
	require.NoError(t, err)
	assert.Equal(t, first, ctrl.ActiveID())

	_, err = repl.handleSlash(ctx, "/role reviewer")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", ctrl.Settings().ActiveRoleID)

	_, err = repl.handleSlash(ctx, "/model some/model")
	require.NoError(t, err)
	assert.Equal(t, "some/model", ctrl.Settings().Model)

	_, err = repl.handleSlash(ctx, "/export markdown")
	require.NoError(t, err)
	matches, _ := filepath.Glob(filepath.Join(repl.workDir, "chat-*.md"))
	assert.Len(t, matches, 1)

	_, err = repl.handleSlash(ctx, "/bogus")
	assert.Error(t, err)

	_, err = repl.handleSlash(ctx, "/switch")
	assert.Error(t, err)

	cont, err = repl.handleSlash(ctx, "/quit")
	require.NoError(t, err)
	assert.False(t, cont)

	repl.printHelp()
	assert.Contains(t, out.String(), "/export [format]")
	assert.Empty(t, errOut.String())
}

func TestREPL_TabCompletion(t *testing.T) {
	ctrl := newTestController(t, "sk-test", &replyCompleter{})
	repl, _, _ := newTestREPL(t, ctrl, &scriptedReader{})

	assert.Equal(t, []string{"/role reviewer"}, repl.completer.Lines("/role rev"))
	assert.Equal(t, []string{"/export markdown"}, repl.completer.Lines("/export mar"))
	assert.Equal(t, []string{"/switch 1"}, repl.completer.Lines("/switch "))
	assert.Contains(t, repl.completer.Lines("/"), "/quit")

	models := repl.completer.Lines("/model ")
	require.NotEmpty(t, models)
	for _, name := range model.SuggestedShortNames() {
		assert.Contains(t, models, "/model "+name)
	}
}

func TestREPL_CancelCurrentWithoutRequest(t *testing.T) {
	ctrl := newTestController(t, "sk-test", &replyCompleter{})
	repl, _, _ := newTestREPL(t, ctrl, &scriptedReader{})
	assert.False(t, repl.cancelCurrent())
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestVersionCommand(t *testing.T) {
	isolateHome(t)
	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rigchat "+Version)
}

func TestNewAndListCommands(t *testing.T) {
	isolateHome(t)

	out, err := runRoot(t, "new")
	require.NoError(t, err)
	newID := strings.TrimSpace(out)
	require.NotEmpty(t, newID)

	out, err = runRoot(t, "--json", "list")
	require.NoError(t, err)

	var resp struct {
		Success bool                  `json:"success"`
		Data    []conversationSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, newID, resp.Data[0].ID)
	assert.True(t, resp.Data[0].Active)
	assert.Equal(t, 1, resp.Data[0].Index)

	_, err = runRoot(t, "switch", "2")
	require.NoError(t, err)

	out, err = runRoot(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "*2")
}

func TestSummarizeConversations_Preview(t *testing.T) {
	empty := model.NewConversation()
	chatted := model.NewConversation()
	chatted.Append(model.NewUserMessage("what is\n  a goroutine?"))
	chatted.Append(model.NewAssistantMessage("A lightweight thread managed by the Go runtime."))

	got := summarizeConversations([]*model.Conversation{chatted, empty}, empty.ID)
	require.Len(t, got, 2)
	assert.Equal(t, "Assistant: A lightweight thread managed by the Go runtime.", got[0].Preview)
	assert.Equal(t, 2, got[0].Messages)
	assert.False(t, got[0].Active)
	assert.Empty(t, got[1].Preview)
	assert.True(t, got[1].Active)
	assert.Equal(t, 2, got[1].Index)

	long := model.NewUserMessage(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, util.StringWidth(messagePreview(long)), len("You: ")+60)
}

func TestSwitchCommand_Unknown(t *testing.T) {
	isolateHome(t)
	_, err := runRoot(t, "switch", "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestExportCommand(t *testing.T) {
	isolateHome(t)
	outDir := filepath.Join(t.TempDir(), "exports")

	out, err := runRoot(t, "export", "--format", "json", "--output", outDir)
	require.NoError(t, err)
	path := strings.TrimSpace(out)
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	_, err = runRoot(t, "export", "--format", "pdf", "--stdout")
	assert.Error(t, err)

	_, err = runRoot(t, "export", "--format", "pdf", "--output", outDir)
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestRolesCommand(t *testing.T) {
	isolateHome(t)

	out, err := runRoot(t, "roles")
	require.NoError(t, err)
	for _, r := range config.BuiltinRoles() {
		assert.Contains(t, out, r.ID)
	}

	out, err = runRoot(t, "roles", "teacher")
	require.NoError(t, err)
	assert.Contains(t, out, "Role:")

	_, err = runRoot(t, "roles", "pirate")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestModelsCommand_FreeFilter(t *testing.T) {
	isolateHome(t)
	out, err := runRoot(t, "models", "--free")
	require.NoError(t, err)
	for _, m := range model.SuggestedModels() {
		if m.Free {
			assert.Contains(t, out, m.ID)
		} else {
			assert.NotContains(t, out, m.ID)
		}
	}
}

func TestResetCommand(t *testing.T) {
	isolateHome(t)
	_, err := runRoot(t, "new")
	require.NoError(t, err)

	_, err = runRoot(t, "reset", "--yes")
	require.NoError(t, err)

	out, err := runRoot(t, "--json", "list")
	require.NoError(t, err)
	var resp struct {
		Data []conversationSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestConfigCommands(t *testing.T) {
	home := isolateHome(t)

	out, err := runRoot(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml"), strings.TrimSpace(out))

	_, err = runRoot(t, "config", "set", "ui.theme", "light")
	require.NoError(t, err)

	out, err = runRoot(t, "config", "get", "ui.theme")
	require.NoError(t, err)
	assert.Equal(t, "light", strings.TrimSpace(out))

	_, err = runRoot(t, "config", "set", "ui.nope", "x")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	out, err = runRoot(t, "config", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "cloud.default_model")
}

func TestConfigGet_RedactsKey(t *testing.T) {
	isolateHome(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-secret")

	out, err := runRoot(t, "config", "get", "cloud.api_key")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "[REDACTED]")

	out, err = runRoot(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
}
