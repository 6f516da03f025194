// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// sse encodes fragments as an OpenRouter event stream.
func sse(fragments ...string) string {
	var sb strings.Builder
	for _, f := range fragments {
		payload, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": f}}},
		})
		fmt.Fprintf(&sb, "data: %s\n\n", payload)
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

// failingReader returns its prefix, then err.
type failingReader struct {
	prefix string
	err    error
	sent   bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, r.prefix), nil
	}
	return 0, r.err
}

type call struct {
	settings model.Settings
	history  []model.Message
}

type fakeCompleter struct {
	mu     sync.Mutex
	calls  []call
	body   func() io.Reader
	err    error
	before func()
}

func (f *fakeCompleter) SendConversation(ctx context.Context, s model.Settings, h []model.Message) (*cloud.Stream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{settings: s, history: h})
	before := f.before
	f.mu.Unlock()
	if before != nil {
		before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return cloud.NewStream(f.body()), nil
}

func (f *fakeCompleter) replying(fragments ...string) *fakeCompleter {
	f.body = func() io.Reader { return strings.NewReader(sse(fragments...)) }
	return f
}

type fixture struct {
	ctrl      *Controller
	store     *storage.SessionStore
	completer *fakeCompleter
	view      *transcript.Transcript
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	defaults := model.DefaultSettings()
	defaults.APIKey = apiKey

	store := storage.NewSessionStore(storage.NewMemoryKV(), defaults)
	completer := (&fakeCompleter{}).replying("ok")
	view := transcript.New(render.NewPipeline(render.Passthrough{}, nil))

	ctrl := NewController(Options{
		Store:     store,
		Completer: completer,
		Renderer:  view,
		Roles:     config.BuiltinRoles(),
	})
	require.NoError(t, ctrl.Init())
	return &fixture{ctrl: ctrl, store: store, completer: completer, view: view}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestSubmit_MissingCredential(t *testing.T) {
	f := newFixture(t, "")

	err := f.ctrl.Submit(context.Background(), "Hello")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.ErrorIs(t, err, cloud.ErrMissingCredential)
	assert.Empty(t, f.ctrl.Active().Messages)
	assert.Empty(t, f.completer.calls)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.True(t, f.view.Snapshot().Welcome)
}

func TestSubmit_FirstMessageSetsTitleAndSendsSystemPrompt(t *testing.T) {
	f := newFixture(t, "sk-or-test")

	require.NoError(t, f.ctrl.Submit(context.Background(), "  Hello  "))

	conv := f.ctrl.Active()
	assert.Equal(t, "Hello", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.NewUserMessage("Hello"), conv.Messages[0])

	require.Len(t, f.completer.calls, 1)
	c := f.completer.calls[0]
	msgs := cloud.BuildMessages(c.settings.SystemPrompt, c.history)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, model.DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, cloud.ChatMessage{Role: "user", Content: "Hello"}, msgs[1])
}

func TestSubmit_LongFirstMessageTruncatesTitle(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	require.NoError(t, f.ctrl.Submit(context.Background(), "Please explain\nhow the Go scheduler works in detail"))
	assert.Equal(t, "Please explain how the Go sche", f.ctrl.Active().Title)
}

func TestSubmit_FragmentsCommitOneMessage(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	f.completer.replying("Hel", "lo world")

	require.NoError(t, f.ctrl.Submit(context.Background(), "hi"))

	conv := f.ctrl.Active()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, model.NewAssistantMessage("Hello world"), conv.Messages[1])

	v := f.view.Snapshot()
	require.Len(t, v.Bubbles, 2)
	assert.Equal(t, "Hello world", v.Bubbles[1].Source)
	assert.Equal(t, "Hello world", v.Bubbles[1].Doc.View(80))
	assert.False(t, v.Bubbles[1].Streaming)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())

	// persisted
	st, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, conv.Messages, st.Active().Messages)
}

func TestSubmit_StreamErrorKeepsPartialUncommitted(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	f.completer.body = func() io.Reader {
		return &failingReader{prefix: strings.TrimSuffix(sse("Partial"), "data: [DONE]\n\n"), err: errors.New("connection reset")}
	}

	err := f.ctrl.Submit(context.Background(), "hi")
	var netErr *cloud.NetworkError
	require.ErrorAs(t, err, &netErr)

	conv := f.ctrl.Active()
	require.Len(t, conv.Messages, 1, "no assistant message may be committed")
	assert.Equal(t, model.RoleUser, conv.Messages[0].Role)

	v := f.view.Snapshot()
	require.Len(t, v.Bubbles, 2)
	assert.Equal(t, "Partial", v.Bubbles[1].Source)
	assert.Contains(t, v.Bubbles[1].Error, "connection reset")
	assert.False(t, v.Bubbles[1].Streaming)

	assert.Equal(t, PhaseErrored, f.ctrl.Phase())
	assert.Equal(t, err, f.ctrl.LastError())

	// Errored accepts the next submit.
	f.completer.replying("fine")
	require.NoError(t, f.ctrl.Submit(context.Background(), "again"))
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.Nil(t, f.ctrl.LastError())
	assert.Len(t, f.ctrl.Active().Messages, 3)
}

func TestSubmit_RequestErrorAnnotatesEmptyBubble(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	f.completer.err = &cloud.APIError{Status: 401, Message: "bad key"}

	err := f.ctrl.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, cloud.ErrAuthFailed)

	v := f.view.Snapshot()
	require.Len(t, v.Bubbles, 2)
	assert.Empty(t, v.Bubbles[1].Source)
	assert.Contains(t, v.Bubbles[1].Error, "bad key")
	assert.Len(t, f.ctrl.Active().Messages, 1)
}

func TestSwitchConversation_RebuildsView(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	f.completer.replying("answer with `code`")
	require.NoError(t, f.ctrl.Submit(context.Background(), "question"))
	a := f.ctrl.ActiveID()
	renderedA := f.view.Render(80)

	b, err := f.ctrl.CreateConversation()
	require.NoError(t, err)
	assert.Equal(t, b.ID, f.ctrl.ActiveID())
	assert.True(t, f.view.Snapshot().Welcome)

	require.NoError(t, f.ctrl.SwitchConversation(a))
	assert.Equal(t, renderedA, f.view.Render(80))

	require.NoError(t, f.ctrl.SwitchConversation(b.ID))
	assert.True(t, f.view.Snapshot().Welcome)

	err = f.ctrl.SwitchConversation("missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.Equal(t, b.ID, f.ctrl.ActiveID())
}

func TestSubmit_CommitsToConversationActiveAtSubmit(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	a := f.ctrl.ActiveID()
	f.completer.replying("late reply")

	var other string
	f.completer.before = func() {
		conv, err := f.ctrl.CreateConversation()
		require.NoError(t, err)
		other = conv.ID
	}

	require.NoError(t, f.ctrl.Submit(context.Background(), "hi"))

	assert.Equal(t, other, f.ctrl.ActiveID())
	assert.Empty(t, f.ctrl.Active().Messages)
	assert.True(t, f.view.Snapshot().Welcome, "stale stream updates must not reach the new view")

	require.NoError(t, f.ctrl.SwitchConversation(a))
	msgs := f.ctrl.Active().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "late reply", msgs[1].Content)
}

func TestSubmit_SwitchAwayAndBackShowsReply(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	a := f.ctrl.ActiveID()
	f.completer.replying("Hello ", "world")
	f.completer.before = func() {
		_, err := f.ctrl.CreateConversation()
		require.NoError(t, err)
		require.NoError(t, f.ctrl.SwitchConversation(a))
	}

	require.NoError(t, f.ctrl.Submit(context.Background(), "Hi"))

	assert.Len(t, f.ctrl.Active().Messages, 2)
	bubbles := f.view.Snapshot().Bubbles
	require.Len(t, bubbles, 2)
	assert.Equal(t, "Hi", bubbles[0].Source)
	assert.Equal(t, "Hello world", bubbles[1].Source)
	assert.False(t, bubbles[1].Streaming)
}

func TestSubmit_SwitchBackMidStreamResumesBubble(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	a := f.ctrl.ActiveID()

	pr, pw := io.Pipe()
	f.completer.body = func() io.Reader { return pr }

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Submit(context.Background(), "Hi") }()

	lastBubble := func() transcript.Bubble {
		bubbles := f.view.Snapshot().Bubbles
		if len(bubbles) == 0 {
			return transcript.Bubble{}
		}
		return bubbles[len(bubbles)-1]
	}

	_, err := io.WriteString(pw, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello \"}}]}\n\n")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return lastBubble().Source == "Hello " }, time.Second, 5*time.Millisecond)

	_, err = f.ctrl.CreateConversation()
	require.NoError(t, err)
	assert.True(t, f.view.Snapshot().Welcome)

	require.NoError(t, f.ctrl.SwitchConversation(a))
	bubble := lastBubble()
	assert.Equal(t, "Hello ", bubble.Source, "partial text is shown again")
	assert.True(t, bubble.Streaming)

	_, err = io.WriteString(pw, "data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\ndata: [DONE]\n\n")
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	require.NoError(t, <-done)

	bubble = lastBubble()
	assert.Equal(t, "Hello world", bubble.Source)
	assert.False(t, bubble.Streaming)
	assert.Len(t, f.ctrl.Active().Messages, 2)
}

func TestSubmit_BusyWhileStreaming(t *testing.T) {
	f := newFixture(t, "sk-or-test")

	release := make(chan struct{})
	started := make(chan struct{})
	f.completer.before = func() {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Submit(context.Background(), "first") }()

	<-started
	assert.Equal(t, PhaseAwaitingResponse, f.ctrl.Phase())
	assert.ErrorIs(t, f.ctrl.Submit(context.Background(), "second"), ErrBusy)
	assert.ErrorIs(t, f.ctrl.FactoryReset(), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, f.ctrl.Active().Messages, 2)
}

func TestSubmit_BlankIgnored(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	require.NoError(t, f.ctrl.Submit(context.Background(), " \n\t "))
	assert.Empty(t, f.completer.calls)
	assert.Empty(t, f.ctrl.Active().Messages)
}

// =============================================================================
// SETTINGS, ROLES, EXPORT, RESET
// =============================================================================

func TestUpdateSettings(t *testing.T) {
	f := newFixture(t, "")

	s := f.ctrl.Settings()
	s.APIKey = "  sk-or-new  "
	s.Model = "openai/gpt-4o"
	require.NoError(t, f.ctrl.UpdateSettings(s))

	assert.Equal(t, "sk-or-new", f.ctrl.Settings().APIKey)
	st, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", st.Settings.Model)

	require.NoError(t, f.ctrl.Submit(context.Background(), "now it works"))
	assert.Equal(t, "openai/gpt-4o", f.completer.calls[0].settings.Model)
}

func TestSelectRole(t *testing.T) {
	f := newFixture(t, "sk-or-test")

	role, err := f.ctrl.SelectRole("Reviewer")
	require.NoError(t, err)
	assert.Equal(t, "reviewer", f.ctrl.Settings().ActiveRoleID)
	assert.Equal(t, role.Prompt, f.ctrl.Settings().SystemPrompt)

	_, err = f.ctrl.SelectRole("pirate")
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.Equal(t, "reviewer", f.ctrl.Settings().ActiveRoleID)

	next, err := f.ctrl.CycleRole()
	require.NoError(t, err)
	assert.NotEqual(t, "reviewer", next.ID)
}

func TestExport(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	f.completer.replying("hello")
	require.NoError(t, f.ctrl.Submit(context.Background(), "hi there"))

	name, data, err := f.ctrl.Export("text")
	require.NoError(t, err)
	assert.Equal(t, "chat-hi_there.txt", name)
	assert.Equal(t, "[USER]:\nhi there\n\n--- \n[ASSISTANT]:\nhello\n\n", string(data))

	_, _, err = f.ctrl.Export("pdf")
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	f.completer.replying("hello")
	require.NoError(t, f.ctrl.Submit(context.Background(), "hi there"))

	dir := filepath.Join(t.TempDir(), "exports")
	path, err := f.ctrl.ExportToFile("markdown", dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat-hi_there.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, err = f.ctrl.ExportToFile("pdf", dir, false)
	assert.Error(t, err)
}

func TestFactoryReset(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	require.NoError(t, f.ctrl.Submit(context.Background(), "hi"))
	_, err := f.ctrl.CreateConversation()
	require.NoError(t, err)

	require.NoError(t, f.ctrl.FactoryReset())

	convs := f.ctrl.Conversations()
	require.Len(t, convs, 1)
	assert.Empty(t, convs[0].Messages)
	assert.Equal(t, f.store.Defaults(), f.ctrl.Settings())
	assert.True(t, f.view.Snapshot().Welcome)
}

func TestInit_RestoresAndRepairs(t *testing.T) {
	kv := storage.NewMemoryKV()
	defaults := model.DefaultSettings()
	store := storage.NewSessionStore(kv, defaults)

	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("stored"))
	st := model.NewState(defaults)
	st.Conversations = []*model.Conversation{conv}
	st.ActiveID = "dangling"
	require.NoError(t, store.Save(st))

	view := transcript.New(nil)
	ctrl := NewController(Options{Store: store, Completer: &fakeCompleter{}, Renderer: view})
	require.NoError(t, ctrl.Init())

	assert.Equal(t, conv.ID, ctrl.ActiveID())
	require.Len(t, view.Snapshot().Bubbles, 1)

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, conv.ID, reloaded.ActiveID)
}

func TestInit_CorruptStoreUsesDefaults(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.StateKey, []byte("{not json")))
	store := storage.NewSessionStore(kv, model.DefaultSettings())

	ctrl := NewController(Options{Store: store, Completer: &fakeCompleter{}, Renderer: transcript.New(nil)})
	require.NoError(t, ctrl.Init())

	var corrupt *storage.CorruptStateError
	assert.ErrorAs(t, ctrl.LoadError(), &corrupt)
	assert.Len(t, ctrl.Conversations(), 1)

	_, err := store.Load()
	assert.NoError(t, err, "defaults should have been written back")

	backup, err := kv.Get(storage.BackupKey)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup), "the corrupt blob must survive")
}

// unreadableKV fails every read.
type unreadableKV struct {
	*storage.MemoryKV
	err error
}

func (u unreadableKV) Get(key string) ([]byte, error) { return nil, u.err }

func TestInit_UnreadableStoreIsNotFatal(t *testing.T) {
	inner := storage.NewMemoryKV()
	readErr := errors.New("permission denied")
	store := storage.NewSessionStore(unreadableKV{MemoryKV: inner, err: readErr}, model.DefaultSettings())

	view := transcript.New(nil)
	ctrl := NewController(Options{Store: store, Completer: &fakeCompleter{}, Renderer: view})
	require.NoError(t, ctrl.Init())

	assert.ErrorIs(t, ctrl.LoadError(), readErr)
	assert.Len(t, ctrl.Conversations(), 1)
	assert.True(t, view.Snapshot().Welcome)

	_, err := inner.Get(storage.StateKey)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound, "an unreadable store must not be overwritten at startup")
}

func TestSwitchRelative(t *testing.T) {
	f := newFixture(t, "sk-or-test")
	first := f.ctrl.ActiveID()
	second, err := f.ctrl.CreateConversation()
	require.NoError(t, err)

	// list is [second, first]; active is second
	id, err := f.ctrl.SwitchRelative(1)
	require.NoError(t, err)
	assert.Equal(t, first, id)

	id, err = f.ctrl.SwitchRelative(1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	id, err = f.ctrl.SwitchRelative(-1)
	require.NoError(t, err)
	assert.Equal(t, first, id)
}
