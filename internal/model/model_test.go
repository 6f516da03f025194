// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	c := NewConversation()

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, DefaultTitle, c.Title)
	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Messages)
}

func TestNewConversationID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewConversationID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "Hello", "Hello"},
		{"exactly thirty", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"long", strings.Repeat("b", 45), strings.Repeat("b", 30)},
		{"newlines", "fix this\nplease\r\nnow", "fix this please now"},
		{"multibyte", strings.Repeat("é", 40), strings.Repeat("é", 30)},
		{"blank", " \n ", DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.input))
		})
	}
}

func TestConversation_AppendSetsTitleOnFirstUserMessage(t *testing.T) {
	c := NewConversation()
	c.Append(NewUserMessage("Explain goroutines to me in detail please"))
	c.Append(NewAssistantMessage("Sure."))
	c.Append(NewUserMessage("Something else entirely"))

	assert.Equal(t, "Explain goroutines to me in de", c.Title)
	assert.Equal(t, 3, c.MessageCount())
}

func TestConversation_CloneIsDeep(t *testing.T) {
	c := NewConversation()
	c.Append(NewUserMessage("one"))

	clone := c.Clone()
	clone.Messages[0].Content = "changed"
	clone.Append(NewAssistantMessage("two"))

	assert.Equal(t, "one", c.Messages[0].Content)
	assert.Equal(t, 1, c.MessageCount())
}

func TestConversation_JSONShape(t *testing.T) {
	c := &Conversation{
		ID:       "1712345678901",
		Title:    "Hi",
		Messages: []Message{NewUserMessage("Hi")},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1712345678901","title":"Hi","messages":[{"role":"user","content":"Hi"}]}`, string(data))
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestState_EnsureActive_CreatesConversation(t *testing.T) {
	st := NewState(DefaultSettings())

	changed := st.EnsureActive()

	assert.True(t, changed)
	require.Len(t, st.Conversations, 1)
	assert.Equal(t, st.Conversations[0].ID, st.ActiveID)
}

func TestState_EnsureActive_FixesDanglingID(t *testing.T) {
	st := NewState(DefaultSettings())
	a, b := NewConversation(), NewConversation()
	st.Conversations = []*Conversation{a, b}
	st.ActiveID = "missing"

	assert.True(t, st.EnsureActive())
	assert.Equal(t, a.ID, st.ActiveID)
	assert.False(t, st.EnsureActive())
}

func TestState_EnsureActive_DropsBrokenEntries(t *testing.T) {
	st := NewState(DefaultSettings())
	a := NewConversation()
	dup := &Conversation{ID: a.ID}
	st.Conversations = []*Conversation{nil, a, dup, {ID: ""}}
	st.ActiveID = a.ID

	st.EnsureActive()

	require.Len(t, st.Conversations, 1)
	assert.Same(t, a, st.Conversations[0])
}

func TestState_Prepend(t *testing.T) {
	st := NewState(DefaultSettings())
	first, second := NewConversation(), NewConversation()

	st.Prepend(first)
	st.Prepend(second)

	require.Len(t, st.Conversations, 2)
	assert.Equal(t, second.ID, st.Conversations[0].ID)
	assert.Equal(t, second.ID, st.ActiveID)
}

// =============================================================================
// SETTINGS AND MODEL TESTS
// =============================================================================

func TestSettings_Defaults(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, DefaultModel, s.Model)
	assert.Equal(t, DefaultSystemPrompt, s.SystemPrompt)
	assert.False(t, s.HasCredential())
	assert.Equal(t, "(not set)", s.MaskedAPIKey())
}

func TestSettings_MaskedAPIKey(t *testing.T) {
	s := Settings{APIKey: "sk-or-v1-abcdef123456"}
	masked := s.MaskedAPIKey()

	assert.True(t, strings.HasPrefix(masked, "sk-o"))
	assert.True(t, strings.HasSuffix(masked, "3456"))
	assert.NotContains(t, masked, "abcdef")
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, DefaultModel, ResolveModel("deepseek-r1"))
	assert.Equal(t, "openai/gpt-4o", ResolveModel("GPT-4o"))
	assert.Equal(t, "vendor/custom-model", ResolveModel(" vendor/custom-model "))
}

func TestModelInfo_ContextString(t *testing.T) {
	assert.Equal(t, "?", ModelInfo{}.ContextString())
	assert.Equal(t, "128K", ModelInfo{ContextLength: 128000}.ContextString())
	assert.Equal(t, "1M", ModelInfo{ContextLength: 1000000}.ContextString())
	assert.Equal(t, "512", ModelInfo{ContextLength: 512}.ContextString())
}

func TestRole(t *testing.T) {
	assert.Equal(t, "USER", RoleUser.Label())
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.True(t, RoleAssistant.Conversational())
	assert.False(t, RoleSystem.Conversational())
}
