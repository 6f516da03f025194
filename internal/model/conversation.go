// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigchat/internal/util"
)

const (
	// DefaultTitle is the title of a conversation with no messages yet.
	DefaultTitle = "New Conversation"

	// TitleMaxRunes bounds a derived title.
	TitleMaxRunes = 30
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds one chat thread. IDs are unique within a session and
// never change once assigned.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// NewConversation creates an empty conversation with a fresh ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        NewConversationID(),
		Title:     DefaultTitle,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewConversationID returns a time-ordered unique identifier.
func NewConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// DeriveTitle builds a conversation title from the first user message:
// line breaks collapse to spaces and the result is cut to TitleMaxRunes.
func DeriveTitle(text string) string {
	title := util.TruncateRunesNoEllipsis(util.CollapseWhitespace(text), TitleMaxRunes)
	if title == "" {
		return DefaultTitle
	}
	return title
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message. The first user message also sets the title.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	if len(c.Messages) == 1 && msg.Role == RoleUser {
		c.Title = DeriveTitle(msg.Content)
	}
}

// History returns a copy of the messages, safe to hand to another goroutine.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// LastMessage returns the most recent message and whether one exists.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// DisplayTitle returns the title, falling back to DefaultTitle.
func (c *Conversation) DisplayTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = c.History()
	return &clone
}
