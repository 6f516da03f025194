// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// State is everything that survives a restart: settings, the conversation
// list (most recent first) and the active conversation ID.
type State struct {
	Settings      Settings
	Conversations []*Conversation
	ActiveID      string
}

// NewState returns an empty state with the given settings.
func NewState(settings Settings) *State {
	return &State{
		Settings:      settings,
		Conversations: make([]*Conversation, 0),
	}
}

// Find returns the conversation with the given ID, or nil.
func (s *State) Find(id string) *Conversation {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Active returns the active conversation, or nil when ActiveID dangles.
func (s *State) Active() *Conversation {
	return s.Find(s.ActiveID)
}

// Prepend inserts a conversation at the front of the list and makes it active.
func (s *State) Prepend(c *Conversation) {
	s.Conversations = append([]*Conversation{c}, s.Conversations...)
	s.ActiveID = c.ID
}

// EnsureActive restores the invariant that at least one conversation exists
// and ActiveID names one of them. A fresh conversation is created when the
// list is empty; a dangling ActiveID falls back to the first conversation.
// It reports whether the state changed.
func (s *State) EnsureActive() bool {
	s.compact()
	if len(s.Conversations) == 0 {
		s.Prepend(NewConversation())
		return true
	}
	if s.Active() == nil {
		s.ActiveID = s.Conversations[0].ID
		return true
	}
	return false
}

// compact drops nil entries and duplicate IDs left by hand-edited blobs.
func (s *State) compact() {
	seen := make(map[string]bool, len(s.Conversations))
	kept := s.Conversations[:0]
	for _, c := range s.Conversations {
		if c == nil || c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if c.Messages == nil {
			c.Messages = make([]Message, 0)
		}
		if c.Title == "" {
			c.Title = DefaultTitle
		}
		kept = append(kept, c)
	}
	s.Conversations = kept
}

// Clone returns a deep copy safe to read without the owner's lock.
func (s *State) Clone() *State {
	out := &State{
		Settings:      s.Settings,
		Conversations: make([]*Conversation, len(s.Conversations)),
		ActiveID:      s.ActiveID,
	}
	for i, c := range s.Conversations {
		out.Conversations[i] = c.Clone()
	}
	return out
}
