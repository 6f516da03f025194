// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// settings and the persisted session state.
//
// # Key Types
//
//   - Message: a single turn with a role and text content
//   - Conversation: an ordered message list with a stable ID and a title
//   - Settings: credential, model, system prompt and display preferences
//   - State: the settings plus every conversation and the active ID
//   - ModelInfo: a suggested OpenRouter model
//
// # Usage
//
//	st := model.NewState(model.DefaultSettings())
//	st.EnsureActive()
//	conv := st.Active()
//	conv.Append(model.NewUserMessage("Hello!"))
package model
