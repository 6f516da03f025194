// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea front end of rigchat.
//
// The screen has a conversation sidebar, the transcript viewport, a
// multi-line input and a status line. The model never renders messages
// itself: it drives a session.Controller and repaints from the
// transcript.Transcript the controller renders into.
//
// # Keys
//
//	Enter          send
//	Alt+Enter      newline
//	Ctrl+N         new conversation
//	Ctrl+Up/Down   previous/next conversation
//	Ctrl+E         export conversation to a text file
//	Ctrl+Y         copy the last code block
//	Ctrl+R         cycle role
//	Ctrl+K         set API key
//	PgUp/PgDn      scroll
//	Ctrl+C         quit
//
// # Streaming
//
// Replies stream on a goroutine. The transcript's change hook signals a
// one-slot channel; a command waits on it, throttled to the configured
// frame rate, and triggers a repaint. Signals that arrive while one is
// pending coalesce, so repaints never fall behind the stream.
package chat
