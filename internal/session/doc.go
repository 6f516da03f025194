// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates a chat session: it owns the conversation
// list and settings, persists them after every change, and drives one
// streaming completion at a time into a Renderer.
//
// # Phases
//
//	Idle ──Submit──▶ AwaitingResponse ──end──▶ Idle
//	                        └─────error──▶ Errored ──Submit──▶ ...
//
// A reply is committed to the conversation that was active when it was
// submitted, even if the user switched away while it streamed. A failed
// or cancelled reply is shown with an error annotation and never stored.
//
// # Usage
//
//	ctrl := session.NewController(session.Options{
//	    Store:     store,
//	    Completer: client,
//	    Renderer:  transcript.New(pipeline),
//	    Roles:     cfg.AllRoles(),
//	})
//	if err := ctrl.Init(); err != nil { ... }
//	err := ctrl.Submit(ctx, "Explain goroutines")
package session
