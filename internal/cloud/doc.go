// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to OpenRouter's OpenAI-compatible chat API.
//
// A completion request is a single streaming POST to /chat/completions.
// The response body is Server-Sent Events; Decoder turns raw body bytes
// into text fragments and Stream exposes them one at a time.
//
// # Key Types
//
//   - Client: builds and sends requests, maps HTTP failures to APIError
//   - Stream: pull-style iterator over response fragments
//   - Decoder: incremental SSE decoder, safe across arbitrary chunk splits
//   - APIError, NetworkError: the two failure kinds a request can end in
//
// # Usage
//
//	client := cloud.NewClient().WithSiteName("rigchat")
//	stream, err := client.SendConversation(ctx, settings, history)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Fragment())
//	}
//	if err := stream.Err(); err != nil { ... }
//
// Requests are never retried; a failure is reported once and the caller
// decides what to show.
package cloud
