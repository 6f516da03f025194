// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant markdown into terminal rich text.
//
// A Pipeline splits the source into prose and fenced code blocks, renders
// the prose through a Markdown service (glamour), highlights code blocks
// with chroma and attaches a copy affordance to each block. Every step is
// idempotent, so a streaming reply can be re-rendered from its whole
// accumulated text on each fragment without duplicating anything.
//
// Unclosed fences run to the end of the source, which lets a partial prefix
// of a reply render with its open code block already highlighted.
package render
