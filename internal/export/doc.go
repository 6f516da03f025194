// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export serializes a conversation for saving outside rigchat.
//
// # Formats
//
//   - text: "[ROLE]:\n<content>\n\n" per message, joined by "--- \n"
//   - markdown: YAML front matter, one heading per message
//   - json: the conversation as stored
//   - yaml: the same document as YAML
//   - html: standalone page; assistant markdown rendered by goldmark with
//     raw HTML stripped, user text escaped
//
// # Usage
//
//	exp, err := export.ForFormat("markdown", nil)
//	data, err := exp.Export(conv)
//	name := export.FileName(conv, exp)
package export
