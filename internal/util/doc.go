// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across rigchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes, TruncateRunesNoEllipsis: UTF-8 safe truncation
//   - TruncateWidth, StringWidth: display-width aware helpers
//   - CollapseWhitespace: fold line breaks and runs of spaces
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateRunesNoEllipsis(util.CollapseWhitespace(text), 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
