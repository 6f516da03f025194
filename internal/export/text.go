// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// TextSeparator sits between messages in a plain-text export.
const TextSeparator = "--- \n"

// TextExporter writes the plain-text transcript format.
type TextExporter struct{}

// NewTextExporter creates a plain-text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Export writes "[ROLE]:\n<content>\n\n" per message, joined by
// TextSeparator. An empty conversation exports as empty text.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	parts := make([]string, len(conv.Messages))
	for i, msg := range conv.Messages {
		parts[i] = "[" + msg.Role.Label() + "]:\n" + msg.Content + "\n\n"
	}
	return []byte(strings.Join(parts, TextSeparator)), nil
}

// FileExtension returns the file extension for plain text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for plain text.
func (e *TextExporter) MimeType() string {
	return "text/plain"
}
