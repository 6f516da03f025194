// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"strconv"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONVERSATION LIST FORMATTING
// =============================================================================

// FormatConversationList renders conversations as a numbered table. The
// active conversation is marked with '*'. Numbers are 1-based and match
// the order used by "switch N".
func FormatConversationList(convs []*model.Conversation, activeID string) string {
	if len(convs) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	sb.WriteString(formatPadded("#", 5) + formatPadded("Updated", 18) + formatPadded("Msgs", 6) + "Title\n")
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	for i, c := range convs {
		marker := " "
		if c.ID == activeID {
			marker = "*"
		}
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		sb.WriteString(formatPadded(marker+strconv.Itoa(i+1), 5) +
			formatPadded(updated, 18) +
			formatPadded(strconv.Itoa(c.MessageCount()), 6) +
			util.TruncateRunes(c.DisplayTitle(), 40) + "\n")
	}
	return sb.String()
}

// formatPadded pads a string to the specified display width with spaces.
func formatPadded(s string, width int) string {
	w := util.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
