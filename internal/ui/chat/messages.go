// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/rigchat/internal/config"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// transcriptChangedMsg asks for a repaint after the transcript changed.
type transcriptChangedMsg struct{}

// submitDoneMsg is sent when Controller.Submit returns.
type submitDoneMsg struct {
	text string
	err  error
}

// =============================================================================
// ACTION MESSAGES
// =============================================================================

// exportDoneMsg reports the result of an export.
type exportDoneMsg struct {
	path string
	err  error
}

// copyDoneMsg reports the result of copying a code block.
type copyDoneMsg struct {
	err error
}

// toastExpiredMsg clears the toast with the matching sequence number.
type toastExpiredMsg struct {
	seq int
}

// copiedExpiredMsg repaints once a "Copied!" label has expired.
type copiedExpiredMsg struct{}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg is sent by the CLI when the config file changed on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// toastDuration is how long a toast stays on screen.
const toastDuration = 3 * time.Second
