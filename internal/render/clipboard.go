// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnavailable is returned when no clipboard utility is installed.
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// Copy writes the block's source to the system clipboard and flips its
// affordance to the copied label.
func Copy(block *CodeBlock) error {
	if block == nil {
		return errors.New("no code block to copy")
	}
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	if err := writeClipboard(block.Source); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	if block.Copy != nil {
		block.Copy.MarkCopied()
	}
	return nil
}
