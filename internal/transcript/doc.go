// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript keeps the visible conversation: one bubble per message,
// plus the live bubble of a streaming reply.
//
// Transcript is headless. Front ends read it through Snapshot or Render and
// repaint when the change hook fires. Printer is the line-oriented variant
// used by the REPL and the ask command.
package transcript
