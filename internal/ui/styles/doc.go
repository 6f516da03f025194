// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the rigchat TUI.
//
// Colors are Lip Gloss AdaptiveColors, so every style follows the light or
// dark background. The background is detected with termenv unless the user
// forces one through ui.theme or the dark-mode setting.
//
// # Usage
//
//	theme := styles.NewTheme(styles.ModeAuto)
//	header := theme.Header.Render("rigchat")
//	status := styles.RenderError("request failed")
package styles
