// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Markdown renders markdown prose to terminal rich text.
type Markdown interface {
	Render(src string) (string, error)
}

// =============================================================================
// GLAMOUR
// =============================================================================

// Glamour style names.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// GlamourMarkdown renders markdown with glamour.
type GlamourMarkdown struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	style    string
	wrap     int
}

// NewGlamourMarkdown creates a renderer. An "auto" or empty style picks
// dark or light from the terminal background, or notty when stdout is not
// a terminal. A wrap of 0 disables glamour's own wrapping.
func NewGlamourMarkdown(style string, wrap int) (*GlamourMarkdown, error) {
	style = ResolveStyle(style)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return &GlamourMarkdown{renderer: r, style: style, wrap: wrap}, nil
}

// Style returns the resolved glamour style name.
func (g *GlamourMarkdown) Style() string {
	return g.style
}

// Render implements Markdown.
func (g *GlamourMarkdown) Render(src string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out, err := g.renderer.Render(src)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}

// ResolveStyle maps a configured theme to a concrete glamour style.
func ResolveStyle(style string) string {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case StyleDark:
		return StyleDark
	case StyleLight:
		return StyleLight
	case StyleNoTTY:
		return StyleNoTTY
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return StyleNoTTY
	}
	if termenv.HasDarkBackground() {
		return StyleDark
	}
	return StyleLight
}

// =============================================================================
// PASSTHROUGH
// =============================================================================

// Passthrough returns markdown unchanged. Used for piped output and tests.
type Passthrough struct{}

// Render implements Markdown.
func (Passthrough) Render(src string) (string, error) {
	return src, nil
}
