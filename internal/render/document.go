// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// DOCUMENT MODEL
// =============================================================================

// SegmentKind tells prose from code.
type SegmentKind int

const (
	// SegmentProse is markdown text outside any fence.
	SegmentProse SegmentKind = iota
	// SegmentCode is a fenced code block.
	SegmentCode
)

// Segment is one contiguous piece of a Document.
type Segment struct {
	Kind SegmentKind

	// Source is the raw markdown for prose segments.
	Source string

	// Rendered is the styled prose. Empty until the pipeline renders it.
	Rendered string

	// Block is set for code segments.
	Block *CodeBlock
}

// Document is the rendered form of one markdown source.
type Document struct {
	Source   string
	Segments []Segment
}

// Blocks returns the code blocks in source order.
func (d *Document) Blocks() []*CodeBlock {
	if d == nil {
		return nil
	}
	var blocks []*CodeBlock
	for _, seg := range d.Segments {
		if seg.Kind == SegmentCode && seg.Block != nil {
			blocks = append(blocks, seg.Block)
		}
	}
	return blocks
}

// LastBlock returns the final code block, or nil.
func (d *Document) LastBlock() *CodeBlock {
	blocks := d.Blocks()
	if len(blocks) == 0 {
		return nil
	}
	return blocks[len(blocks)-1]
}

// View renders the document for a terminal of the given width.
func (d *Document) View(width int) string {
	if d == nil {
		return ""
	}
	parts := make([]string, 0, len(d.Segments))
	for _, seg := range d.Segments {
		switch seg.Kind {
		case SegmentCode:
			if seg.Block != nil {
				parts = append(parts, seg.Block.View(width))
			}
		default:
			text := seg.Rendered
			if text == "" {
				text = seg.Source
			}
			text = strings.Trim(text, "\n")
			if strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// CodeBlock is a fenced code block.
type CodeBlock struct {
	// Index is the block's position among the document's blocks.
	Index int

	// Language is the first word of the fence info string.
	Language string

	// Detected is the guessed language of a block whose fence names none.
	Detected string

	// Source is the code between the fences.
	Source string

	// Closed is false when the fence runs to the end of the source.
	Closed bool

	// Highlighted holds the ANSI-colored code once highlighting ran.
	Highlighted string

	// Copy is attached by Pipeline.Augment.
	Copy *CopyAffordance

	highlighted bool
}

// IsHighlighted reports whether highlighting already ran on the block.
func (b *CodeBlock) IsHighlighted() bool {
	return b.highlighted
}

var (
	codeFrameStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#9CA0B0", Dark: "#6C7086"}).
			Padding(0, 1)

	codeHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#A6ADC8"}).
			Bold(true)
)

// View renders the block inside a frame with its language and copy label.
func (b *CodeBlock) View(width int) string {
	code := b.Source
	if b.highlighted && b.Highlighted != "" {
		code = b.Highlighted
	}
	code = strings.TrimRight(code, "\n")

	var header []string
	switch {
	case b.Language != "":
		header = append(header, b.Language)
	case b.Detected != "":
		header = append(header, strings.ToLower(b.Detected))
	}
	if b.Copy != nil {
		header = append(header, "["+b.Copy.Label()+"]")
	}

	body := code
	if len(header) > 0 {
		body = codeHeaderStyle.Render(strings.Join(header, "  ")) + "\n" + code
	}

	style := codeFrameStyle
	if width > 4 {
		style = style.MaxWidth(width)
	}
	return style.Render(body)
}

// =============================================================================
// COPY AFFORDANCE
// =============================================================================

const (
	// CopyLabel is shown on a block that has not been copied recently.
	CopyLabel = "Copy"
	// CopiedLabel is shown for CopiedDuration after a copy.
	CopiedLabel = "Copied!"
	// CopiedDuration is how long the copied label stays.
	CopiedDuration = 2 * time.Second
)

// CopyAffordance is the copy button attached to a code block.
type CopyAffordance struct {
	copiedAt time.Time
	now      func() time.Time
}

func newCopyAffordance() *CopyAffordance {
	return &CopyAffordance{now: time.Now}
}

// Label returns the text to show on the affordance.
func (c *CopyAffordance) Label() string {
	if !c.copiedAt.IsZero() && c.now().Sub(c.copiedAt) < CopiedDuration {
		return CopiedLabel
	}
	return CopyLabel
}

// MarkCopied records a successful copy.
func (c *CopyAffordance) MarkCopied() {
	c.copiedAt = c.now()
}
