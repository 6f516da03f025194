// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"github.com/jeranaias/rigchat/internal/logging"
)

// Pipeline renders markdown sources into Documents.
type Pipeline struct {
	markdown    Markdown
	highlighter *Highlighter
}

// NewPipeline creates a pipeline. A nil markdown service leaves prose as
// written; a nil highlighter leaves code plain.
func NewPipeline(md Markdown, hl *Highlighter) *Pipeline {
	if md == nil {
		md = Passthrough{}
	}
	return &Pipeline{markdown: md, highlighter: hl}
}

// Parse splits src into segments without rendering anything.
func (p *Pipeline) Parse(src string) *Document {
	return &Document{Source: src, Segments: splitFences(src)}
}

// Render parses src and runs every stage on it.
func (p *Pipeline) Render(src string) *Document {
	doc := p.Parse(src)
	p.renderProse(doc)
	p.Highlight(doc)
	p.Augment(doc)
	return doc
}

// Rerender renders src as a replacement for prev. Copy affordances on
// blocks that still exist carry over, so a "Copied!" label survives the
// next streaming update.
func (p *Pipeline) Rerender(prev *Document, src string) *Document {
	doc := p.Render(src)
	if prev == nil {
		return doc
	}
	old := prev.Blocks()
	for _, b := range doc.Blocks() {
		if b.Index < len(old) && old[b.Index].Copy != nil {
			b.Copy = old[b.Index].Copy
		}
	}
	return doc
}

// Highlight colors every block that has not been highlighted yet.
func (p *Pipeline) Highlight(doc *Document) {
	for _, b := range doc.Blocks() {
		if b.highlighted {
			continue
		}
		b.highlighted = true
		if b.Language == "" && b.Closed {
			b.Detected = DetectLanguage(b.Source)
		}
		if p.highlighter == nil {
			continue
		}
		out, err := p.highlighter.Highlight(b.Source, b.Language)
		if err != nil {
			logging.For("render").Debug("highlight failed", "lang", b.Language, "err", err)
			continue
		}
		b.Highlighted = out
	}
}

// Augment attaches a copy affordance to every block that lacks one.
func (p *Pipeline) Augment(doc *Document) {
	for _, b := range doc.Blocks() {
		if b.Copy == nil {
			b.Copy = newCopyAffordance()
		}
	}
}

func (p *Pipeline) renderProse(doc *Document) {
	for i := range doc.Segments {
		seg := &doc.Segments[i]
		if seg.Kind != SegmentProse || seg.Rendered != "" {
			continue
		}
		out, err := p.markdown.Render(seg.Source)
		if err != nil {
			logging.For("render").Debug("markdown render failed", "err", err)
			out = seg.Source
		}
		seg.Rendered = out
	}
}
