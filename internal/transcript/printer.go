// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
)

// Printer writes the conversation to a line-oriented terminal. Streaming
// replies are printed as deltas, so nothing already written is repeated.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	pipeline *render.Pipeline
	width    int

	// EchoUser controls whether user messages are printed. The REPL leaves
	// it off since the user's line is already on screen.
	EchoUser bool

	// Quiet makes Reset print nothing. One-shot commands use it to skip
	// the history of the conversation they start in.
	Quiet bool

	nextID  int
	handle  string
	printed int
	failed  bool
}

// NewPrinter creates a printer. Finished assistant messages shown by Reset
// go through p; a nil pipeline prints them raw.
func NewPrinter(out io.Writer, p *render.Pipeline, width int) *Printer {
	return &Printer{out: out, pipeline: p, width: width}
}

// Reset prints the conversation history, or the welcome text.
func (p *Printer) Reset(messages []model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = ""
	if p.Quiet {
		return
	}
	if len(messages) == 0 {
		fmt.Fprintln(p.out, WelcomeText)
		return
	}
	for _, m := range messages {
		p.printMessageLocked(m.Role, m.Content)
	}
}

// RenderMessage prints one finished message.
func (p *Printer) RenderMessage(role model.Role, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if role == model.RoleUser && !p.EchoUser {
		return
	}
	p.printMessageLocked(role, content)
}

// BeginStreaming starts a reply line.
func (p *Printer) BeginStreaming() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.handle = "stream-" + strconv.Itoa(p.nextID)
	p.printed = 0
	p.failed = false
	fmt.Fprint(p.out, "\n")
	return p.handle
}

// UpdateStreaming prints whatever part of accumulated is new.
func (p *Printer) UpdateStreaming(handle, accumulated string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handle != p.handle || p.failed || len(accumulated) <= p.printed {
		return
	}
	fmt.Fprint(p.out, accumulated[p.printed:])
	p.printed = len(accumulated)
}

// AnnotateError prints the error after the partial reply.
func (p *Printer) AnnotateError(handle string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handle != p.handle || err == nil {
		return
	}
	if p.printed > 0 {
		fmt.Fprint(p.out, "\n")
	}
	fmt.Fprint(p.out, ErrorAnnotation(err))
	p.failed = true
}

// FinalizeStreaming ends the reply line.
func (p *Printer) FinalizeStreaming(handle string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if handle != p.handle {
		return
	}
	fmt.Fprint(p.out, "\n\n")
	p.handle = ""
}

func (p *Printer) printMessageLocked(role model.Role, content string) {
	fmt.Fprintf(p.out, "%s:\n", role.DisplayName())
	if role == model.RoleAssistant && p.pipeline != nil {
		content = p.pipeline.Render(content).View(p.width)
	}
	fmt.Fprintln(p.out, strings.TrimRight(content, "\n"))
	fmt.Fprintln(p.out)
}
