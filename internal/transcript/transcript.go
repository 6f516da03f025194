// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
)

// WelcomeText is shown in place of an empty conversation.
const WelcomeText = "How can I help you today?\n\nAsk a question, paste some code, or pick a role to get started."

// ErrorAnnotation formats an error appended to a bubble.
func ErrorAnnotation(err error) string {
	return fmt.Sprintf("[Error: %s]", err.Error())
}

// =============================================================================
// BUBBLES
// =============================================================================

// Bubble is one message in the transcript.
type Bubble struct {
	ID   string
	Role model.Role

	// Source is the message text as written.
	Source string

	// Doc is the rendered assistant markdown. Nil for user bubbles, which
	// are always shown as plain text.
	Doc *render.Document

	// Streaming is true while the reply is still arriving.
	Streaming bool

	// Error is the annotation appended after a failed reply.
	Error string
}

// View is a point-in-time copy of the transcript.
type View struct {
	Welcome  bool
	Bubbles  []Bubble
	Revision uint64
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the headless conversation view. It is safe for concurrent
// use.
type Transcript struct {
	mu       sync.Mutex
	pipeline *render.Pipeline
	bubbles  []*Bubble
	nextID   int
	revision uint64
	onChange func()
}

// New creates an empty transcript showing the welcome placeholder.
func New(p *render.Pipeline) *Transcript {
	if p == nil {
		p = render.NewPipeline(nil, nil)
	}
	return &Transcript{pipeline: p}
}

// OnChange registers fn to run after every change. fn is called without the
// transcript lock held and must not block.
func (t *Transcript) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Reset clears the transcript and rebuilds it from messages.
func (t *Transcript) Reset(messages []model.Message) {
	t.mu.Lock()
	t.bubbles = t.bubbles[:0]
	for _, m := range messages {
		t.appendLocked(m.Role, m.Content)
	}
	notify := t.bumpLocked()
	t.mu.Unlock()
	notify()
}

// RenderMessage appends a finished message.
func (t *Transcript) RenderMessage(role model.Role, content string) {
	t.mu.Lock()
	t.appendLocked(role, content)
	notify := t.bumpLocked()
	t.mu.Unlock()
	notify()
}

// BeginStreaming appends an empty assistant bubble and returns its handle.
func (t *Transcript) BeginStreaming() string {
	t.mu.Lock()
	b := t.appendLocked(model.RoleAssistant, "")
	b.Streaming = true
	notify := t.bumpLocked()
	t.mu.Unlock()
	notify()
	return b.ID
}

// UpdateStreaming re-renders the bubble from the whole accumulated text.
// Unknown handles are ignored.
func (t *Transcript) UpdateStreaming(handle, accumulated string) {
	t.mu.Lock()
	b := t.findLocked(handle)
	if b == nil {
		t.mu.Unlock()
		return
	}
	b.Source = accumulated
	b.Doc = t.pipeline.Rerender(b.Doc, accumulated)
	notify := t.bumpLocked()
	t.mu.Unlock()
	notify()
}

// AnnotateError appends an error annotation to the bubble, keeping any
// partial text. Unknown handles are ignored.
func (t *Transcript) AnnotateError(handle string, err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	b := t.findLocked(handle)
	if b == nil {
		t.mu.Unlock()
		return
	}
	b.Error = ErrorAnnotation(err)
	notify := t.bumpLocked()
	t.mu.Unlock()
	notify()
}

// FinalizeStreaming clears the streaming marker. Unknown handles are ignored.
func (t *Transcript) FinalizeStreaming(handle string) {
	t.mu.Lock()
	b := t.findLocked(handle)
	if b == nil || !b.Streaming {
		t.mu.Unlock()
		return
	}
	b.Streaming = false
	notify := t.bumpLocked()
	t.mu.Unlock()
	notify()
}

// Snapshot returns a copy of the current state.
func (t *Transcript) Snapshot() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := View{
		Welcome:  len(t.bubbles) == 0,
		Bubbles:  make([]Bubble, len(t.bubbles)),
		Revision: t.revision,
	}
	for i, b := range t.bubbles {
		v.Bubbles[i] = *b
	}
	return v
}

// Revision returns the change counter.
func (t *Transcript) Revision() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revision
}

// LastCodeBlock returns the newest code block in any assistant bubble.
func (t *Transcript) LastCodeBlock() *render.CodeBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastBlockLocked()
}

// CopyLastCodeBlock copies the newest code block to the clipboard.
func (t *Transcript) CopyLastCodeBlock() error {
	t.mu.Lock()
	block := t.lastBlockLocked()
	if block == nil {
		t.mu.Unlock()
		return fmt.Errorf("no code block to copy")
	}
	err := render.Copy(block)
	notify := func() {}
	if err == nil {
		notify = t.bumpLocked()
	}
	t.mu.Unlock()
	notify()
	return err
}

func (t *Transcript) lastBlockLocked() *render.CodeBlock {
	for i := len(t.bubbles) - 1; i >= 0; i-- {
		if block := t.bubbles[i].Doc.LastBlock(); block != nil {
			return block
		}
	}
	return nil
}

func (t *Transcript) appendLocked(role model.Role, content string) *Bubble {
	t.nextID++
	b := &Bubble{
		ID:     "msg-" + strconv.Itoa(t.nextID),
		Role:   role,
		Source: content,
	}
	if role == model.RoleAssistant {
		b.Doc = t.pipeline.Render(content)
	}
	t.bubbles = append(t.bubbles, b)
	return b
}

func (t *Transcript) findLocked(handle string) *Bubble {
	for i := len(t.bubbles) - 1; i >= 0; i-- {
		if t.bubbles[i].ID == handle {
			return t.bubbles[i]
		}
	}
	return nil
}

// bumpLocked advances the revision and returns the hook to call once the
// lock is released.
func (t *Transcript) bumpLocked() func() {
	t.revision++
	if fn := t.onChange; fn != nil {
		return fn
	}
	return func() {}
}

// =============================================================================
// TEXT RENDERING
// =============================================================================

var (
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#40A02B", Dark: "#A6E3A1"}).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D20F39", Dark: "#F38BA8"})

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#A6ADC8"}).
			Italic(true)
)

// StreamingCursor is drawn after the text of a streaming bubble.
const StreamingCursor = "▍"

// Render draws the whole transcript for a viewport of the given width.
func (t *Transcript) Render(width int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.bubbles) == 0 {
		return welcomeStyle.Render(WelcomeText)
	}

	parts := make([]string, 0, len(t.bubbles))
	for _, b := range t.bubbles {
		parts = append(parts, renderBubble(b, width))
	}
	return strings.Join(parts, "\n\n")
}

func renderBubble(b *Bubble, width int) string {
	var sb strings.Builder
	if b.Role == model.RoleUser {
		sb.WriteString(userLabelStyle.Render(b.Role.DisplayName()))
		sb.WriteString("\n")
		text := b.Source
		if width > 0 {
			text = lipgloss.NewStyle().Width(width).Render(text)
		}
		sb.WriteString(text)
		return sb.String()
	}

	sb.WriteString(assistantLabelStyle.Render(b.Role.DisplayName()))
	sb.WriteString("\n")
	if body := b.Doc.View(width); body != "" {
		sb.WriteString(body)
	}
	if b.Streaming {
		sb.WriteString(StreamingCursor)
	}
	if b.Error != "" {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(b.Error))
	}
	return sb.String()
}
