// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Submit while a reply is still streaming.
	ErrBusy = errors.New("a response is already in progress")

	// ErrConversationNotFound is returned for an unknown conversation ID.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrUnknownRole is returned by SelectRole for an unknown role ID.
	ErrUnknownRole = errors.New("unknown role")

	// ErrMissingCredential is returned by Submit when no API key is set.
	ErrMissingCredential = cloud.ErrMissingCredential
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Store persists the whole session state.
type Store interface {
	Load() (*model.State, error)
	Save(st *model.State) error
	Reset() error
	Defaults() model.Settings
}

// Completer starts a streaming completion for a conversation history.
type Completer interface {
	SendConversation(ctx context.Context, settings model.Settings, history []model.Message) (*cloud.Stream, error)
}

// Renderer shows the active conversation.
type Renderer interface {
	// Reset clears the view and shows messages, or a welcome placeholder
	// when there are none.
	Reset(messages []model.Message)

	// RenderMessage appends a finished message.
	RenderMessage(role model.Role, content string)

	// BeginStreaming appends an empty reply and returns its handle.
	BeginStreaming() string

	// UpdateStreaming replaces the reply's content with accumulated.
	UpdateStreaming(handle, accumulated string)

	// AnnotateError marks the reply as failed.
	AnnotateError(handle string, err error)

	// FinalizeStreaming marks the reply as complete.
	FinalizeStreaming(handle string)
}

// Phase is the controller's request state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingResponse
	PhaseErrored
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingResponse:
		return "awaiting_response"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Options configures a Controller.
type Options struct {
	Store     Store
	Completer Completer
	Renderer  Renderer

	// Roles is the catalogue SelectRole picks from.
	Roles []config.Role
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller coordinates the session. All methods are safe for concurrent
// use; network I/O runs without the lock held.
type Controller struct {
	mu        sync.Mutex
	store     Store
	completer Completer
	renderer  Renderer
	roles     []config.Role

	state   *model.State
	phase   Phase
	lastErr error
	loadErr error

	// turn is the reply in flight, nil when idle.
	turn *turn
}

// turn tracks a streaming reply so a rebuilt view can show it again.
type turn struct {
	convID string
	// handle is the renderer's bubble, empty while the conversation is
	// not on screen.
	handle string
	text   string
}

// NewController creates a controller. Init must be called before use.
func NewController(opts Options) *Controller {
	return &Controller{
		store:     opts.Store,
		completer: opts.Completer,
		renderer:  opts.Renderer,
		roles:     opts.Roles,
		state:     model.NewState(opts.Store.Defaults()),
	}
}

// Init loads the stored session, makes sure a conversation is active and
// renders it. Load problems are not fatal: defaults are used and the
// problem is available from LoadError. A corrupt blob is backed up by the
// store before defaults replace it; an unreadable one is left untouched.
func (c *Controller) Init() error {
	log := logging.For("session")

	st, err := c.store.Load()
	if st == nil {
		st = model.NewState(c.store.Defaults())
	}
	var corrupt *storage.CorruptStateError
	switch {
	case errors.As(err, &corrupt):
		log.Warn("stored session was corrupt, starting fresh", "err", corrupt.Err, "backup", corrupt.Backup)
	case err != nil:
		log.Error("stored session unreadable, starting fresh", "err", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadErr = err
	c.state = st
	changed := st.EnsureActive()
	if (err == nil && changed) || corrupt != nil {
		if err := c.saveLocked(); err != nil {
			log.Warn("failed to write initial session", "err", err)
		}
	}

	log.Info("session ready",
		"conversations", len(c.state.Conversations),
		"active", c.state.ActiveID,
		"model", c.state.Settings.EffectiveModel(),
		"credential", c.state.Settings.HasCredential())

	c.renderer.Reset(c.state.Active().History())
	return nil
}

// LoadError returns the problem found while loading, if any.
func (c *Controller) LoadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit sends text as a user message and streams the reply. It blocks
// until the reply ends. Blank text is ignored.
//
// The reply is stored only when the stream ends cleanly. Cancelling ctx
// aborts the stream, which is reported like any other failure.
func (c *Controller) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	log := logging.For("session")

	c.mu.Lock()
	if c.phase == PhaseAwaitingResponse {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.state.Settings.HasCredential() {
		c.mu.Unlock()
		return ErrMissingCredential
	}

	conv := c.state.Active()
	conv.Append(model.NewUserMessage(text))
	if err := c.saveLocked(); err != nil {
		log.Warn("failed to persist user message", "err", err)
	}

	settings := c.state.Settings
	history := conv.History()
	c.phase = PhaseAwaitingResponse
	c.lastErr = nil

	c.renderer.RenderMessage(model.RoleUser, text)
	c.turn = &turn{convID: conv.ID, handle: c.renderer.BeginStreaming()}
	c.mu.Unlock()

	start := time.Now()
	reply, err := c.stream(ctx, settings, history)

	c.mu.Lock()
	defer c.mu.Unlock()

	handle := c.turn.handle
	c.turn = nil

	if err != nil {
		log.Warn("completion failed", "conversation", conv.ID, "err", err, "partial_len", len(reply))
		if handle != "" {
			c.renderer.AnnotateError(handle, err)
			c.renderer.FinalizeStreaming(handle)
		}
		c.phase = PhaseErrored
		c.lastErr = err
		return err
	}

	if handle != "" {
		c.renderer.FinalizeStreaming(handle)
	}
	conv.Append(model.NewAssistantMessage(reply))
	c.phase = PhaseIdle

	log.Info("completion finished", "conversation", conv.ID, "chars", len(reply), "duration", time.Since(start))
	if err := c.saveLocked(); err != nil {
		log.Warn("failed to persist reply", "err", err)
		return err
	}
	return nil
}

// stream runs the completion and feeds the renderer. It is called without
// the lock held; each fragment takes it briefly to update the turn.
func (c *Controller) stream(ctx context.Context, settings model.Settings, history []model.Message) (string, error) {
	s, err := c.completer.SendConversation(ctx, settings, history)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var acc strings.Builder
	for s.Next() {
		acc.WriteString(s.Fragment())
		c.mu.Lock()
		c.turn.text = acc.String()
		if c.turn.handle != "" {
			c.renderer.UpdateStreaming(c.turn.handle, c.turn.text)
		}
		c.mu.Unlock()
	}
	log := logging.For("session")
	if dropped := s.Dropped(); dropped > 0 {
		log.Debug("skipped malformed stream lines", "count", dropped)
	}
	if s.FinishReason() == "length" {
		log.Warn("reply cut off at the model's output limit", "model", settings.EffectiveModel())
	}
	return acc.String(), s.Err()
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation starts a new empty conversation and makes it active.
func (c *Controller) CreateConversation() (*model.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := model.NewConversation()
	c.state.Prepend(conv)
	c.showLocked(conv)
	if err := c.saveLocked(); err != nil {
		return conv.Clone(), err
	}
	return conv.Clone(), nil
}

// SwitchConversation makes the conversation with id active and redraws it.
func (c *Controller) SwitchConversation(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.state.Find(id)
	if conv == nil {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	c.state.ActiveID = conv.ID
	c.showLocked(conv)
	return c.saveLocked()
}

// SwitchRelative moves the active conversation by delta positions in the
// list, wrapping around. It returns the newly active ID.
func (c *Controller) SwitchRelative(delta int) (string, error) {
	c.mu.Lock()
	n := len(c.state.Conversations)
	idx := 0
	for i, conv := range c.state.Conversations {
		if conv.ID == c.state.ActiveID {
			idx = i
			break
		}
	}
	target := c.state.Conversations[((idx+delta)%n+n)%n].ID
	c.mu.Unlock()

	return target, c.SwitchConversation(target)
}

// Conversations returns copies of every conversation, most recent first.
func (c *Controller) Conversations() []*model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Conversation, len(c.state.Conversations))
	for i, conv := range c.state.Conversations {
		out[i] = conv.Clone()
	}
	return out
}

// Active returns a copy of the active conversation.
func (c *Controller) Active() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Active().Clone()
}

// ActiveID returns the active conversation ID.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveID
}

// showLocked rebuilds the view from conv. When conv has the reply in
// flight, a new streaming bubble picks up the text received so far.
func (c *Controller) showLocked(conv *model.Conversation) {
	c.renderer.Reset(conv.History())
	if c.turn == nil {
		return
	}
	c.turn.handle = ""
	if conv.ID != c.turn.convID {
		return
	}
	c.turn.handle = c.renderer.BeginStreaming()
	if c.turn.text != "" {
		c.renderer.UpdateStreaming(c.turn.handle, c.turn.text)
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings returns the current settings.
func (c *Controller) Settings() model.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Settings
}

// UpdateSettings replaces the settings wholesale and persists them. A
// reply already streaming keeps the settings it started with.
func (c *Controller) UpdateSettings(s model.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.APIKey = strings.TrimSpace(s.APIKey)
	c.state.Settings = s
	return c.saveLocked()
}

// Roles returns the role catalogue.
func (c *Controller) Roles() []config.Role {
	out := make([]config.Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// SelectRole makes the role's prompt the system prompt.
func (c *Controller) SelectRole(id string) (config.Role, error) {
	var role config.Role
	found := false
	for _, r := range c.roles {
		if strings.EqualFold(r.ID, strings.TrimSpace(id)) {
			role, found = r, true
			break
		}
	}
	if !found {
		return config.Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Settings.ActiveRoleID = role.ID
	c.state.Settings.SystemPrompt = role.Prompt
	return role, c.saveLocked()
}

// CycleRole selects the role after the active one, wrapping around.
func (c *Controller) CycleRole() (config.Role, error) {
	if len(c.roles) == 0 {
		return config.Role{}, ErrUnknownRole
	}
	current := c.Settings().ActiveRoleID
	next := 0
	for i, r := range c.roles {
		if r.ID == current {
			next = (i + 1) % len(c.roles)
			break
		}
	}
	return c.SelectRole(c.roles[next].ID)
}

// =============================================================================
// STATUS
// =============================================================================

// Phase returns the request state.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastError returns the error of the last failed reply, cleared by the next
// Submit.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// =============================================================================
// EXPORT AND RESET
// =============================================================================

// Export serializes the active conversation. It returns the suggested file
// name and the content.
func (c *Controller) Export(format string) (string, []byte, error) {
	conv, exp, err := c.prepareExport(format, &export.Options{})
	if err != nil {
		return "", nil, err
	}
	data, err := exp.Export(conv)
	if err != nil {
		return "", nil, err
	}
	return export.FileName(conv, exp), data, nil
}

// ExportToFile writes the active conversation into dir and returns the
// path. With open set the file is then handed to the desktop's default
// application.
func (c *Controller) ExportToFile(format, dir string, open bool) (string, error) {
	opts := &export.Options{OutputDir: dir, OpenAfterExport: open}
	conv, exp, err := c.prepareExport(format, opts)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(conv, exp, opts)
}

func (c *Controller) prepareExport(format string, opts *export.Options) (*model.Conversation, export.Exporter, error) {
	c.mu.Lock()
	conv := c.state.Active().Clone()
	opts.Model = c.state.Settings.EffectiveModel()
	c.mu.Unlock()

	opts.IncludeMetadata = true
	opts.Theme = "dark"
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return nil, nil, err
	}
	return conv, exp, nil
}

// FactoryReset erases everything stored and starts over from defaults.
func (c *Controller) FactoryReset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseAwaitingResponse {
		return ErrBusy
	}
	if err := c.store.Reset(); err != nil {
		return err
	}

	c.state = model.NewState(c.store.Defaults())
	c.state.EnsureActive()
	c.phase = PhaseIdle
	c.lastErr = nil
	c.renderer.Reset(nil)
	logging.For("session").Info("factory reset")
	return c.saveLocked()
}

func (c *Controller) saveLocked() error {
	if err := c.store.Save(c.state); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}
