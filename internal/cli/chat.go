// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat for rigchat.
//
// USABILITY: liner gives line editing and persistent input history.
//
// Command: chat
// Short:   Start a line-oriented chat in the active conversation
//
// Interactive Commands (during chat):
//   /help               Show available commands
//   /new                Start a new conversation
//   /list               List conversations
//   /switch N|ID        Switch conversation
//   /role [ID]          Show roles or select one
//   /model [name]       Show or change the model
//   /key                Set the API key
//   /export [format]    Export the conversation to the working directory
//   /quit, /q           Exit chat
//   Tab                 Complete commands, role IDs, formats and models
//   Ctrl+C              Cancel the reply being streamed
//   Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/commands"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// historyFileName is the REPL input history inside the config directory.
const historyFileName = "chat_history"

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a line-oriented chat in the active conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader reads one line of input. ChatCLI implements it with liner.
type LineReader interface {
	ReadInput(prompt string) (string, error)
	ReadSecret(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads its history.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// ReadSecret reads a line without echo. It is never added to history.
func (c *ChatCLI) ReadSecret(prompt string) (string, error) {
	return c.line.PasswordPrompt(prompt)
}

// SetCompleter enables tab completion of slash commands.
func (c *ChatCLI) SetCompleter(completer *commands.Completer) {
	c.line.SetCompleter(completer.Lines)
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// chatREPL runs the read-submit loop against a controller.
type chatREPL struct {
	ctrl    *session.Controller
	input   LineReader
	out     io.Writer
	errOut  io.Writer
	workDir string

	registry  *commands.Registry
	parser    *commands.Parser
	completer *commands.Completer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// newChatREPL wires a REPL and its slash commands.
func newChatREPL(ctrl *session.Controller, input LineReader, out, errOut io.Writer, workDir string) *chatREPL {
	r := &chatREPL{
		ctrl:    ctrl,
		input:   input,
		out:     out,
		errOut:  errOut,
		workDir: workDir,
	}
	r.registerCommands()
	return r
}

func runChat(cmd *cobra.Command, opts *rootOptions) error {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := GetTerminalWidth()
	printer := transcript.NewPrinter(out, newPipeline(cfg, ColorsEnabled(), width), width)

	app, err := openApp(cfg, printer, opts.modelOverride())
	if err != nil {
		return err
	}
	defer app.Close()

	historyFile := ""
	if dir, err := config.Dir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
	}
	input := NewChatCLI(historyFile)
	defer input.Close()

	repl := newChatREPL(app.Controller, input, out, cmd.ErrOrStderr(), ".")
	input.SetCompleter(repl.completer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if repl.cancelCurrent() {
				fmt.Fprintln(repl.errOut, "\n"+RenderConditional(WarningStyle, "[Cancelled]"))
			}
		}
	}()

	return repl.run(cmd.Context())
}

// run reads lines until EOF, Ctrl+C at the prompt, or /quit.
func (r *chatREPL) run(ctx context.Context) error {
	settings := r.ctrl.Settings()
	fmt.Fprintln(r.out, RenderConditional(DimStyle,
		fmt.Sprintf("Model %s. Type /help for commands, /quit to exit.", settings.EffectiveModel())))

	for {
		line, err := r.input.ReadInput(RenderConditional(PromptStyle, "you> "))
		if err != nil {
			// Ctrl+C at the prompt (liner.ErrPromptAborted) or EOF
			fmt.Fprintln(r.out)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}

		if strings.HasPrefix(line, "/") {
			cont, err := r.handleSlash(ctx, line)
			if err != nil {
				fmt.Fprintf(r.errOut, "%s %v\n", RenderConditional(ErrorStyle, "[Error]"), err)
			}
			if !cont {
				return nil
			}
			continue
		}

		if err := r.send(ctx, line); err != nil {
			fmt.Fprintf(r.errOut, "%s %v\n", RenderConditional(ErrorStyle, "[Error]"), err)
		}
	}
}

// send submits text. A missing key prompts for one and retries once.
// Stream failures are already shown inline by the printer.
func (r *chatREPL) send(ctx context.Context, text string) error {
	err := r.submit(ctx, text)
	if errors.Is(err, session.ErrMissingCredential) {
		fmt.Fprintln(r.errOut, RenderConditional(WarningStyle, "An OpenRouter API key is required."))
		if kerr := r.promptKey(); kerr != nil {
			return kerr
		}
		err = r.submit(ctx, text)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrMissingCredential), errors.Is(err, session.ErrBusy):
		return err
	default:
		return nil
	}
}

func (r *chatREPL) submit(ctx context.Context, text string) error {
	reqCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()
	return r.ctrl.Submit(reqCtx, text)
}

// cancelCurrent aborts the reply in flight. It reports whether one was.
func (r *chatREPL) cancelCurrent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// promptKey asks for an API key without echo and stores it.
func (r *chatREPL) promptKey() error {
	key, err := r.input.ReadSecret("API key: ")
	if err != nil {
		return fmt.Errorf("no API key entered: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return NewValidationError("API key", "", "must not be empty")
	}
	settings := r.ctrl.Settings()
	settings.APIKey = key
	if err := r.ctrl.UpdateSettings(settings); err != nil {
		return err
	}
	fmt.Fprintln(r.out, RenderConditional(SuccessStyle, "API key saved."))
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// registerCommands builds the slash command table for r.
func (r *chatREPL) registerCommands() {
	reg := commands.NewRegistry()
	reg.Register(&commands.Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "show commands",
		Handler: func(ctx context.Context, args string) (bool, error) {
			r.printHelp()
			return true, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "exit",
		Handler: func(ctx context.Context, args string) (bool, error) {
			return false, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/new",
		Description: "start a new conversation",
		Handler:     r.cmdNew,
	})
	reg.Register(&commands.Command{
		Name:        "/list",
		Aliases:     []string{"/ls"},
		Description: "list conversations",
		Handler: func(ctx context.Context, args string) (bool, error) {
			fmt.Fprint(r.out, storage.FormatConversationList(r.ctrl.Conversations(), r.ctrl.ActiveID()))
			return true, nil
		},
	})
	reg.Register(&commands.Command{
		Name:        "/switch",
		Aliases:     []string{"/s"},
		Description: "switch conversation",
		Usage:       "/switch N|ID",
		Arg:         &commands.ArgDef{Name: "conversation", ValuesFn: r.conversationNumbers},
		Handler:     r.cmdSwitch,
	})
	reg.Register(&commands.Command{
		Name:        "/role",
		Description: "show roles or select one",
		Usage:       "/role [ID]",
		Arg: &commands.ArgDef{Name: "id", ValuesFn: func() []string {
			var ids []string
			for _, role := range r.ctrl.Roles() {
				ids = append(ids, role.ID)
			}
			return ids
		}},
		Handler: r.cmdRole,
	})
	reg.Register(&commands.Command{
		Name:        "/model",
		Description: "show or change the model",
		Usage:       "/model [name]",
		Arg:         &commands.ArgDef{Name: "name", ValuesFn: model.SuggestedShortNames},
		Handler:     r.cmdModel,
	})
	reg.Register(&commands.Command{
		Name:        "/key",
		Description: "set the API key",
		Handler: func(ctx context.Context, args string) (bool, error) {
			return true, r.promptKey()
		},
	})
	reg.Register(&commands.Command{
		Name:        "/export",
		Description: "export (" + strings.Join(export.Formats, ", ") + ")",
		Usage:       "/export [format]",
		Arg:         &commands.ArgDef{Name: "format", Values: export.Formats},
		Handler:     r.cmdExport,
	})

	r.registry = reg
	r.parser = commands.NewParser(reg)
	r.completer = commands.NewCompleter(reg)
}

// handleSlash runs one slash command. It returns false to end the REPL.
func (r *chatREPL) handleSlash(ctx context.Context, line string) (bool, error) {
	res := r.parser.Parse(line)
	if res.Command == nil {
		return true, NewValidationError("command", res.CommandName, "unknown command, try /help")
	}
	return res.Command.Handler(ctx, res.RawArgs)
}

func (r *chatREPL) cmdNew(ctx context.Context, args string) (bool, error) {
	conv, err := r.ctrl.CreateConversation()
	if err != nil {
		return true, err
	}
	fmt.Fprintln(r.out, RenderConditional(SuccessStyle, "Started conversation "+conv.ID))
	return true, nil
}

func (r *chatREPL) cmdSwitch(ctx context.Context, args string) (bool, error) {
	if args == "" {
		return true, NewValidationError("conversation", "", "give a number from /list or an ID")
	}
	id, err := resolveConversation(r.ctrl.Conversations(), args)
	if err != nil {
		return true, err
	}
	return true, r.ctrl.SwitchConversation(id)
}

func (r *chatREPL) cmdRole(ctx context.Context, args string) (bool, error) {
	if args == "" {
		printRoles(r.out, r.ctrl.Roles(), r.ctrl.Settings().ActiveRoleID)
		return true, nil
	}
	role, err := r.ctrl.SelectRole(args)
	if err != nil {
		return true, err
	}
	fmt.Fprintln(r.out, RenderConditional(SuccessStyle, "Role: "+role.Name))
	return true, nil
}

func (r *chatREPL) cmdModel(ctx context.Context, args string) (bool, error) {
	settings := r.ctrl.Settings()
	if args == "" {
		fmt.Fprintln(r.out, settings.EffectiveModel())
		return true, nil
	}
	settings.Model = model.ResolveModel(args)
	if err := r.ctrl.UpdateSettings(settings); err != nil {
		return true, err
	}
	fmt.Fprintln(r.out, RenderConditional(SuccessStyle, "Model: "+settings.Model))
	return true, nil
}

func (r *chatREPL) cmdExport(ctx context.Context, args string) (bool, error) {
	path, err := exportActive(r.ctrl, args, r.workDir, false)
	if err != nil {
		return true, err
	}
	fmt.Fprintln(r.out, RenderConditional(SuccessStyle, "Exported to "+path))
	return true, nil
}

// conversationNumbers returns "1".."n" for the current list.
func (r *chatREPL) conversationNumbers() []string {
	n := len(r.ctrl.Conversations())
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func (r *chatREPL) printHelp() {
	for _, cmd := range r.registry.All() {
		fmt.Fprintf(r.out, "  %-18s %s\n", cmd.HelpUsage(), RenderConditional(DimStyle, cmd.Description))
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// resolveConversation maps a 1-based list number or an ID (or unique ID
// prefix) to a conversation ID.
func resolveConversation(convs []*model.Conversation, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return "", fmt.Errorf("%w: #%d (have %d)", session.ErrConversationNotFound, n, len(convs))
		}
		return convs[n-1].ID, nil
	}

	var match string
	for _, c := range convs {
		if c.ID == ref {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match != "" {
				return "", NewValidationError("conversation", ref, "ambiguous ID prefix")
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", session.ErrConversationNotFound, ref)
	}
	return match, nil
}

// exportActive writes the active conversation into dir and returns the path.
func exportActive(ctrl *session.Controller, format, dir string, open bool) (string, error) {
	path, err := ctrl.ExportToFile(format, dir, open)
	if errors.Is(err, export.ErrUnknownFormat) {
		return "", err
	}
	if err != nil {
		return "", NewCommandError("export", "write", dir, err)
	}
	return path, nil
}
