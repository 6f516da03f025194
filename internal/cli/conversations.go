// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// LIST
// =============================================================================

// conversationSummary is the --json shape of one conversation.
type conversationSummary struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Preview   string    `json:"preview,omitempty"`
}

func summarizeConversations(convs []*model.Conversation, activeID string) []conversationSummary {
	out := make([]conversationSummary, len(convs))
	for i, c := range convs {
		out[i] = conversationSummary{
			Index:     i + 1,
			ID:        c.ID,
			Title:     c.DisplayTitle(),
			Messages:  c.MessageCount(),
			Active:    c.ID == activeID,
			UpdatedAt: c.UpdatedAt,
		}
		if last, ok := c.LastMessage(); ok {
			out[i].Preview = messagePreview(last)
		}
	}
	return out
}

// messagePreview is "<Role>: <first words>" on one line.
func messagePreview(m model.Message) string {
	return m.Role.DisplayName() + ": " + util.TruncateWidth(util.CollapseWhitespace(m.Content), 60)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				convs := app.Controller.Conversations()
				activeID := app.Controller.ActiveID()

				if opts.jsonOutput {
					return NewJSONResponse("list", summarizeConversations(convs, activeID)).PrintTo(cmd.OutOrStdout())
				}
				fmt.Fprint(cmd.OutOrStdout(), storage.FormatConversationList(convs, activeID))
				return nil
			})
		},
	}
}

// =============================================================================
// NEW / SWITCH
// =============================================================================

func newNewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new empty conversation and make it active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				conv, err := app.Controller.CreateConversation()
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return NewJSONResponse("new", map[string]string{"id": conv.ID}).PrintTo(cmd.OutOrStdout())
				}
				fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
				return nil
			})
		},
	}
}

func newSwitchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <number|id>",
		Short: "Make another conversation active",
		Long:  "Switch takes the number shown by \"rigchat list\", a conversation ID, or a unique ID prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				id, err := resolveConversation(app.Controller.Conversations(), args[0])
				if err != nil {
					return err
				}
				if err := app.Controller.SwitchConversation(id); err != nil {
					return err
				}
				conv := app.Controller.Active()
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", RenderConditional(SuccessStyle, "Active:"), conv.DisplayTitle())
				if last, ok := conv.LastMessage(); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", RenderConditional(DimStyle, messagePreview(last)))
				}
				return nil
			})
		},
	}
}

// =============================================================================
// EXPORT
// =============================================================================

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		outDir string
		stdout bool
		open   bool
	)
	cmd := &cobra.Command{
		Use:   "export [number|id]",
		Short: "Export a conversation to a file",
		Long: `Export writes the active conversation, or the one given, to a file named
chat-<title>.<ext> in the output directory. Formats: ` + strings.Join(export.Formats, ", ") + ".",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				if len(args) == 1 {
					id, err := resolveConversation(app.Controller.Conversations(), args[0])
					if err != nil {
						return err
					}
					if err := app.Controller.SwitchConversation(id); err != nil {
						return err
					}
				}
				if stdout {
					_, data, err := app.Controller.Export(format)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				path, err := exportActive(app.Controller, format, outDir, open)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write to stdout instead of a file")
	cmd.Flags().BoolVar(&open, "open", false, "open the file in the default application")
	return cmd
}

// =============================================================================
// RESET
// =============================================================================

func newResetCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all conversations and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !IsTTY() {
					return NewValidationError("confirmation", "", "pass --yes to reset without a terminal")
				}
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Erase every conversation and the stored API key?") {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			return withApp(opts, func(app *App) error {
				if err := app.Controller.FactoryReset(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), RenderConditional(SuccessStyle, "Session reset."))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// =============================================================================
// HELPERS
// =============================================================================

// withApp loads config, opens the session without printing anything and
// runs fn.
func withApp(opts *rootOptions, fn func(app *App) error) error {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return err
	}
	app, err := openApp(cfg, nopRenderer{}, opts.modelOverride())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// nopRenderer discards everything. Non-interactive commands use it.
type nopRenderer struct{}

func (nopRenderer) Reset([]model.Message)            {}
func (nopRenderer) RenderMessage(model.Role, string) {}
func (nopRenderer) BeginStreaming() string           { return "" }
func (nopRenderer) UpdateStreaming(string, string)   {}
func (nopRenderer) AnnotateError(string, error)      {}
func (nopRenderer) FinalizeStreaming(string)         {}
