// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Examples:
//   rigchat ask "What is a goroutine?"
//   cat main.go | rigchat ask "Review this code"
//   rigchat ask --continue "And in Rust?"

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// maxStdinBytes bounds how much piped input ask reads.
const maxStdinBytes = 1 << 20

type askOptions struct {
	continueActive bool
	role           string
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	ao := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask one question and stream the answer to stdout",
		Long: `Ask sends one question in a new conversation and streams the answer.

Piped stdin is appended to the question, so files can be passed in directly.
With --continue the question goes to the active conversation instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question, err := buildQuestion(args, cmd.InOrStdin(), !IsTTY())
			if err != nil {
				return err
			}
			return runAsk(cmd, opts, ao, question)
		},
	}
	cmd.Flags().BoolVar(&ao.continueActive, "continue", false, "ask in the active conversation")
	cmd.Flags().StringVarP(&ao.role, "role", "r", "", "role to answer as")
	return cmd
}

// buildQuestion joins the arguments and, when piped, the stdin contents.
func buildQuestion(args []string, stdin io.Reader, piped bool) (string, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if piped && stdin != nil {
		data, err := io.ReadAll(io.LimitReader(stdin, maxStdinBytes))
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if extra := strings.TrimSpace(string(data)); extra != "" {
			if question == "" {
				question = extra
			} else {
				question += "\n\n" + extra
			}
		}
	}
	if question == "" {
		return "", NewValidationError("question", "", "nothing to ask")
	}
	return question, nil
}

func runAsk(cmd *cobra.Command, opts *rootOptions, ao *askOptions, question string) error {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	width := GetTerminalWidth()
	printer := transcript.NewPrinter(out, newPipeline(cfg, false, width), width)
	printer.Quiet = true

	app, err := openApp(cfg, printer, opts.modelOverride())
	if err != nil {
		return err
	}
	defer app.Close()

	if ao.role != "" {
		if _, err := app.Controller.SelectRole(ao.role); err != nil {
			return err
		}
	}
	if !ao.continueActive {
		if _, err := app.Controller.CreateConversation(); err != nil {
			return err
		}
	}

	err = app.Controller.Submit(cmd.Context(), question)
	if err != nil && !errors.Is(err, session.ErrMissingCredential) {
		// The printer has already shown the failure inline.
		return NewCommandError("ask", "stream", "reply failed", err)
	}
	return err
}
