// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for CLI commands.
//
// STANDARDIZED PATTERN:
//   - Commands return errors; they never print and return nil
//   - Execute displays the error once and maps it to an exit code
//
// ERROR HANDLING: Errors must not be silently ignored

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected API key
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "export")
	Action  string // Action being performed (e.g., "write")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validationErr *ValidationError
		configErrs    config.ValidateErrors
		configErr     config.ValidationError
		networkErr    *cloud.NetworkError
	)

	switch {
	case errors.As(err, &validationErr):
		return ExitUsageError
	case errors.As(err, &configErrs), errors.As(err, &configErr):
		return ExitConfigError
	case errors.Is(err, cloud.ErrMissingCredential), errors.Is(err, cloud.ErrAuthFailed):
		return ExitAuthError
	case errors.Is(err, session.ErrConversationNotFound), errors.Is(err, session.ErrUnknownRole),
		errors.Is(err, cloud.ErrModelNotFound):
		return ExitNotFoundError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &networkErr):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// DisplayError prints err to stderr, as JSON when jsonMode is set.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err).PrintTo(os.Stderr)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", RenderConditional(ErrorStyle, "Error:"), err)
	if errors.Is(err, cloud.ErrMissingCredential) {
		fmt.Fprintln(os.Stderr, RenderConditional(DimStyle,
			"Set OPENROUTER_API_KEY, or run: rigchat config set cloud.api_key <key>"))
	}
}
