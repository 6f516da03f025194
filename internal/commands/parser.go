// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult contains the result of parsing user input.
type ParseResult struct {
	// IsCommand is true if the input starts with /
	IsCommand bool

	// Command is the matched command (nil if not found)
	Command *Command

	// CommandName is the lower-cased command name (e.g., "/help")
	CommandName string

	// Args are the whitespace-separated arguments
	Args []string

	// RawArgs is the argument text after the name, trimmed
	RawArgs string
}

// =============================================================================
// PARSER
// =============================================================================

// Parser handles parsing of slash commands.
type Parser struct {
	registry *Registry
}

// NewParser creates a new parser with the given registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse parses user input. IsCommand is false when the input doesn't
// start with /.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !IsCommand(input) {
		return ParseResult{}
	}

	name := ExtractCommandName(input)
	result := ParseResult{
		IsCommand:   true,
		CommandName: strings.ToLower(name),
		RawArgs:     strings.TrimSpace(input[len(name):]),
	}
	result.Args = strings.Fields(result.RawArgs)
	result.Command = p.registry.Get(result.CommandName)
	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// IsCommand returns true if the input appears to be a command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ExtractCommandName extracts just the command name from input.
// e.g., "/model deepseek-r1" -> "/model"
func ExtractCommandName(input string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return ""
	}
	end := strings.IndexFunc(input, unicode.IsSpace)
	if end == -1 {
		return input
	}
	return input[:end]
}
