// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"strings"
)

// =============================================================================
// COMPLETION TYPES
// =============================================================================

// Completion is one candidate for the word being typed.
type Completion struct {
	// Value replaces the partial word
	Value string

	// Description is shown next to command candidates
	Description string

	// Score ranks candidates, higher first
	Score int
}

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns candidates for the last word of input. Only the
// command name and its first argument are completed.
func (c *Completer) Complete(input string) []Completion {
	if !IsCommand(input) {
		return nil
	}
	input = strings.TrimLeft(input, " \t")

	name := ExtractCommandName(input)
	if name == input {
		return c.completeCommands(name)
	}

	cmd := c.registry.Get(strings.ToLower(name))
	if cmd == nil || cmd.Arg == nil {
		return nil
	}
	rest := strings.TrimLeft(input[len(name):], " \t")
	if strings.ContainsAny(rest, " \t") {
		return nil
	}
	return completeFromList(cmd.Arg.Choices(), rest)
}

// Lines returns whole-line candidates, the shape line editors expect.
// A completed command name ends with a space when it takes an argument.
func (c *Completer) Lines(input string) []string {
	completions := c.Complete(input)
	if len(completions) == 0 {
		return nil
	}

	trimmed := strings.TrimLeft(input, " \t")
	name := ExtractCommandName(trimmed)
	out := make([]string, 0, len(completions))
	for _, comp := range completions {
		if name == trimmed {
			line := comp.Value
			if cmd := c.registry.Get(comp.Value); cmd != nil && cmd.Arg != nil {
				line += " "
			}
			out = append(out, line)
			continue
		}
		out = append(out, name+" "+comp.Value)
	}
	return out
}

// completeCommands matches command names, not aliases.
func (c *Completer) completeCommands(partial string) []Completion {
	partial = strings.ToLower(partial)
	var completions []Completion
	for _, cmd := range c.registry.All() {
		if strings.HasPrefix(cmd.Name, partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// completeFromList returns completions from a list of strings.
func completeFromList(values []string, partial string) []Completion {
	var completions []Completion
	lower := strings.ToLower(partial)
	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), lower) {
			completions = append(completions, Completion{
				Value: value,
				Score: calculateScore(value, partial),
			})
		}
	}
	sortCompletions(completions)
	return completions
}

// =============================================================================
// RANKING
// =============================================================================

// calculateScore ranks a prefix match. Higher score = better match.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100
	if value == partial {
		return score + 100
	}
	if strings.HasPrefix(value, partial) {
		score += 50
		// Bonus for shorter completions
		score += 20 - len(value)
	}
	score -= len(value) / 2
	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}
