// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"sort"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler runs a command with its raw argument text. It returns false to
// end the chat.
type Handler func(ctx context.Context, args string) (bool, error)

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/model <name>")
	Usage string

	// Arg describes the first argument for completion. Nil means none.
	Arg *ArgDef

	// Handler executes the command
	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool
}

// ArgDef describes the values an argument may take.
type ArgDef struct {
	// Name of the argument
	Name string

	// Values for fixed choices
	Values []string

	// ValuesFn supplies choices that change at runtime (role IDs,
	// conversation numbers). It wins over Values when set.
	ValuesFn func() []string
}

// Choices returns the current candidate values.
func (a *ArgDef) Choices() []string {
	if a == nil {
		return nil
	}
	if a.ValuesFn != nil {
		return a.ValuesFn()
	}
	return a.Values
}

// HelpUsage returns Usage, or Name when no usage is set.
func (c *Command) HelpUsage() string {
	if c.Usage != "" {
		return c.Usage
	}
	return c.Name
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
}

// Register adds a command to the registry. A later command with the same
// name replaces the earlier one.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns the visible commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if cmd.Hidden {
			continue
		}
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}
