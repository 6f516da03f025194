// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the line chat.
//
// Commands are registered with a handler by the front end that owns them;
// this package only parses input, looks commands up and completes them.
//
// # Key Types
//
//   - Registry: registered commands by name and alias
//   - Parser / ParseResult: split "/name args" and find the command
//   - Completer: tab completion for command names and argument values
//
// # Usage
//
//	res := parser.Parse(line)
//	if res.IsCommand && res.Command != nil {
//	    quit, err := res.Command.Handler(ctx, res.RawArgs)
//	}
//
//	completer.Lines("/sw") // ["/switch "]
package commands
