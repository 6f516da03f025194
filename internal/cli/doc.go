// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigchat command line with cobra.
//
// With no subcommand rigchat opens the full-screen TUI on a terminal and
// falls back to the line-oriented chat otherwise. Every other command
// opens the same persisted session, does one thing and exits:
//
//	rigchat ask "question"     one-shot answer on stdout
//	rigchat chat               line-oriented chat
//	rigchat list | new | switch N
//	rigchat export [-f format] [-o dir]
//	rigchat roles [id]
//	rigchat models [--remote] [--free]
//	rigchat config show | get | set | keys | path | edit
//	rigchat reset --yes
//
// Exit codes follow GetExitCode; --json switches output and errors to a
// JSONResponse envelope.
package cli
