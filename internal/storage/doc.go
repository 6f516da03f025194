// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the rigchat session state.
//
// State is kept as one JSON blob under a single key in a key/value backend.
// Three backends ship: a directory of files, a SQLite table and an
// in-memory map for tests and throwaway sessions.
//
// # Key Types
//
//   - KV: the backend contract (Get, Set, Delete, Close)
//   - FileKV, SQLiteKV, MemoryKV: backend implementations
//   - SessionStore: encodes model.State into the blob and back
//   - CorruptStateError: returned when a stored blob cannot be decoded
//
// # Usage
//
//	kv, err := storage.Open("sqlite", "/home/me/.rigchat/session.db")
//	store := storage.NewSessionStore(kv, model.DefaultSettings())
//	st, err := store.Load() // st is usable even when err != nil
//	err = store.Save(st)
//
// Blobs written by the original browser client (top-level apiKey, model,
// chats, currentChatId) are still readable; saves always use the current
// versioned envelope.
package storage
