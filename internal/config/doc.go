// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves rigchat's TOML configuration.
//
// The file lives at ~/.rigchat/config.toml (RIGCHAT_HOME moves the whole
// directory). Missing files are fine: built-in defaults apply, then
// environment overrides, then validation.
//
// Config only seeds the session: its values become the default
// model.Settings, and whatever the persisted session holds takes priority.
//
// # Environment Variables
//
//   - RIGCHAT_HOME: config directory (default ~/.rigchat)
//   - RIGCHAT_API_KEY, OPENROUTER_API_KEY: cloud.api_key
//   - RIGCHAT_MODEL: cloud.default_model
//   - RIGCHAT_BASE_URL: cloud.base_url
//   - RIGCHAT_STORAGE: storage.backend
//   - RIGCHAT_LOG_LEVEL: log.level
//
// # Usage
//
//	cfg, err := config.Load()
//	settings := cfg.DefaultSettings()
//	role, ok := cfg.FindRole("reviewer")
package config
