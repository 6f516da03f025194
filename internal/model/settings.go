// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

const (
	// DefaultModel is the OpenRouter model used until the user picks one.
	DefaultModel = "deepseek/deepseek-r1:free"

	// DefaultSystemPrompt is sent ahead of every conversation by default.
	DefaultSystemPrompt = "You are a helpful, expert developer assistant."
)

// Settings holds the user-adjustable session options. The JSON keys match
// the legacy persisted shape so older blobs decode straight into it.
type Settings struct {
	APIKey       string `json:"apiKey"`
	Model        string `json:"model"`
	SystemPrompt string `json:"systemPrompt"`
	ActiveRoleID string `json:"activeRoleId,omitempty"`
	DarkMode     bool   `json:"darkMode"`
}

// DefaultSettings returns the built-in settings with no credential.
func DefaultSettings() Settings {
	return Settings{
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		DarkMode:     true,
	}
}

// HasCredential reports whether an API key is present.
func (s Settings) HasCredential() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// EffectiveModel returns Model, falling back to DefaultModel.
func (s Settings) EffectiveModel() string {
	if strings.TrimSpace(s.Model) == "" {
		return DefaultModel
	}
	return s.Model
}

// MaskedAPIKey returns the key with all but the last four characters hidden.
func (s Settings) MaskedAPIKey() string {
	key := strings.TrimSpace(s.APIKey)
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 8) + key[len(key)-4:]
}
