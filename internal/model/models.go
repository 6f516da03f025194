// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes an OpenRouter model. Entries come either from the
// built-in suggestions below or from the live /models listing.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable display name
	Name string `json:"name" yaml:"name"`

	// ContextLength is the maximum context window in tokens (0 if unknown)
	ContextLength int `json:"context_length,omitempty" yaml:"context_length,omitempty"`

	// Free is true for zero-priced ":free" variants
	Free bool `json:"free" yaml:"free"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ContextString formats the context window for display.
func (m ModelInfo) ContextString() string {
	switch {
	case m.ContextLength <= 0:
		return "?"
	case m.ContextLength >= 1000000:
		return fmt.Sprintf("%dM", m.ContextLength/1000000)
	case m.ContextLength >= 1000:
		return fmt.Sprintf("%dK", m.ContextLength/1000)
	default:
		return fmt.Sprintf("%d", m.ContextLength)
	}
}

// =============================================================================
// SUGGESTED MODELS
// =============================================================================

// Suggested maps short names to commonly used OpenRouter models. It backs
// short-name resolution and the offline model list.
var Suggested = map[string]ModelInfo{
	"deepseek-r1": {
		ID:            DefaultModel,
		Name:          "DeepSeek R1 (free)",
		ContextLength: 163840,
		Free:          true,
		Description:   "Reasoning model, free tier",
	},
	"deepseek-v3": {
		ID:            "deepseek/deepseek-chat-v3-0324:free",
		Name:          "DeepSeek V3 (free)",
		ContextLength: 163840,
		Free:          true,
		Description:   "General chat and code, free tier",
	},
	"llama": {
		ID:            "meta-llama/llama-3.3-70b-instruct:free",
		Name:          "Llama 3.3 70B (free)",
		ContextLength: 131072,
		Free:          true,
		Description:   "Meta's open model, free tier",
	},
	"qwen-coder": {
		ID:            "qwen/qwen-2.5-coder-32b-instruct:free",
		Name:          "Qwen 2.5 Coder 32B (free)",
		ContextLength: 32768,
		Free:          true,
		Description:   "Code-focused open model",
	},
	"sonnet": {
		ID:            "anthropic/claude-3.5-sonnet",
		Name:          "Claude 3.5 Sonnet",
		ContextLength: 200000,
		Description:   "Strong general and coding model",
	},
	"gpt-4o": {
		ID:            "openai/gpt-4o",
		Name:          "GPT-4o",
		ContextLength: 128000,
		Description:   "Fast multimodal model",
	},
	"gpt-4o-mini": {
		ID:            "openai/gpt-4o-mini",
		Name:          "GPT-4o Mini",
		ContextLength: 128000,
		Description:   "Cost-effective for simple tasks",
	},
}

// ResolveModel maps a short name to its full OpenRouter ID. Anything that
// is not a known short name is returned unchanged.
func ResolveModel(nameOrID string) string {
	if info, ok := Suggested[strings.ToLower(strings.TrimSpace(nameOrID))]; ok {
		return info.ID
	}
	return strings.TrimSpace(nameOrID)
}

// SuggestedModels returns the suggestions sorted by ID.
func SuggestedModels() []ModelInfo {
	out := make([]ModelInfo, 0, len(Suggested))
	for _, info := range Suggested {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SuggestedShortNames returns the sorted short names.
func SuggestedShortNames() []string {
	names := make([]string, 0, len(Suggested))
	for name := range Suggested {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
