// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// Role is a named system prompt the user can switch to.
type Role struct {
	ID     string `toml:"id" json:"id"`
	Name   string `toml:"name" json:"name"`
	Prompt string `toml:"prompt" json:"prompt"`
}

// builtinRoles ship with rigchat. Config roles with the same ID replace them.
var builtinRoles = []Role{
	{
		ID:     "developer",
		Name:   "Developer",
		Prompt: model.DefaultSystemPrompt,
	},
	{
		ID:     "reviewer",
		Name:   "Code Reviewer",
		Prompt: "You are a meticulous code reviewer. Point out bugs, unclear naming and missing tests. Quote the lines you are discussing.",
	},
	{
		ID:     "teacher",
		Name:   "Teacher",
		Prompt: "You are a patient programming teacher. Explain concepts step by step with short examples, and check understanding before moving on.",
	},
	{
		ID:     "writer",
		Name:   "Technical Writer",
		Prompt: "You are a technical writer. Produce clear, concise documentation in Markdown with headings and code samples where useful.",
	},
}

// BuiltinRoles returns a copy of the built-in role catalogue.
func BuiltinRoles() []Role {
	out := make([]Role, len(builtinRoles))
	copy(out, builtinRoles)
	return out
}

// AllRoles returns the built-ins merged with config roles. A config role
// replaces a built-in with the same ID; new IDs follow in file order.
func (c *Config) AllRoles() []Role {
	out := BuiltinRoles()
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range c.Roles {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			continue
		}
		r.ID = id
		if r.Name == "" {
			r.Name = id
		}
		if i, ok := index[id]; ok {
			out[i] = r
			continue
		}
		index[id] = len(out)
		out = append(out, r)
	}
	return out
}

// FindRole looks a role up by ID, case-insensitively.
func (c *Config) FindRole(id string) (Role, bool) {
	id = strings.TrimSpace(id)
	for _, r := range c.AllRoles() {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return Role{}, false
}

// RoleIDs returns the sorted IDs of every available role.
func (c *Config) RoleIDs() []string {
	roles := c.AllRoles()
	ids := make([]string, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	sort.Strings(ids)
	return ids
}

func validateRoles(roles []Role) ValidateErrors {
	var errs ValidateErrors
	seen := make(map[string]bool, len(roles))
	for i, r := range roles {
		field := fmt.Sprintf("roles[%d]", i)
		id := strings.ToLower(strings.TrimSpace(r.ID))
		switch {
		case id == "":
			errs = append(errs, ValidationError{Field: field + ".id", Message: "must not be empty"})
		case strings.ContainsAny(id, " \t\n"):
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("'%s' must not contain whitespace", r.ID)})
		case seen[id]:
			errs = append(errs, ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate role '%s'", r.ID)})
		}
		seen[id] = true
		if strings.TrimSpace(r.Prompt) == "" {
			errs = append(errs, ValidationError{Field: field + ".prompt", Message: "must not be empty"})
		}
	}
	return errs
}
