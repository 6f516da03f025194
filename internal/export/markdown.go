// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontMatter is the YAML header of a Markdown export.
type frontMatter struct {
	Title     string `yaml:"title"`
	Model     string `yaml:"model,omitempty"`
	Date      string `yaml:"date,omitempty"`
	Updated   string `yaml:"updated,omitempty"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a conversation to Markdown format. Message content is
// already markdown and is written as is.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}

	var sb strings.Builder
	title := conv.DisplayTitle()

	if e.options.IncludeMetadata {
		fm := frontMatter{
			Title:     title,
			Model:     e.options.Model,
			Messages:  len(conv.Messages),
			Exported:  time.Now().Format(time.RFC3339),
			Generator: "rigchat",
		}
		if !conv.CreatedAt.IsZero() {
			fm.Date = conv.CreatedAt.Format(time.RFC3339)
		}
		if !conv.UpdatedAt.IsZero() {
			fm.Updated = conv.UpdatedAt.Format(time.RFC3339)
		}
		header, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("encode front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	if len(conv.Messages) == 0 {
		sb.WriteString("*No messages yet.*\n")
		return []byte(sb.String()), nil
	}

	for i, msg := range conv.Messages {
		sb.WriteString(fmt.Sprintf("### %s\n\n", formatRoleLabel(msg.Role)))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from rigchat on %s*\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatRoleLabel returns a heading label for the message role.
func formatRoleLabel(role model.Role) string {
	if role == "" {
		return "Unknown"
	}
	return role.DisplayName()
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
