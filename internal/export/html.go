// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
// SECURITY: goldmark runs without html.WithUnsafe, so raw HTML in a reply
// is dropped instead of embedded.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}
	title := html.EscapeString(conv.DisplayTitle())

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", title))
	sb.WriteString("    <meta name=\"generator\" content=\"rigchat\">\n")
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString("        <header class=\"header\">\n")
		sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", title))
		sb.WriteString("            <div class=\"metadata\">\n")
		if e.options.Model != "" {
			sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(e.options.Model)))
		}
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt)))
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(conv.Messages)))
		sb.WriteString("            </div>\n")
		sb.WriteString("        </header>\n")
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range conv.Messages {
		body, err := e.formatContent(msg)
		if err != nil {
			return nil, fmt.Errorf("render message: %w", err)
		}
		sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", html.EscapeString(string(msg.Role))))
		sb.WriteString(fmt.Sprintf("                <div class=\"role-label\">%s</div>\n", html.EscapeString(formatRoleLabel(msg.Role))))
		sb.WriteString("                <div class=\"message-content\">\n")
		sb.WriteString(body)
		sb.WriteString("                </div>\n")
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>rigchat</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// formatContent renders assistant markdown through goldmark. User text is
// never treated as markup.
func (e *HTMLExporter) formatContent(msg model.Message) (string, error) {
	if msg.Role != model.RoleAssistant {
		return "<p class=\"plain\">" + html.EscapeString(msg.Content) + "</p>\n", nil
	}
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(msg.Content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const htmlCSS = `    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
        .dark-theme { background: #1e1e2e; color: #cdd6f4; }
        .light-theme { background: #eff1f5; color: #4c4f69; }
        .container { max-width: 900px; margin: 0 auto; padding: 2rem 1rem; }
        .header { margin-bottom: 2rem; border-bottom: 1px solid #6c7086; padding-bottom: 1rem; }
        .metadata { display: flex; gap: 1.5rem; flex-wrap: wrap; font-size: 0.9rem; opacity: 0.8; }
        .message { margin-bottom: 1.5rem; padding: 1rem 1.25rem; border-radius: 12px; }
        .dark-theme .user-message { background: #313244; }
        .light-theme .user-message { background: #dce0e8; }
        .role-label { font-weight: 600; font-size: 0.85rem; margin-bottom: 0.5rem; opacity: 0.8; }
        .message-content p { margin-bottom: 0.75rem; }
        .plain { white-space: pre-wrap; }
        pre { padding: 1rem; border-radius: 8px; overflow-x: auto; margin: 0.75rem 0; }
        .dark-theme pre { background: #11111b; }
        .light-theme pre { background: #e6e9ef; }
        code { font-family: "JetBrains Mono", "Fira Code", Consolas, monospace; font-size: 0.9em; }
        .footer { margin-top: 3rem; text-align: center; font-size: 0.85rem; opacity: 0.6; }
    </style>
`
