// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

var (
	// ErrNilConversation is returned when there is nothing to export.
	ErrNilConversation = errors.New("conversation is nil")
	ErrUnknownFormat   = errors.New("unsupported export format")
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool

	// IncludeMetadata adds a header with title, model and dates
	// (markdown and html only).
	IncludeMetadata bool

	// Model is recorded in the metadata header.
	Model string

	// Theme for HTML export ("light" or "dark").
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		Theme:           "dark",
	}
}

// =============================================================================
// FORMAT LOOKUP
// =============================================================================

// Formats lists the accepted format names.
var Formats = []string{"text", "markdown", "json", "yaml", "html"}

// ForFormat returns the exporter for a format name. An empty name means
// plain text.
func ForFormat(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text", "txt":
		return NewTextExporter(), nil
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	case "yaml", "yml":
		return NewYAMLExporter(), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s (use one of %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// =============================================================================
// FILE NAMING
// =============================================================================

var whitespaceRun = regexp.MustCompile(`\s+`)

// FileName returns "chat-<title>" plus the exporter's extension. Whitespace
// runs in the title become underscores; an empty title falls back to the ID.
func FileName(conv *model.Conversation, exp Exporter) string {
	base := strings.TrimSpace(conv.Title)
	if base == "" {
		base = conv.ID
	}
	base = whitespaceRun.ReplaceAllString(base, "_")
	return "chat-" + sanitizeFilename(base) + exp.FileExtension()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports a conversation into opts.OutputDir and returns the
// written path.
func ExportToFile(conv *model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if conv == nil {
		return "", ErrNilConversation
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}

	// Missing output directories are created world-readable, like the file.
	outputPath := filepath.Join(dir, FileName(conv, exporter))
	if err := util.AtomicWriteFileWithDir(outputPath, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	logging.For("export").Info("conversation exported", "path", outputPath, "mime", exporter.MimeType())

	if opts.OpenAfterExport {
		if err := openFile(outputPath); err != nil {
			// Non-fatal, the file was still written
			logging.For("export").Warn("could not open exported file", "path", outputPath, "err", err)
		}
	}

	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	// Limit length
	maxLen := 50
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	// Replace problematic characters (Windows and Unix)
	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
	}

	result := []rune{}
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}

	return string(result)
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}
