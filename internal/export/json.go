// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// STRUCTURED DOCUMENT
// =============================================================================

// document is the shape shared by the JSON and YAML exports.
type document struct {
	ID        string          `json:"id" yaml:"id"`
	Title     string          `json:"title" yaml:"title"`
	CreatedAt string          `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Messages  []model.Message `json:"messages" yaml:"messages"`
}

func newDocument(conv *model.Conversation) document {
	doc := document{
		ID:       conv.ID,
		Title:    conv.DisplayTitle(),
		Messages: conv.History(),
	}
	if !conv.CreatedAt.IsZero() {
		doc.CreatedAt = conv.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !conv.UpdatedAt.IsZero() {
		doc.UpdatedAt = conv.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if doc.Messages == nil {
		doc.Messages = []model.Message{}
	}
	return doc
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON format.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	data, err := json.MarshalIndent(newDocument(conv), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}

// =============================================================================
// YAML EXPORTER
// =============================================================================

// YAMLExporter exports conversations to YAML format.
type YAMLExporter struct{}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Export converts a conversation to YAML. Multi-line content is written as
// literal blocks.
func (e *YAMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	return yaml.Marshal(newDocument(conv))
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
