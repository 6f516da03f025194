// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// DefaultCodeStyle is the chroma style used when none is configured.
const DefaultCodeStyle = "monokai"

// Highlighter colors code with chroma for 256-color terminals.
type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

// NewHighlighter creates a highlighter for the named chroma style. Unknown
// styles fall back to chroma's default.
func NewHighlighter(style string) *Highlighter {
	if style == "" {
		style = DefaultCodeStyle
	}
	s := chromaStyles.Get(style)
	if s == nil {
		s = chromaStyles.Fallback
	}
	f := formatters.Get("terminal256")
	if f == nil {
		f = formatters.Fallback
	}
	return &Highlighter{style: s, formatter: f}
}

// Highlight returns code with ANSI colors. The language is looked up by
// name, then detected from the content, then plain text.
func (h *Highlighter) Highlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DetectLanguage guesses the language name of code, or "" when nothing
// matches. Names are chroma's, e.g. "Bash" or "Go".
func DetectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
