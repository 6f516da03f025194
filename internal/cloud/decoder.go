// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// STREAMING: Incremental SSE decoding that is independent of chunk boundaries

const (
	// MaxLineSize caps a single SSE line. Longer lines are discarded.
	MaxLineSize = 1 << 20

	dataField    = "data:"
	doneSentinel = "[DONE]"
)

// =============================================================================
// STREAM CHUNK
// =============================================================================

// StreamChunk is one decoded SSE payload from the completions endpoint.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// GetFinishReason returns the finish reason of the first choice.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns raw SSE body bytes into content fragments. Bytes may be fed
// in chunks of any size and split anywhere, including inside a multi-byte
// character or a line: the fragments produced depend only on the
// concatenated input.
//
// Only "data:" lines count. A "data: [DONE]" line ends the stream and any
// later bytes are ignored. Lines whose payload is not valid JSON are
// dropped. Lines without content are skipped.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	utf8     transform.Transformer
	pending  []byte // undecoded tail: an incomplete UTF-8 sequence
	line     strings.Builder
	overflow bool
	done     bool
	closed   bool
	dropped  int
	finish   string
}

// NewDecoder returns a decoder positioned at the start of a stream.
func NewDecoder() *Decoder {
	return &Decoder{utf8: unicode.UTF8.NewDecoder()}
}

// Feed decodes chunk and returns the fragments completed by it.
func (d *Decoder) Feed(chunk []byte) []string {
	if d.done || d.closed {
		return nil
	}
	return d.consume(d.decode(chunk, false))
}

// Close flushes held-back bytes and parses a final line that had no
// trailing newline. Calling Feed or Close afterwards returns nothing.
func (d *Decoder) Close() []string {
	if d.closed {
		return nil
	}
	var frags []string
	if !d.done {
		frags = d.consume(d.decode(nil, true))
		if !d.done && d.line.Len() > 0 && !d.overflow {
			if frag, ok := d.parseLine(d.line.String()); ok {
				frags = append(frags, frag)
			}
		}
	}
	d.line.Reset()
	d.pending = nil
	d.closed = true
	return frags
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

// FinishReason returns the last finish_reason the server sent, such as
// "stop" or "length", or "" if none arrived.
func (d *Decoder) FinishReason() string {
	return d.finish
}

// Dropped returns how many data lines were discarded as malformed or too long.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// decode runs the UTF-8 decoder over pending+chunk. With atEOF false an
// incomplete trailing sequence is held back for the next call; with atEOF
// true it becomes U+FFFD.
func (d *Decoder) decode(chunk []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = nil

	var out strings.Builder
	dst := make([]byte, 3*len(src)+8)
	for len(src) > 0 {
		nDst, nSrc, err := d.utf8.Transform(dst, src, atEOF)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch err {
		case nil:
		case transform.ErrShortDst:
			if nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case transform.ErrShortSrc:
			d.pending = append(d.pending, src...)
			return out.String()
		default:
			return out.String()
		}
	}
	return out.String()
}

// consume splits text on newlines, completing and parsing lines. A line
// that does not end in this text stays buffered.
func (d *Decoder) consume(text string) []string {
	var frags []string
	for !d.done && text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			d.appendLine(text)
			break
		}
		d.appendLine(text[:i])
		text = text[i+1:]

		line, overflow := d.line.String(), d.overflow
		d.line.Reset()
		d.overflow = false
		if overflow {
			d.dropped++
			continue
		}
		if frag, ok := d.parseLine(line); ok {
			frags = append(frags, frag)
		}
	}
	return frags
}

func (d *Decoder) appendLine(s string) {
	if d.overflow {
		return
	}
	if d.line.Len()+len(s) > MaxLineSize {
		d.overflow = true
		d.line.Reset()
		return
	}
	d.line.WriteString(s)
}

// parseLine handles one complete line and returns its content fragment.
func (d *Decoder) parseLine(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")
	payload, ok := strings.CutPrefix(line, dataField)
	if !ok {
		return "", false
	}
	payload = strings.TrimPrefix(payload, " ")

	if payload == doneSentinel {
		d.done = true
		return "", false
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		d.dropped++
		return "", false
	}
	if reason := chunk.GetFinishReason(); reason != "" {
		d.finish = reason
	}
	content := chunk.GetContent()
	return content, content != ""
}
