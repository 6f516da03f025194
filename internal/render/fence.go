// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// fence describes an opening code fence line.
type fence struct {
	char   byte
	length int
	info   string
}

// parseOpenFence recognises ``` and ~~~ fences indented by at most three
// spaces.
func parseOpenFence(line string) (fence, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return fence{}, false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return fence{}, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(trimmed[n:])
	if ch == '`' && strings.ContainsRune(info, '`') {
		return fence{}, false
	}
	return fence{char: ch, length: n, info: info}, true
}

// closes reports whether line closes f.
func (f fence) closes(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == f.char {
		n++
	}
	return n >= f.length && strings.TrimSpace(trimmed[n:]) == ""
}

func (f fence) language() string {
	if fields := strings.Fields(f.info); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// splitFences cuts src into prose and code segments. Nothing is rendered.
func splitFences(src string) []Segment {
	var (
		segments []Segment
		prose    []string
		code     []string
		open     fence
		inCode   bool
		index    int
	)

	flushProse := func() {
		if len(prose) == 0 {
			return
		}
		segments = append(segments, Segment{Kind: SegmentProse, Source: strings.Join(prose, "\n")})
		prose = nil
	}
	flushCode := func(closed bool) {
		segments = append(segments, Segment{
			Kind: SegmentCode,
			Block: &CodeBlock{
				Index:    index,
				Language: open.language(),
				Source:   strings.Join(code, "\n"),
				Closed:   closed,
			},
		})
		index++
		code = nil
	}

	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if inCode {
			if open.closes(line) {
				flushCode(true)
				inCode = false
				continue
			}
			code = append(code, line)
			continue
		}
		if f, ok := parseOpenFence(line); ok {
			flushProse()
			open = f
			inCode = true
			continue
		}
		prose = append(prose, line)
	}

	if inCode {
		flushCode(false)
	}
	flushProse()
	return segments
}
