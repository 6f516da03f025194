// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"io"
	"iter"
	"sync"
)

// readBufferSize is the body read size. Fragments are surfaced as soon as
// a read completes a line, so this only bounds a single read.
const readBufferSize = 4096

// =============================================================================
// STREAM
// =============================================================================

// Stream yields the text fragments of one completion response in order.
// Use it like bufio.Scanner:
//
//	for s.Next() {
//	    use(s.Fragment())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Fragments decoded before a read error are still yielded; Err reports the
// error after them. A Stream is not safe for concurrent use except Close,
// which may be called from any goroutine to abort the read.
type Stream struct {
	body   io.ReadCloser
	cancel func()
	dec    *Decoder
	buf    []byte

	queue    []string
	fragment string
	count    int
	err      error
	finished bool

	closeOnce sync.Once
	closeErr  error
}

// NewStream decodes SSE from r. If r is an io.Closer it is closed when the
// stream finishes.
func NewStream(r io.Reader) *Stream {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return newStream(rc, nil)
}

func newStream(body io.ReadCloser, cancel func()) *Stream {
	return &Stream{
		body:   body,
		cancel: cancel,
		dec:    NewDecoder(),
		buf:    make([]byte, readBufferSize),
	}
}

// Next advances to the next fragment. It returns false when the stream has
// ended, either cleanly or with an error.
func (s *Stream) Next() bool {
	for len(s.queue) == 0 {
		if s.finished {
			return false
		}
		if s.dec.Done() {
			s.finish(nil)
			return false
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.queue = append(s.queue, s.dec.Feed(s.buf[:n])...)
		}
		if err == io.EOF {
			s.queue = append(s.queue, s.dec.Close()...)
			s.finish(nil)
		} else if err != nil {
			if s.dec.Done() {
				s.finish(nil)
			} else {
				s.finish(&NetworkError{Op: "read response stream", Err: err})
			}
		}
	}

	s.fragment = s.queue[0]
	s.queue = s.queue[1:]
	s.count++
	return true
}

// Fragment returns the fragment produced by the last call to Next.
func (s *Stream) Fragment() string {
	return s.fragment
}

// Err returns the error that ended the stream, or nil after a clean end.
func (s *Stream) Err() error {
	return s.err
}

// Count returns how many fragments have been yielded so far.
func (s *Stream) Count() int {
	return s.count
}

// Dropped returns how many malformed data lines were skipped.
func (s *Stream) Dropped() int {
	return s.dec.Dropped()
}

// FinishReason returns the finish_reason reported by the server, or "".
func (s *Stream) FinishReason() string {
	return s.dec.FinishReason()
}

// All returns an iterator over the remaining fragments. A terminal error is
// yielded last with an empty fragment. The stream is closed when iteration
// stops.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Fragment(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield("", err)
		}
	}
}

// Close releases the response body. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	s.Close()
}
