package telegram

import "bytes"

// LineExtractor reassembles newline terminated lines from bytes that arrive
// in arbitrary chunks.
type LineExtractor struct {
	maxLen  int
	pending []byte
	line    []byte
}

func NewLineExtractor(maxLen int) *LineExtractor {
	if maxLen <= 0 {
		maxLen = MaxLineLength
	}
	return &LineExtractor{
		maxLen:  maxLen,
		pending: make([]byte, 0, maxLen+1),
		line:    make([]byte, 0, maxLen+1),
	}
}

// Feed appends raw bytes received from the source.
func (e *LineExtractor) Feed(p []byte) {
	e.pending = append(e.pending, p...)
}

// Next returns the next complete line including its '\n'. A line that grows past
// maxLen without a newline is cut at maxLen and gets a '\n' appended.
// The returned slice is only valid until the next call to Feed or Next.
func (e *LineExtractor) Next() ([]byte, bool) {
	window := e.pending
	if len(window) > e.maxLen+1 {
		window = window[:e.maxLen+1]
	}

	if i := bytes.IndexByte(window, '\n'); i >= 0 {
		e.line = append(e.line[:0], e.pending[:i+1]...)
		e.consume(i + 1)
		return e.line, true
	}

	if len(e.pending) > e.maxLen {
		e.line = append(e.line[:0], e.pending[:e.maxLen]...)
		e.line = append(e.line, '\n')
		e.consume(e.maxLen)
		return e.line, true
	}

	return nil, false
}

// Pending reports how many bytes wait for a line terminator.
func (e *LineExtractor) Pending() int {
	return len(e.pending)
}

func (e *LineExtractor) Reset() {
	e.pending = e.pending[:0]
}

func (e *LineExtractor) consume(n int) {
	rest := copy(e.pending, e.pending[n:])
	e.pending = e.pending[:rest]
}
