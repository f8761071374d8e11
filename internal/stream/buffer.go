package stream

import (
	"strings"
)

// MaxBufferLen is the burst ceiling. A buffer holding more characters than this
// is flushed even though no newline has arrived.
const MaxBufferLen = 100

// peekKeywords trigger an immediate emit of the buffer without clearing it.
// Matching is done against the lower-cased buffer.
var peekKeywords = []string{"loading...", "done loading"}

// FlushBuffer accumulates characters that have not been emitted yet.
// It is owned by a single Reader and is not safe for concurrent use.
type FlushBuffer struct {
	sb    strings.Builder
	runes int
}

// Append adds one character to the buffer.
func (b *FlushBuffer) Append(ch rune) {
	b.sb.WriteRune(ch)
	b.runes++
}

// Len returns the number of characters in the buffer.
func (b *FlushBuffer) Len() int {
	return b.runes
}

// String returns the raw buffered text.
func (b *FlushBuffer) String() string {
	return b.sb.String()
}

// Peek returns the trimmed contents without clearing the buffer.
func (b *FlushBuffer) Peek() string {
	return strings.TrimSpace(b.sb.String())
}

// Flush returns the trimmed contents and clears the buffer.
func (b *FlushBuffer) Flush() string {
	text := b.Peek()
	b.Reset()
	return text
}

// Reset clears the buffer.
func (b *FlushBuffer) Reset() {
	b.sb.Reset()
	b.runes = 0
}

// Overflowed reports whether the buffer exceeded MaxBufferLen.
func (b *FlushBuffer) Overflowed() bool {
	return b.runes > MaxBufferLen
}

// HasPeekKeyword reports whether the buffer contains a loading keyword.
func (b *FlushBuffer) HasPeekKeyword() bool {
	lower := strings.ToLower(b.sb.String())
	for _, kw := range peekKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
