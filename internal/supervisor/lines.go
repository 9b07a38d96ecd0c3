package supervisor

import (
	"bytes"
	"unicode/utf8"
)

// maxLineBytes bounds an unterminated line; longer runs are split.
const maxLineBytes = 64 * 1024

// lineSplitter turns a byte stream into complete lines, carrying the
// unterminated tail across calls.
type lineSplitter struct {
	partial []byte
}

// Feed appends p and returns the lines it completed.
func (l *lineSplitter) Feed(p []byte) []string {
	var lines []string
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			l.partial = append(l.partial, p...)
			break
		}
		l.partial = append(l.partial, p[:i]...)
		lines = append(lines, string(l.partial))
		l.partial = l.partial[:0]
		p = p[i+1:]
	}
	for len(l.partial) > maxLineBytes {
		cut := maxLineBytes
		for cut > 0 && !utf8.RuneStart(l.partial[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxLineBytes
		}
		lines = append(lines, string(l.partial[:cut]))
		l.partial = append(l.partial[:0], l.partial[cut:]...)
	}
	return lines
}

// Flush returns the unterminated tail, if any.
func (l *lineSplitter) Flush() (string, bool) {
	if len(l.partial) == 0 {
		return "", false
	}
	line := string(l.partial)
	l.partial = l.partial[:0]
	return line, true
}
