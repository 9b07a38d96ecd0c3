// Package ansi strips terminal escape sequences from process output.
//
// Sanitizer is a byte-oriented automaton with two states, Plain and
// InEscape. The state survives across Write calls so a sequence split over
// two reads is still removed completely.
package ansi

const (
	esc = 0x1b
	bel = 0x07
	del = 0x7f
)

// State is the automaton state between calls.
type State int

const (
	// Plain passes printable bytes through.
	Plain State = iota
	// InEscape discards bytes until the current sequence terminates.
	InEscape
)

func (s State) String() string {
	switch s {
	case Plain:
		return "plain"
	case InEscape:
		return "in-escape"
	default:
		return "unknown"
	}
}

// family records which kind of sequence InEscape is consuming.
type family int

const (
	famIntro  family = iota // ESC seen, family not yet known
	famCSI                  // ESC [ ... final 0x40-0x7E
	famString               // OSC/DCS/SOS/PM/APC, ends with BEL or ESC \
	famNF                   // ESC intermediates... final 0x30-0x7E
)

// Sanitizer removes escape sequences and control bytes from a byte stream.
// It is not safe for concurrent use; each output stream owns one.
type Sanitizer struct {
	state  State
	family family
	// strEsc is set inside a string sequence after an ESC that may start ST.
	strEsc bool
}

// New returns a Sanitizer in the Plain state.
func New() *Sanitizer {
	return &Sanitizer{}
}

// State reports the current automaton state.
func (s *Sanitizer) State() State {
	return s.state
}

// Reset returns the automaton to Plain, dropping any partial sequence.
func (s *Sanitizer) Reset() {
	*s = Sanitizer{}
}

// Write filters p and appends the plain text to dst, returning the extended
// slice.
func (s *Sanitizer) Write(dst, p []byte) []byte {
	for _, b := range p {
		switch s.state {
		case Plain:
			switch {
			case b == esc:
				s.enter()
			case b == '\n' || b == '\t':
				dst = append(dst, b)
			case b < 0x20 || b == del:
				// other C0 controls (CR, BS, BEL, ...) carry no text
			default:
				dst = append(dst, b)
			}
		case InEscape:
			s.step(b)
		}
	}
	return dst
}

// String filters a complete string in one call using a fresh automaton.
func String(in string) string {
	var s Sanitizer
	return string(s.Write(make([]byte, 0, len(in)), []byte(in)))
}

func (s *Sanitizer) enter() {
	s.state = InEscape
	s.family = famIntro
	s.strEsc = false
}

func (s *Sanitizer) done() {
	s.state = Plain
	s.family = famIntro
	s.strEsc = false
}

func (s *Sanitizer) step(b byte) {
	switch s.family {
	case famIntro:
		switch {
		case b == '[':
			s.family = famCSI
		case b == ']' || b == 'P' || b == 'X' || b == '^' || b == '_':
			s.family = famString
		case b == esc:
			// ESC ESC: restart the sequence
		case b >= 0x20 && b <= 0x2f:
			s.family = famNF
		case b < 0x20:
			// stray control inside a sequence is ignored
		default:
			// two-byte escape such as ESC 7, ESC M, ESC =
			s.done()
		}
	case famCSI:
		switch {
		case b >= 0x40 && b <= 0x7e:
			s.done()
		case b == esc:
			s.enter()
		}
	case famNF:
		switch {
		case b >= 0x30 && b <= 0x7e:
			s.done()
		case b == esc:
			s.enter()
		}
	case famString:
		switch {
		case b == bel:
			s.done()
		case s.strEsc && b == '\\':
			s.done()
		default:
			s.strEsc = b == esc
		}
	}
}
