package pattern

import (
	"strings"

	"github.com/zero-day-ai/ekg/ekgerr"
)

// scanner walks a pattern string. It never backtracks across a fragment it
// has already reported.
type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

// consume advances past c when it is the next byte.
func (s *scanner) consume(c byte) bool {
	if s.peek() == c {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) expect(c byte, what string) error {
	s.skipSpace()
	if !s.consume(c) {
		return s.errorf(what)
	}
	return nil
}

func (s *scanner) ident() string {
	start := s.pos
	for !s.eof() {
		c := s.src[s.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || s.pos > start && c >= '0' && c <= '9' {
			s.pos++
			continue
		}
		break
	}
	return s.src[start:s.pos]
}

// keyword consumes kw (case-insensitive) when it is followed by a non-word byte.
func (s *scanner) keyword(kw string) bool {
	end := s.pos + len(kw)
	if end > len(s.src) || !strings.EqualFold(s.src[s.pos:end], kw) {
		return false
	}
	if end < len(s.src) {
		c := s.src[end]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			return false
		}
	}
	s.pos = end
	return true
}

// balanced reads from the current opening bracket to its matching closer and
// returns the inner text. Quoted strings are skipped as opaque.
func (s *scanner) balanced() (string, error) {
	start := s.pos
	end, ok := matchBracket(s.src, s.pos)
	if !ok {
		return "", s.errorAt(start, "unbalanced "+string(s.src[start]))
	}
	s.pos = end + 1
	return s.src[start+1 : end], nil
}

// until reads up to, but not including, the first closer at bracket depth
// zero. Nested brackets and quoted strings are skipped.
func (s *scanner) until(closer byte) (string, error) {
	start := s.pos
	for i := s.pos; i < len(s.src); {
		c := s.src[i]
		switch {
		case c == closer:
			s.pos = i
			return s.src[start:i], nil
		case c == '\'' || c == '"':
			_, end, ok := scanQuoted(s.src, i)
			if !ok {
				return "", s.errorAt(i, "unterminated string")
			}
			i = end
		case c == '(' || c == '[' || c == '{':
			end, ok := matchBracket(s.src, i)
			if !ok {
				return "", s.errorAt(i, "unbalanced "+string(c))
			}
			i = end + 1
		default:
			i++
		}
	}
	return "", s.errorAt(start, "missing "+string(closer))
}

func (s *scanner) errorf(reason string) error {
	return s.errorAt(s.pos, reason)
}

func (s *scanner) errorAt(pos int, reason string) error {
	frag := "<end of input>"
	if pos < len(s.src) {
		frag = s.src[pos:]
		if len(frag) > 24 {
			frag = frag[:24]
		}
	}
	return &ekgerr.MalformedPatternError{Fragment: frag, Pattern: s.src, Reason: reason}
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// matchBracket returns the index of the bracket closing the one at open.
func matchBracket(src string, open int) (int, bool) {
	want, ok := closers[src[open]]
	if !ok {
		return 0, false
	}
	stack := []byte{want}
	for i := open + 1; i < len(src); {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			_, end, ok := scanQuoted(src, i)
			if !ok {
				return 0, false
			}
			i = end
			continue
		case closers[c] != 0:
			stack = append(stack, closers[c])
		case c == ')' || c == ']' || c == '}':
			if c != stack[len(stack)-1] {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

// scanQuoted reads a quoted string starting at start. end is the index after
// the closing quote. Backslash escapes are honored.
func scanQuoted(src string, start int) (string, int, bool) {
	q := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case q:
			return src[start+1 : i], i + 1, true
		}
	}
	return "", len(src), false
}

// splitTopLevel splits s on sep at bracket depth zero outside strings.
func splitTopLevel(s string, sep byte) []string {
	var (
		parts []string
		start int
	)
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			_, end, _ := scanQuoted(s, i)
			i = end
			continue
		case closers[c] != 0:
			end, ok := matchBracket(s, i)
			if !ok {
				i = len(s)
				continue
			}
			i = end + 1
			continue
		case c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
		i++
	}
	return append(parts, s[start:])
}

// checkBalanced verifies that brackets and quotes in an expression close.
func checkBalanced(text string) error {
	s := &scanner{src: text}
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"':
			_, end, ok := scanQuoted(text, i)
			if !ok {
				return s.errorAt(i, "unterminated string")
			}
			i = end
		case closers[c] != 0:
			end, ok := matchBracket(text, i)
			if !ok {
				return s.errorAt(i, "unbalanced "+string(c))
			}
			i = end + 1
		case c == ')' || c == ']' || c == '}':
			return s.errorAt(i, "unexpected "+string(c))
		default:
			i++
		}
	}
	return nil
}
