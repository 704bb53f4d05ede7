// Package scan reads Kestrel source text into core values. It covers the
// lexical subset the runtime core itself produces when molding: scalars,
// words, strings, issues, binaries, blocks, groups, paths, and quote marks.
// The full language grammar lives above this layer.
package scan

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kestrel-lang/kestrel/core"
)

// Load scans src and returns a block holding every top-level value.
func Load(rt *core.Runtime, src string) (core.Cell, error) {
	// Values under construction are not rooted yet; collection waits.
	defer rt.DisableGC().Release()

	s := &scanner{rt: rt, src: src}
	items, err := s.values(0)
	if err != nil {
		return core.NullCell(), err
	}
	s.skipSpace()
	if !s.done() {
		return core.NullCell(), s.errorf("unexpected %q", s.rest()[0])
	}
	return rt.NewBlock(items...), nil
}

type scanner struct {
	rt  *core.Runtime
	src string
	pos int
}

func (s *scanner) done() bool   { return s.pos >= len(s.src) }
func (s *scanner) rest() string { return s.src[s.pos:] }
func (s *scanner) peek() byte   { return s.src[s.pos] }

func (s *scanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("scan: offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

func (s *scanner) skipSpace() {
	for !s.done() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r':
			s.pos++
		case ';': // comment to end of line
			for !s.done() && s.peek() != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

// values scans values until the closing delimiter (0 at top level).
func (s *scanner) values(close byte) ([]core.Cell, error) {
	var items []core.Cell
	for {
		s.skipSpace()
		if s.done() {
			if close != 0 {
				return nil, s.errorf("missing %q", close)
			}
			return items, nil
		}
		if close != 0 && s.peek() == close {
			s.pos++
			return items, nil
		}
		if s.peek() == ']' || s.peek() == ')' {
			return nil, s.errorf("unexpected %q", s.peek())
		}
		v, err := s.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

// value scans one value, including quote marks and path composition.
func (s *scanner) value() (core.Cell, error) {
	quotes := 0
	for !s.done() && s.peek() == '\'' {
		quotes++
		s.pos++
	}
	if s.done() {
		return core.NullCell(), s.errorf("quote with nothing to quote")
	}

	v, err := s.bareValue()
	if err != nil {
		return core.NullCell(), err
	}

	// A '/' directly after a path-capable value begins a path.
	if !s.done() && s.peek() == '/' && pathElement(v) {
		segments := []core.Cell{v}
		for !s.done() && s.peek() == '/' {
			s.pos++
			seg, err := s.bareValue()
			if err != nil {
				return core.NullCell(), err
			}
			if !pathElement(seg) {
				return core.NullCell(), s.errorf("invalid path segment %v", seg.Kind())
			}
			segments = append(segments, seg)
		}
		v = s.rt.NewPath(segments...)
	}

	if quotes > 0 {
		v = s.rt.Quote(v, quotes)
	}
	return v, nil
}

func pathElement(v core.Cell) bool {
	switch v.Kind() {
	case core.KindWord, core.KindInteger, core.KindGroup:
		return true
	default:
		return false
	}
}

func (s *scanner) bareValue() (core.Cell, error) {
	switch c := s.peek(); {
	case c == '[':
		s.pos++
		items, err := s.values(']')
		if err != nil {
			return core.NullCell(), err
		}
		return s.rt.NewBlock(items...), nil

	case c == '(':
		s.pos++
		items, err := s.values(')')
		if err != nil {
			return core.NullCell(), err
		}
		return s.rt.NewGroup(items...), nil

	case c == '"':
		return s.text()

	case c == '#':
		return s.hashForm()

	case c == ':':
		s.pos++
		spelling, err := s.wordSpelling()
		if err != nil {
			return core.NullCell(), err
		}
		sym, err := s.rt.Intern(spelling)
		if err != nil {
			return core.NullCell(), err
		}
		return core.WordCell(core.KindGetWord, sym), nil

	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return s.number()

	default:
		return s.wordOrSetWord()
	}
}

// ---------------------------------------------------------------------------
// Token forms
// ---------------------------------------------------------------------------

const wordTerminators = " \t\n\r;[](){}\"/:"

func (s *scanner) wordSpelling() (string, error) {
	start := s.pos
	for !s.done() && !strings.ContainsRune(wordTerminators, rune(s.peek())) {
		s.pos++
	}
	if s.pos == start {
		return "", s.errorf("expected a word")
	}
	return s.src[start:s.pos], nil
}

func (s *scanner) wordOrSetWord() (core.Cell, error) {
	spelling, err := s.wordSpelling()
	if err != nil {
		return core.NullCell(), err
	}
	kind := core.KindWord
	if !s.done() && s.peek() == ':' {
		s.pos++
		kind = core.KindSetWord
	}
	sym, err := s.rt.Intern(spelling)
	if err != nil {
		return core.NullCell(), err
	}
	return core.WordCell(kind, sym), nil
}

func (s *scanner) number() (core.Cell, error) {
	start := s.pos
	if s.peek() == '-' || s.peek() == '+' {
		s.pos++
	}
	isDecimal := false
	isPair := false
	for !s.done() {
		c := s.peek()
		switch {
		case c >= '0' && c <= '9':
			s.pos++
		case c == '.' || c == 'e' || c == 'E':
			isDecimal = true
			s.pos++
		case c == '-' || c == '+': // exponent sign
			s.pos++
		case c == 'x':
			isPair = true
			s.pos++
		default:
			goto scanned
		}
	}
scanned:
	tok := s.src[start:s.pos]
	switch {
	case isPair:
		parts := strings.SplitN(tok, "x", 2)
		x, err1 := strconv.ParseInt(parts[0], 10, 32)
		y, err2 := strconv.ParseInt(parts[1], 10, 32)
		if err1 != nil || err2 != nil {
			return core.NullCell(), s.errorf("bad pair %q", tok)
		}
		return core.PairCell(int32(x), int32(y)), nil
	case isDecimal:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return core.NullCell(), s.errorf("bad decimal %q", tok)
		}
		return core.DecimalCell(f), nil
	default:
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return core.NullCell(), s.errorf("bad integer %q", tok)
		}
		return core.IntegerCell(n), nil
	}
}

func (s *scanner) text() (core.Cell, error) {
	s.pos++ // opening quote
	var b strings.Builder
	for {
		if s.done() {
			return core.NullCell(), s.errorf("unterminated string")
		}
		r, size := utf8.DecodeRuneInString(s.rest())
		s.pos += size
		switch r {
		case '"':
			return s.rt.NewText(b.String()), nil
		case '^':
			esc, err := s.escape()
			if err != nil {
				return core.NullCell(), err
			}
			b.WriteRune(esc)
		default:
			b.WriteRune(r)
		}
	}
}

func (s *scanner) escape() (rune, error) {
	if s.done() {
		return 0, s.errorf("unterminated escape")
	}
	c := s.peek()
	s.pos++
	switch c {
	case '"':
		return '"', nil
	case '^':
		return '^', nil
	case '/':
		return '\n', nil
	case '-':
		return '\t', nil
	default:
		return 0, s.errorf("unknown escape ^%c", c)
	}
}

// hashForm scans the forms opened by '#': chars, binaries, issues, and the
// #[...] constructors the molder emits for null and logic.
func (s *scanner) hashForm() (core.Cell, error) {
	s.pos++ // '#'
	if s.done() {
		return core.NullCell(), s.errorf("dangling #")
	}
	switch s.peek() {
	case '"':
		s.pos++
		r, size := utf8.DecodeRuneInString(s.rest())
		s.pos += size
		if r == '^' {
			esc, err := s.escape()
			if err != nil {
				return core.NullCell(), err
			}
			r = esc
		}
		if s.done() || s.peek() != '"' {
			return core.NullCell(), s.errorf("unterminated char")
		}
		s.pos++
		return core.CharCell(r), nil

	case '{':
		s.pos++
		end := strings.IndexByte(s.rest(), '}')
		if end < 0 {
			return core.NullCell(), s.errorf("unterminated binary")
		}
		data, err := hex.DecodeString(strings.ToLower(s.rest()[:end]))
		if err != nil {
			return core.NullCell(), s.errorf("bad binary: %v", err)
		}
		s.pos += end + 1
		return s.rt.NewBinary(data), nil

	case '[':
		s.pos++
		name, err := s.wordSpelling()
		if err != nil {
			return core.NullCell(), err
		}
		if s.done() || s.peek() != ']' {
			return core.NullCell(), s.errorf("unterminated #[%s", name)
		}
		s.pos++
		switch name {
		case "null":
			return core.NullCell(), nil
		case "true":
			return core.LogicCell(true), nil
		case "false":
			return core.LogicCell(false), nil
		default:
			return core.NullCell(), s.errorf("unknown constructor #[%s]", name)
		}

	default:
		spelling, err := s.wordSpelling()
		if err != nil {
			return core.NullCell(), err
		}
		return s.rt.NewIssue(spelling), nil
	}
}
