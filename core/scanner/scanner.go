// Package scanner implements the character level cursor shared by the
// expander and the statement parser.
package scanner

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// EOT is the sentinel returned once the scanner has consumed all input.
const EOT rune = -1

// Scanner walks a Token one character at a time.
type Scanner struct {
	text Token
	src  string

	// pos is the offset of ch in src and next the offset just past it.
	pos  int
	next int
	ch   rune

	line   int
	column int
}

// New creates a scanner positioned on the first character of text.
func New(text Token) *Scanner {
	s := &Scanner{
		text:   text,
		src:    text.String(),
		line:   text.Line(),
		column: text.Column() - 1,
	}
	s.Getch()
	return s
}

// NewString is shorthand for New(NewToken(text)).
func NewString(text string) *Scanner {
	return New(NewToken(text))
}

// Text returns the token being scanned.
func (s *Scanner) Text() Token {
	return s.text
}

// Ch returns the current character.
func (s *Scanner) Ch() rune {
	return s.ch
}

// Pos returns the offset of the current character within Text.
func (s *Scanner) Pos() int {
	return s.pos
}

// Next returns the offset just past the current character.
func (s *Scanner) Next() int {
	return s.next
}

// Line returns the line of the current character.
func (s *Scanner) Line() int {
	return s.line
}

// Column returns the column of the current character.
func (s *Scanner) Column() int {
	return s.column
}

// Slice returns the view [i, j) of the scanned text.
func (s *Scanner) Slice(i, j int) Token {
	return s.text.Sub(i, j)
}

// Getch advances to the next character and returns it.
func (s *Scanner) Getch() rune {
	switch s.ch {
	case EOT:
		return EOT
	case '\n':
		s.line++
		s.column = 1
	default:
		s.column++
	}

	s.pos = s.next
	if s.pos >= len(s.src) {
		s.ch = EOT
		return EOT
	}
	r, size := utf8.DecodeRuneInString(s.src[s.pos:])
	s.ch = r
	s.next = s.pos + size
	return r
}

// Peek returns the character after the current one without consuming it.
func (s *Scanner) Peek() rune {
	if s.ch == EOT || s.next >= len(s.src) {
		return EOT
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.next:])
	return r
}

// EOT reports whether the scanner is at or past the end of its input.
func (s *Scanner) EOT() bool {
	return s.ch == EOT
}

// SkipSpace skips blanks, line continuations and comments. Newlines are only
// skipped when skipNewlines is set.
func (s *Scanner) SkipSpace(skipNewlines bool) error {
	for {
		for IsBlank(s.ch) {
			s.Getch()
		}

		switch {
		case s.ch == '\\' && s.Peek() == '\n':
			s.Getch()
			s.Getch()
		case skipNewlines && s.ch == '\n':
			s.Getch()
		case skipNewlines && s.ch == '\r' && s.Peek() == '\n':
			s.Getch()
			s.Getch()
		case s.ch == '#', s.ch == '/' && s.Peek() == '/':
			for s.ch != EOT && s.ch != '\n' {
				s.Getch()
			}
		case s.ch == '/' && s.Peek() == '*':
			line, column := s.line, s.column
			s.Getch()
			s.Getch()
			for !(s.ch == '*' && s.Peek() == '/') {
				if s.ch == EOT {
					return &EOFError{Line: line, Column: column, Msg: "unexpected EOT looking for */", Missing: "*/"}
				}
				s.Getch()
			}
			s.Getch()
			s.Getch()
		default:
			return nil
		}
	}
}

// SkipQuote advances from an opening ' or " to the matching closing quote,
// leaving the scanner on it. Backslash escapes are honored inside double
// quotes only.
func (s *Scanner) SkipQuote() error {
	quote := s.ch
	line, column := s.line, s.column
	for {
		switch s.Getch() {
		case EOT:
			return &EOFError{
				Line:    line,
				Column:  column,
				Msg:     "unexpected EOT looking for matching " + string(quote),
				Missing: string(quote),
			}
		case quote:
			return nil
		case '\\':
			if quote == '"' {
				if s.Getch() == EOT {
					return &EOFError{Line: line, Column: column, Msg: "unexpected EOT looking for matching \"", Missing: "\""}
				}
			}
		}
	}
}

// Escape decodes the escape sequence starting at the current backslash,
// leaving the scanner on its last character. ok is false for a line
// continuation, which produces no character.
func (s *Scanner) Escape() (r rune, ok bool, err error) {
	line, column := s.line, s.column

	switch s.Getch() {
	case EOT:
		return 0, false, &EOFError{Line: line, Column: column, Msg: "unexpected EOT in \\ escape", Missing: " "}
	case '\n':
		return 0, false, nil
	case 'u':
		start := s.next
		for i := 0; i < 4; i++ {
			if s.Getch() == EOT {
				return 0, false, &EOFError{Line: line, Column: column, Msg: "unexpected EOT in \\u escape", Missing: "0000"}
			}
		}
		hex := s.src[start:s.next]
		code, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, false, &SyntaxError{Line: line, Column: column, Msg: "bad unicode escape: \\u" + hex}
		}
		return rune(code), true, nil
	default:
		return s.ch, true, nil
	}
}

// Find scans forward to the target that closes the group opened just before
// the current position, counting nested deeper characters. Quotes and escapes
// are skipped. It returns the text between the opening and the closing
// character and leaves the scanner on the closing character.
func (s *Scanner) Find(target, deeper rune) (Token, error) {
	line, column := s.line, s.column
	start := s.next
	level := 1
	for {
		switch s.Getch() {
		case EOT:
			return Token{}, &EOFError{
				Line:    line,
				Column:  column,
				Msg:     "unexpected EOT looking for matching " + string(target),
				Missing: string(target),
			}
		case '\\':
			s.Getch()
		case '"', '\'':
			if err := s.SkipQuote(); err != nil {
				return Token{}, err
			}
		case target:
			level--
			if level == 0 {
				return s.Slice(start, s.pos), nil
			}
		case deeper:
			level++
		}
	}
}

// Group returns the contents of the bracket group opened by the current
// character, which must be one of { ( or [.
func (s *Scanner) Group() (Token, error) {
	switch s.ch {
	case '{':
		return s.Find('}', '{')
	case '(':
		return s.Find(')', '(')
	case '[':
		return s.Find(']', '[')
	default:
		return Token{}, &SyntaxError{Line: s.line, Column: s.column, Msg: "expected group, got " + strconv.QuoteRune(s.ch)}
	}
}

// IsBlank reports whether r separates words without ending a line.
func IsBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == '\f'
}

// IsName reports whether r can appear in a variable name.
func IsName(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
