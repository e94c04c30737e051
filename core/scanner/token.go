package scanner

import "unicode/utf8"

// Token is a position tagged view into a shared source buffer.
//
// Tokens never copy their text: Sub returns another view over the same
// buffer. Positions are kept relative to an anchor offset whose line and
// column are known, and resolved only when Line or Column is asked for.
type Token struct {
	src    string
	start  int
	length int

	anchor int
	line   int
	column int
}

// NewToken creates a token spanning all of s, starting at line 1 column 1.
func NewToken(s string) Token {
	return Token{src: s, length: len(s), line: 1, column: 1}
}

// String returns the text the token covers.
func (t Token) String() string {
	return t.src[t.start : t.start+t.length]
}

// Len returns the length of the token in bytes.
func (t Token) Len() int {
	return t.length
}

// Line returns the 1-based line the token starts on.
func (t Token) Line() int {
	line, _ := t.position()
	return line
}

// Column returns the 1-based column the token starts on.
func (t Token) Column() int {
	_, column := t.position()
	return column
}

func (t Token) position() (line, column int) {
	line, column = t.line, t.column
	for k := t.anchor; k < t.start; {
		r, size := utf8.DecodeRuneInString(t.src[k:])
		if r == '\n' {
			line++
			column = 1
		} else {
			column++
		}
		k += size
	}
	return line, column
}

// Start returns the offset of the token in the shared buffer.
func (t Token) Start() int {
	return t.start
}

// At returns the byte at offset i of the token.
func (t Token) At(i int) byte {
	return t.src[t.start+i]
}

// Sub returns the view [i, j) of t. It panics if the range is out of bounds,
// like slicing does.
func (t Token) Sub(i, j int) Token {
	if i < 0 || j < i || j > t.length {
		panic("scanner: token slice out of range")
	}

	sub := t
	sub.start = t.start + i
	sub.length = j - i
	return sub
}

// Equal compares the text of two tokens, ignoring their positions.
func (t Token) Equal(o Token) bool {
	return t.String() == o.String()
}

// EqualString reports whether the token text is s.
func (t Token) EqualString(s string) bool {
	return t.String() == s
}
