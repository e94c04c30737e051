package scanner

import "fmt"

// EOFError is returned when the input ends in the middle of a construct.
// Interactive callers can use it to ask for more input.
type EOFError struct {
	// Line and Column of the start of the unterminated construct.
	Line   int
	Column int
	Msg    string
	// Missing holds the text that would have closed the construct.
	Missing string
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("%d.%d: %s", e.Line, e.Column, e.Msg)
}

// SyntaxError is returned for malformed input.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d.%d: %s", e.Line, e.Column, e.Msg)
}
