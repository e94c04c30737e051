package expand

import "fmt"

// ArgumentError is returned when a parameter expansion is given a bad
// argument, like a required parameter that isn't set or a bad subscript.
type ArgumentError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%d.%d: %s", e.Line, e.Column, e.Msg)
}

// NoMatchError is returned when filename generation finds nothing. An empty
// result would be indistinguishable from a word that wasn't a pattern.
type NoMatchError struct {
	Pattern string
}

func (e *NoMatchError) Error() string {
	return "no matches found: " + e.Pattern
}

// PatternError is returned for glob patterns that can't be translated.
type PatternError struct {
	Pattern string
	Index   int
	Msg     string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("%s near index %d: %q", e.Msg, e.Index, e.Pattern)
}
