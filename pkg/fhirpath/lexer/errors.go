package lexer

import "fmt"

// Error reports a lexical failure at a specific source span.
type Error struct {
	Message string
	Start   int
	End     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("LexError: %s", e.Message)
}

// Span returns the [start, end) range responsible for the error.
func (e *Error) Span() (int, int) {
	return e.Start, e.End
}

func newError(start, end int, format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Start: start, End: end}
}
