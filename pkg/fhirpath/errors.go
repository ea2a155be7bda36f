package fhirpath

import (
	"strings"

	"github.com/fhirpath-go/core/pkg/fhirpath/eval"
)

// spanner is implemented by every error kind the core raises: lexer, parser,
// compile, and runtime errors alike carry the offending span.
type spanner interface {
	Span() (int, int)
}

// FormatError renders err as a multi-line, position-annotated diagnostic: a
// "<kind>: <message>" first line, the source line with a caret under the
// offending span, and suggestion bullets for the handful of mistakes common
// enough to recognize. source is the original expression text err was
// raised against. Errors with no span (e.g. a host error with no parse
// context) fall back to the plain message.
func FormatError(source string, err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(err.Error())

	start, end, ok := errorSpan(err)
	if !ok || source == "" {
		return sb.String()
	}

	_, col, lineText := locate(source, start)
	sb.WriteByte('\n')
	sb.WriteString(lineText)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(" ", col))
	caretLen := end - start
	if caretLen < 1 {
		caretLen = 1
	}
	if col+caretLen > len(lineText)+1 {
		caretLen = 1
	}
	sb.WriteString(strings.Repeat("^", caretLen))

	for _, hint := range suggestionsFor(err) {
		sb.WriteString("\n  - ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// errorSpan extracts a [start, end) byte span from any of the core's error
// kinds, unwrapping eval.EvalError's zero-value Span (meaning "no span
// recorded") to ok=false.
func errorSpan(err error) (start, end int, ok bool) {
	if ee, isEval := err.(*eval.EvalError); isEval {
		if ee.Span == [2]int{0, 0} {
			return 0, 0, false
		}
		return ee.Span[0], ee.Span[1], true
	}
	if sp, isSpanner := err.(spanner); isSpanner {
		s, e := sp.Span()
		return s, e, true
	}
	return 0, 0, false
}

// locate returns the 1-based line, the 0-based column and the full line text containing
// byte offset pos in source.
func locate(source string, pos int) (line, col int, lineText string) {
	if pos > len(source) {
		pos = len(source)
	}
	line = 1
	lineStart := 0
	for i := 0; i < pos; i++ {
		if source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := strings.IndexByte(source[lineStart:], '\n')
	if lineEnd < 0 {
		lineText = source[lineStart:]
	} else {
		lineText = source[lineStart : lineStart+lineEnd]
	}
	col = pos - lineStart
	return line, col, lineText
}

// suggestionsFor recognizes a small set of common mistakes and proposes a
// fix, such as a bare where(...) call attempted outside a dot chain.
func suggestionsFor(err error) []string {
	msg := err.Error()
	var hints []string
	if strings.Contains(msg, "unknown function") {
		hints = append(hints, "check the function name is spelled correctly and called after a '.'")
	}
	if strings.Contains(msg, "unexpected token") && strings.Contains(msg, "where") {
		hints = append(hints, "did you mean `.where(...)` instead of `where(...)` at the root?")
	}
	return hints
}
