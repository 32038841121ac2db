package parser

import (
	"fmt"
	"strings"
)

// ParseError represents an error that occurred during parsing.
type ParseError struct {
	Path    string // source file the error occurred in
	Line    int    // 1-based line number
	Column  int    // 1-based column number
	Message string
	Context string // the line of text where the error occurred
}

// Error formats the parse error with a caret pointing at the error position.
func (e *ParseError) Error() string {
	location := fmt.Sprintf("%d:%d", e.Line, e.Column)
	if e.Path != "" {
		location = e.Path + ":" + location
	}

	if e.Context == "" {
		return fmt.Sprintf("%s: %s", location, e.Message)
	}

	pointer := strings.Repeat(" ", e.Column-1) + "^"
	return fmt.Sprintf("%s: %s\n%s\n%s", location, e.Message, e.Context, pointer)
}

// ErrorList is the full set of parse errors for one document.
type ErrorList []*ParseError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("parsing failed:\n%s", strings.Join(msgs, "\n"))
}
