package cli

import (
	"errors"

	"github.com/moldlang/mold/cli/internal/parser"
	"github.com/moldlang/mold/core/molderr"
)

// Process exit codes. A failed command propagates the subprocess status
// instead of these.
const (
	exitOK       = 0
	exitFailure  = 1
	exitParse    = 2
	exitCanceled = 130
)

// ExitCode maps a runner error to the process exit status. Parse errors get
// their own code so scripts can tell a broken moldfile from a failed build;
// a failed command passes its own exit status through.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var list parser.ErrorList
	var parseErr *parser.ParseError
	if errors.As(err, &list) || errors.As(err, &parseErr) {
		return exitParse
	}

	if status, ok := molderr.ExitStatus(err); ok && status > 0 {
		return status
	}
	if molderr.IsKind(err, molderr.ErrCanceled) {
		return exitCanceled
	}
	return exitFailure
}
