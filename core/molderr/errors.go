// Package molderr defines the error taxonomy shared by the resolver and the
// execution engine. Parse errors carry their own type in the parser package
// because they need source-context rendering.
package molderr

import (
	"fmt"
	"strings"
)

// Error kinds for the failure categories the runner can surface.
const (
	// Resolution errors, fatal to the whole resolution pass
	ErrMissingImport       = "MISSING_IMPORT"
	ErrImportCycle         = "IMPORT_CYCLE"
	ErrRecipeCollision     = "RECIPE_COLLISION"
	ErrIncompatibleVersion = "INCOMPATIBLE_VERSION"

	// Execution errors, fatal to the in-progress recipe invocation
	ErrUnknownRecipe      = "UNKNOWN_RECIPE"
	ErrMissingRequirement = "MISSING_REQUIREMENT"
	ErrCommandFailed      = "COMMAND_FAILED"
	ErrCanceled           = "CANCELED"
)

// Error is a structured error with a kind and optional context values.
type Error struct {
	Kind    string
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]interface{}),
	}
}

// Wrap creates an Error of the given kind wrapping a cause.
func Wrap(kind string, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext attaches a context value and returns the error for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err is a molderr.Error of the given kind.
func IsKind(err error, kind string) bool {
	if me, ok := err.(*Error); ok {
		return me.Kind == kind
	}
	return false
}

// NewImportCycle builds an ImportCycle error naming the full chain.
func NewImportCycle(chain []string) *Error {
	return New(ErrImportCycle, "import cycle: %s", strings.Join(chain, " -> ")).
		WithContext("chain", chain)
}

// NewMissingRequirement reports an unsatisfied requirement for a recipe.
func NewMissingRequirement(recipe, requirement string) *Error {
	return New(ErrMissingRequirement, "recipe '%s' requires '%s', which is not available", recipe, requirement).
		WithContext("recipe", recipe).
		WithContext("requirement", requirement)
}

// NewCommandFailed reports a run statement that exited with a failure status.
// Index is the statement's position in the recipe's flattened statement list.
func NewCommandFailed(recipe string, index, exitStatus int, cause error) *Error {
	return Wrap(ErrCommandFailed, cause, "recipe '%s': statement %d exited with status %d", recipe, index, exitStatus).
		WithContext("recipe", recipe).
		WithContext("index", index).
		WithContext("exitStatus", exitStatus)
}

// ExitStatus extracts the subprocess exit status from a CommandFailed error.
func ExitStatus(err error) (int, bool) {
	me, ok := err.(*Error)
	if !ok || me.Kind != ErrCommandFailed {
		return 0, false
	}
	status, ok := me.Context["exitStatus"].(int)
	return status, ok
}

// FailedIndex extracts the failing statement index from a CommandFailed error.
func FailedIndex(err error) (int, bool) {
	me, ok := err.(*Error)
	if !ok || me.Kind != ErrCommandFailed {
		return 0, false
	}
	index, ok := me.Context["index"].(int)
	return index, ok
}
