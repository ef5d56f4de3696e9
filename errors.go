package lifeline

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry and render operations.
// All use prefix "lifeline:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrUnknownTemplate  = errors.New("lifeline: template not found in registry")
	ErrInvalidVariables = errors.New("lifeline: variables do not satisfy template schema")
	ErrMissingVariable  = errors.New("lifeline: required template variable not provided")
	ErrVariableType     = errors.New("lifeline: variable value does not match declared type")
	ErrInvalidTemplate  = errors.New("lifeline: template definition is invalid")
	ErrUnsupportedValue = errors.New("lifeline: unsupported variable value")
	ErrInvalidManifest  = errors.New("lifeline: manifest file is malformed")
	ErrInvalidPayload   = errors.New("lifeline: payload struct is invalid or missing prompt tags")
)

// VariableError wraps a sentinel error with variable and template context.
// Use errors.Is(err, ErrMissingVariable) and errors.As(err, &variableErr) to inspect.
type VariableError struct {
	Variable string
	Template string
	Err      error
}

// Error implements error.
func (e *VariableError) Error() string {
	return fmt.Sprintf("lifeline: variable %q in template %q: %v", e.Variable, e.Template, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/errors.As.
func (e *VariableError) Unwrap() error { return e.Err }

// ValidationError lists every problem found in a variable bag.
// errors.Is matches ErrInvalidVariables as well as each problem's sentinel.
type ValidationError struct {
	Template string
	Problems []*VariableError
}

// Error implements error.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		names = append(names, p.Variable)
	}
	return fmt.Sprintf("lifeline: invalid variables for template %q: %s", e.Template, strings.Join(names, ", "))
}

// Unwrap returns ErrInvalidVariables followed by each problem.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, 0, len(e.Problems)+1)
	out = append(out, ErrInvalidVariables)
	for _, p := range e.Problems {
		out = append(out, p)
	}
	return out
}

// Compile-time checks that the error types implement error.
var (
	_ error = (*VariableError)(nil)
	_ error = (*ValidationError)(nil)
)
