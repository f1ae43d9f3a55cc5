package vm

import (
	"errors"
	"fmt"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
)

// ErrLimitExceeded is wrapped by errors raised when a loop runs more
// iterations, or Execute nests deeper, than the loop limit allows.
var ErrLimitExceeded = errors.New("loop limit exceeded")

// RuntimeError is the single error type raised while evaluating a program.
// Its message is the whole description; Err optionally carries a sentinel
// or context error for errors.Is.
type RuntimeError struct {
	Message string

	// Instr is the innermost instruction that failed, if known.
	Instr ast.Instruction

	// Source is the text of the program Instr belongs to. For a failure
	// inside Execute this is the substituted program text.
	Source string

	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// newError creates a RuntimeError with the given message.
func newError(message string) *RuntimeError {
	return &RuntimeError{Message: message}
}

// newErrorf creates a RuntimeError with a formatted message.
func newErrorf(format string, args ...any) *RuntimeError {
	return newError(fmt.Sprintf(format, args...))
}

// newLimitError creates a RuntimeError wrapping ErrLimitExceeded.
func newLimitError(format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Message: fmt.Sprintf("%s: %s", ErrLimitExceeded, fmt.Sprintf(format, args...)),
		Err:     ErrLimitExceeded,
	}
}

// annotate records where err happened unless an inner evaluation already did.
func annotate(err error, instr ast.Instruction, source string) error {
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		return err
	}
	if rt.Instr == nil {
		rt.Instr = instr
		rt.Source = source
	}
	return err
}
