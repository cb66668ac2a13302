package dsl

import (
	"errors"
	"fmt"
)

// Error definitions
var (
	ErrSyntax           = errors.New("syntax error")
	ErrUndefined        = errors.New("undefined name")
	ErrArgument         = errors.New("invalid argument")
	ErrStepLimit        = errors.New("step limit exceeded")
	ErrSandboxViolation = errors.New("sandbox violation")
)

// SyntaxError locates a parse failure. It matches ErrSyntax.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// LineError attaches the source line of the failing statement to a
// runtime error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }
