package ir

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConstValue is wrapped by a ParseError when an anonymous enum
	// item carries no explicit value.
	ErrMissingConstValue = errors.New("anonymous enum items require an explicit value")

	// ErrConstExprShape is wrapped by a ParseError when an enum item value
	// is not a single integer literal inside a constant expression.
	ErrConstExprShape = errors.New("enum value must be a ConstantExpr holding exactly one IntegerLiteral")
)

// ParseError is a fatal declaration parse failure.  It names the offending
// symbol; the underlying reason can be accessed via errors.Unwrap.
type ParseError struct {
	Symbol string
	Detail string
	cause  error
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Symbol, e.cause)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Symbol, e.cause, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.cause }
