package php

import "fmt"

// ErrorCode identifies a recoverable failure reported by the domain.
// None of them abort a build.
type ErrorCode string

const (
	// InvalidSignature means the text did not match the signature grammar.
	InvalidSignature ErrorCode = "INVALID_SIGNATURE"
	// MissingEnclosingType means a member was declared with no known owner.
	MissingEnclosingType ErrorCode = "MISSING_ENCLOSING_TYPE"
	// DuplicateDeclaration means a canonical name was registered by two documents.
	DuplicateDeclaration ErrorCode = "DUPLICATE_DECLARATION"
	// UnbalancedArgumentGroups means optional-group brackets did not nest.
	UnbalancedArgumentGroups ErrorCode = "UNBALANCED_ARGUMENT_GROUPS"
	// UnresolvedReference means every lookup candidate missed.
	UnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"
	// UnresolvedReservedKeyword is an unresolved built-in type name. Never logged.
	UnresolvedReservedKeyword ErrorCode = "UNRESOLVED_RESERVED_KEYWORD"
)

// Error carries an ErrorCode along with the offending input.
type Error struct {
	Code    ErrorCode
	Input   string
	Message string
}

func (e *Error) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %q", e.Code, e.Message, e.Input)
}

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, php.ErrInvalidSignature).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidSignature     = &Error{Code: InvalidSignature, Message: "invalid signature"}
	ErrMissingEnclosingType = &Error{Code: MissingEnclosingType, Message: "in-class declaration requires an enclosing type"}
)

func newError(code ErrorCode, input, format string, args ...any) *Error {
	return &Error{Code: code, Input: input, Message: fmt.Sprintf(format, args...)}
}

// Outcome reports which path a recoverable operation took.
type Outcome int

const (
	OK Outcome = iota
	FallbackApplied
	Warned
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case FallbackApplied:
		return "fallback"
	case Warned:
		return "warned"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}
