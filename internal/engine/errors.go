package engine

import (
	"errors"
	"fmt"
)

// Error represents a failure detected during an engine operation.
//
// The taxonomy mirrors how each failure degrades:
//   - MISSING_SCOPE: a referenced scope no longer exists; the item is skipped
//   - UNKNOWN_SCOPE_TYPE: the caller passed an invalid scope type
//   - MISSING_TEMPLATE: a rule references a template that isn't stored
//
// Parse warnings, condition type mismatches, and dedupe-key collisions are
// NOT errors: the first two resolve to a default/non-match inside the
// operation, and a key collision resolves to "already exists".
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ScopeType/ScopeID identify the affected scope, when known.
	ScopeType string
	ScopeID   string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeMissingScope indicates a scope id that no longer resolves.
	ErrCodeMissingScope ErrorCode = "MISSING_SCOPE"

	// ErrCodeUnknownScopeType indicates an invalid scope type argument.
	ErrCodeUnknownScopeType ErrorCode = "UNKNOWN_SCOPE_TYPE"

	// ErrCodeMissingTemplate indicates a rule whose template isn't stored.
	ErrCodeMissingTemplate ErrorCode = "MISSING_TEMPLATE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ScopeID != "" {
		return fmt.Sprintf("%s: %s (scope=%s/%s)", e.Code, e.Message, e.ScopeType, e.ScopeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMissingScope returns true if the error is a missing-scope error.
// Uses errors.As to handle wrapped errors.
func IsMissingScope(err error) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeMissingScope
	}
	return false
}

// NewMissingScopeError creates an Error for a dangling scope reference.
func NewMissingScopeError(scopeType, scopeID string) *Error {
	return &Error{
		Code:      ErrCodeMissingScope,
		Message:   "scope no longer exists",
		ScopeType: scopeType,
		ScopeID:   scopeID,
	}
}
