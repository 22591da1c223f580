package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes used across the domain. Every caller-facing failure carries one
// of these codes; INVARIANT is reserved for internal consistency defects and
// is never caller-triggerable.
const (
	CodeNotFound              = "NOT_FOUND"
	CodeNotAuthorized         = "NOT_AUTHORIZED"
	CodeConflict              = "CONFLICT"
	CodeInvalidState          = "INVALID_STATE"
	CodeInsufficientResources = "INSUFFICIENT_RESOURCES"
	CodeInvariant             = "INVARIANT"
)

// ErrorCode extracts the domain error code from err, unwrapping as needed.
// Errors that are not domain errors report the INVARIANT code: anything
// escaping the domain untyped is a defect.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInvariant
}

// Common domain errors
var (
	ErrNotFound              = NewDomainError(CodeNotFound, "Resource not found")
	ErrNotAuthorized         = NewDomainError(CodeNotAuthorized, "Not authorized to perform this action")
	ErrConflict              = NewDomainError(CodeConflict, "Resource already exists")
	ErrInvalidState          = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientResources = NewDomainError(CodeInsufficientResources, "Insufficient resources available")
	ErrInvariant             = NewDomainError(CodeInvariant, "Internal consistency violation")
)
