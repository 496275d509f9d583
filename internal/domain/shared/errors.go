package shared

import "errors"

// Error codes shared by every layer. The HTTP layer maps them to status codes.
const (
	CodeUnauthenticated          = "UNAUTHENTICATED"
	CodeValidation               = "VALIDATION_ERROR"
	CodeNotFound                 = "NOT_FOUND"
	CodePersistenceInconsistency = "PERSISTENCE_INCONSISTENCY"
	CodePersistence              = "PERSISTENCE_ERROR"
	CodeInvalidArtifact          = "INVALID_ARTIFACT"
	CodeRenderTimeout            = "RENDER_TIMEOUT"
	CodeRenderFailure            = "RENDER_FAILURE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, shared.ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying the error that caused it
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the domain error code of err, or an empty string.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrUnauthenticated          = NewDomainError(CodeUnauthenticated, "User not authenticated")
	ErrValidation               = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound                 = NewDomainError(CodeNotFound, "Resource not found")
	ErrPersistenceInconsistency = NewDomainError(CodePersistenceInconsistency, "Write could not be verified or completed")
	ErrPersistence              = NewDomainError(CodePersistence, "Persistence operation failed")
	ErrInvalidArtifact          = NewDomainError(CodeInvalidArtifact, "Rendered artifact is not a valid PDF")
	ErrRenderTimeout            = NewDomainError(CodeRenderTimeout, "Rendering timed out")
	ErrRenderFailure            = NewDomainError(CodeRenderFailure, "Rendering failed")
)
