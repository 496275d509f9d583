package dto

import (
	"net/http"

	"github.com/invoicer/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeMethodNotAllowed is used when a route exists for another method
	ErrCodeMethodNotAllowed = "ERR_METHOD_NOT_ALLOWED"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when a client sent too many requests
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Authentication error codes
const (
	// ErrCodeUnauthenticated is used when no valid principal is present
	ErrCodeUnauthenticated = "ERR_UNAUTHENTICATED"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeTokenRevoked is used when the auth token was signed out
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
)

// Persistence error codes
const (
	// ErrCodePersistence is used when a store operation failed outright
	ErrCodePersistence = "ERR_PERSISTENCE"
	// ErrCodePersistenceInconsistency is used when a write could not be verified or completed
	ErrCodePersistenceInconsistency = "ERR_PERSISTENCE_INCONSISTENCY"
)

// Rendering error codes
const (
	// ErrCodeInvalidArtifact is used when the rendering service returned something other than a PDF
	ErrCodeInvalidArtifact = "ERR_INVALID_ARTIFACT"
	// ErrCodeRenderTimeout is used when the document did not settle in time
	ErrCodeRenderTimeout = "ERR_RENDER_TIMEOUT"
	// ErrCodeRenderFailure is used for any other rendering failure
	ErrCodeRenderFailure = "ERR_RENDER_FAILURE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:          http.StatusInternalServerError,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	// Auth errors
	ErrCodeUnauthenticated: http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeTokenRevoked:    http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,

	// Persistence errors -> 500
	ErrCodePersistence:              http.StatusInternalServerError,
	ErrCodePersistenceInconsistency: http.StatusInternalServerError,

	// Rendering errors -> upstream failures
	ErrCodeInvalidArtifact: http.StatusBadGateway,
	ErrCodeRenderFailure:   http.StatusBadGateway,
	ErrCodeRenderTimeout:   http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	shared.CodeUnauthenticated:          ErrCodeUnauthenticated,
	shared.CodeValidation:               ErrCodeValidation,
	shared.CodeNotFound:                 ErrCodeNotFound,
	shared.CodePersistenceInconsistency: ErrCodePersistenceInconsistency,
	shared.CodePersistence:              ErrCodePersistence,
	shared.CodeInvalidArtifact:          ErrCodeInvalidArtifact,
	shared.CodeRenderTimeout:            ErrCodeRenderTimeout,
	shared.CodeRenderFailure:            ErrCodeRenderFailure,
	"ALREADY_EXISTS":                    ErrCodeAlreadyExists,
	"INTERNAL_ERROR":                    ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
