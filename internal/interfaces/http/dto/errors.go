package dto

import (
	"net/http"

	"github.com/gridmarket/backend/internal/domain/shared"
)

// General error codes used by the HTTP layer itself.
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeInternal   = "INTERNAL"
)

// errorCodeHTTPStatus maps domain error codes to HTTP status codes
var errorCodeHTTPStatus = map[string]int{
	shared.CodeNotFound:              http.StatusNotFound,
	shared.CodeNotAuthorized:         http.StatusForbidden,
	shared.CodeConflict:              http.StatusConflict,
	shared.CodeInvalidState:          http.StatusBadRequest,
	shared.CodeInsufficientResources: http.StatusUnprocessableEntity,
	shared.CodeInvariant:             http.StatusInternalServerError,
	ErrCodeBadRequest:                http.StatusBadRequest,
	ErrCodeInternal:                  http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
