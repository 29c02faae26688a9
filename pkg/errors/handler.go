package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the HTTP status code it should produce.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotAuthorized:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeCollision:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ClientMessage returns the message that is safe to expose to API clients.
// Internal errors are reduced to a generic message; the full chain stays in
// the server logs.
func ClientMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Type == ErrorTypeInternal {
		return "internal server error"
	}
	return appErr.Message
}
