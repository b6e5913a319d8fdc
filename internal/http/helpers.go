package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/fire"
	"fintrack/internal/screens"
)

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// isHX reports whether the request came from a script rather than a plain
// form submission.
func isHX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// statusFor maps a domain error to the response code of the page that shows it.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, screens.ErrFieldsRequired),
		errors.Is(err, screens.ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, screens.ErrNotANumber),
		errors.Is(err, fire.ErrInvalidAge),
		errors.Is(err, fire.ErrNegativeAmount),
		errors.Is(err, fire.ErrPercentOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
