// Package screens holds the state behind each page as explicit containers:
// the transactions view, the FIRE planner, the advice chat, the add form and
// the session that ties them to the signed-in principal. Every container
// replaces its derived state wholesale and never lets an error escape as a
// panic.
package screens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/fire"
)

var (
	ErrViewClosed       = errors.New("view closed")
	ErrFieldsRequired   = errors.New("All fields are required")
	ErrEmptyDescription = core.ErrEmptyDescription
	ErrEmptyAdvice      = errors.New("no advice returned")
	ErrNotANumber       = errors.New("not a number")
)

// UserMessage turns an error into the text shown on the page.
func UserMessage(err error) string {
	var se *api.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, auth.ErrNotAuthenticated):
		return auth.ErrNotAuthenticated.Error()
	case errors.Is(err, core.ErrInvalidDataFormat):
		return "Invalid data format from API"
	case errors.As(err, &se):
		if se.Message != "" {
			return fmt.Sprintf("Server error (%d): %s", se.StatusCode, se.Message)
		}
		return fmt.Sprintf("Server error (%d)", se.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "The finance service took too long to respond"
	case errors.Is(err, ErrFieldsRequired),
		errors.Is(err, ErrEmptyDescription),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, ErrEmptyAdvice),
		errors.Is(err, ErrViewClosed):
		return err.Error()
	case errors.Is(err, ErrNotANumber),
		errors.Is(err, fire.ErrInvalidAge),
		errors.Is(err, fire.ErrNegativeAmount),
		errors.Is(err, fire.ErrPercentOutOfRange):
		return strings.ReplaceAll(err.Error(), "\n", "; ")
	default:
		return "Could not reach the finance service"
	}
}
