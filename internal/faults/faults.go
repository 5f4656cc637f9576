package faults

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation marks malformed input rejected before any work starts.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a run request made while another run holds the slot.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks lookups for disks, categories, or runs that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks paths that resolve outside the safety root.
	ErrForbidden = errors.New("access denied")
	// ErrPrecondition marks a run-level precondition failure (source dir missing/unreadable).
	ErrPrecondition = errors.New("precondition failed")
)

// Wrap tags err (or a bare message) with the provided marker while keeping
// operation context in the message. The marker should be one of the exported
// sentinels above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrPrecondition
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// HTTPStatus maps a classified error onto the response code the API surfaces.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message strips the sentinel prefix so API payloads read naturally.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrForbidden, ErrPrecondition} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
