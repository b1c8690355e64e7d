package domain

import (
	"errors"
	"fmt"
)

var (
	// Normalization.
	ErrUnreadableFile = errors.New("unreadable file")

	// Extraction call, all terminal for the call itself.
	ErrNetwork = errors.New("network failure")
	ErrAuth    = errors.New("unauthorized")
	ErrAPI     = errors.New("extraction api failure")
	ErrParse   = errors.New("unparseable extraction response")
	ErrTimeout = errors.New("extraction timed out")

	// Successful extraction with an empty result. Not a failure.
	ErrNoEntitiesFound = errors.New("no entities found")

	// Bulk commit where every confirmed entity failed outright.
	ErrCommitFailed = errors.New("commit failed")

	ErrInvalidInput      = errors.New("invalid input")
	ErrSessionNotFound   = errors.New("session not found")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrInvalidTransition = errors.New("invalid step transition")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage maps an error to the message shown to the user. Raw technical
// detail stays in the wrapped chain for diagnostic display on request.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnreadableFile):
		return "We could not read one of your files. Please re-upload it."
	case errors.Is(err, ErrTimeout):
		return "The extraction took too long and was cancelled. Try again with fewer or smaller files."
	case errors.Is(err, ErrNetwork):
		return "We could not reach the extraction service. Check your connection and try again."
	case errors.Is(err, ErrAuth):
		return "Your workspace is not authorized for extraction. Re-authenticate and try again."
	case errors.Is(err, ErrParse):
		return "The extraction service returned something we could not understand. Try again."
	case errors.Is(err, ErrAPI):
		return "The extraction service reported an error. Try again in a moment."
	case errors.Is(err, ErrNoEntitiesFound):
		return "No services were found in the provided documents."
	case errors.Is(err, ErrCommitFailed):
		return "None of the selected entities could be saved. Review the errors and retry."
	default:
		return "Something went wrong. Please try again."
	}
}
