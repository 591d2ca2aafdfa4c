package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCallerIdentity is a configuration error: caller name or e-mail is missing.
	ErrMissingCallerIdentity = errors.New("booking: caller name and email must be configured")
	// ErrSessionUnavailable means the browser session could not be opened.
	ErrSessionUnavailable = errors.New("booking: browser session unavailable")
	// ErrSearchFailed means the initial search failed, which aborts the run.
	ErrSearchFailed = errors.New("booking: search failed")
	// ErrRunInProgress means another run for the same caller holds the run lock.
	ErrRunInProgress = errors.New("booking: another run is in progress for this caller")
	// ErrRunCanceled means the caller aborted the run; partial results are returned.
	ErrRunCanceled = errors.New("booking: run canceled")
)

// Issue is one field-level problem with a run request.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = fmt.Sprintf("%s: %s", is.Field, is.Message)
	}
	return "booking: invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, code, message string) {
	e.Issues = append(e.Issues, Issue{Field: field, Message: message, Code: code})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
