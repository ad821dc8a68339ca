package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind classifies a stage error for logs and recorded error entries.
type ErrorKind string

const (
	ErrorKindExternal      ErrorKind = "external"
	ErrorKindValidation    ErrorKind = "validation"
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindTransient     ErrorKind = "transient"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// ErrorDetails is the structured view of an error produced by Wrap.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

type wrappedError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *wrappedError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker, detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, detail)
}

func (e *wrappedError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &wrappedError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// Details extracts the classification and context carried by err. Errors not
// produced by Wrap report their text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: ErrorKindUnknown}
	}
	details := ErrorDetails{Kind: Kind(err), Message: strings.TrimSpace(err.Error())}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		details.Stage = wrapped.stage
		details.Operation = wrapped.operation
		if wrapped.message != "" {
			details.Message = wrapped.message
		}
		details.Cause = wrapped.cause
	}
	return details
}

// Kind maps err onto an ErrorKind using the sentinel markers.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindUnknown
	case errors.Is(err, ErrValidation):
		return ErrorKindValidation
	case errors.Is(err, ErrConfiguration):
		return ErrorKindConfiguration
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrExternalTool):
		return ErrorKindExternal
	case errors.Is(err, ErrTransient):
		return ErrorKindTransient
	default:
		return ErrorKindUnknown
	}
}

// Retryable reports whether a failure is worth retrying within the same call.
// Validation, configuration and not-found failures never are.
func Retryable(err error) bool {
	switch Kind(err) {
	case ErrorKindValidation, ErrorKindConfiguration, ErrorKindNotFound:
		return false
	default:
		return err != nil
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
