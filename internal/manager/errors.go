package manager

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorKind classifies why a task failed.
type ErrorKind string

const (
	KindRateLimited        ErrorKind = "RateLimitedByProvider"
	KindTransportFailure   ErrorKind = "TransportFailure"
	KindTimeout            ErrorKind = "Timeout"
	KindAborted            ErrorKind = "Aborted"
	KindSchemaError        ErrorKind = "SchemaError"
	KindAdmissionExhausted ErrorKind = "AdmissionExhausted"
	KindProviderRejected   ErrorKind = "ProviderRejected"
)

// Transient reports whether a failure of this kind is retried.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindRateLimited, KindTransportFailure, KindTimeout:
		return true
	}
	return false
}

// TaskError is the terminal error a Handle resolves with.
type TaskError struct {
	Kind     ErrorKind
	TaskID   string
	Attempts int
	Err      error
}

func (e *TaskError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("task %s: %s", e.TaskID, e.Kind)
	}
	return fmt.Sprintf("task %s: %s: %v", e.TaskID, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// StatusCode maps the kind to the HTTP status the API layer returns.
func (e *TaskError) StatusCode() int {
	switch e.Kind {
	case KindAdmissionExhausted:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindProviderRejected:
		return http.StatusBadRequest
	case KindAborted:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// KindOf extracts the ErrorKind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// IsAborted reports whether err resolved a task that was aborted.
func IsAborted(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindAborted
}

// IsAdmissionExhausted reports whether err is a submit-time capacity rejection.
func IsAdmissionExhausted(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindAdmissionExhausted
}

// ErrModelNotFound returns an error when no deployment serves any requested model.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func (e modelNotFoundError) StatusCode() int { return http.StatusNotFound }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// duplicateTaskError rejects a Submit whose ID is still live.
type duplicateTaskError struct{ id string }

func (e duplicateTaskError) Error() string { return "duplicate task handle: " + e.id }

func (e duplicateTaskError) StatusCode() int { return http.StatusConflict }

// IsDuplicateTask reports whether err rejected a reused live handle.
func IsDuplicateTask(err error) bool {
	var e duplicateTaskError
	return errors.As(err, &e)
}

// managerError is a comparable sentinel carrying an HTTP status.
type managerError struct {
	msg  string
	code int
}

func (e managerError) Error() string   { return e.msg }
func (e managerError) StatusCode() int { return e.code }

var (
	// ErrTaskNotFound is returned by Abort for unknown or already finished handles.
	ErrTaskNotFound error = managerError{msg: "task not found", code: http.StatusNotFound}
	// ErrClosed is returned by Submit after Close, and resolves tasks rejected by Close.
	ErrClosed error = managerError{msg: "manager closed", code: http.StatusServiceUnavailable}
)

// invalidRequestError rejects a Submit whose request cannot be admitted
// meaningfully, such as a negative token demand.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string   { return "invalid request: " + e.msg }
func (e invalidRequestError) StatusCode() int { return http.StatusBadRequest }

// IsInvalidRequest reports whether Submit rejected malformed input.
func IsInvalidRequest(err error) bool {
	var e invalidRequestError
	return errors.As(err, &e)
}
