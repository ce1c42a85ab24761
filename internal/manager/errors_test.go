package manager

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorKind_Transient(t *testing.T) {
	for _, k := range []ErrorKind{KindRateLimited, KindTransportFailure, KindTimeout} {
		if !k.Transient() {
			t.Fatalf("%s should be transient", k)
		}
	}
	for _, k := range []ErrorKind{KindAborted, KindSchemaError, KindAdmissionExhausted, KindProviderRejected} {
		if k.Transient() {
			t.Fatalf("%s should be final", k)
		}
	}
}

func TestTaskError_StatusCodeAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &TaskError{Kind: KindTimeout, TaskID: "x", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatalf("TaskError should unwrap to its cause")
	}
	var te *TaskError
	if !errors.As(err, &te) || te.StatusCode() != http.StatusGatewayTimeout {
		t.Fatalf("status = %v", te)
	}
	if (&TaskError{Kind: KindAdmissionExhausted}).StatusCode() != http.StatusRequestEntityTooLarge {
		t.Fatalf("admission exhausted should map to 413")
	}
	if (&TaskError{Kind: KindAborted}).StatusCode() != http.StatusConflict {
		t.Fatalf("aborted should map to 409")
	}
}

func TestModelNotFound(t *testing.T) {
	err := fmt.Errorf("route: %w", ErrModelNotFound("x"))
	if !IsModelNotFound(err) {
		t.Fatalf("expected IsModelNotFound true")
	}
	if IsModelNotFound(errors.New("x")) {
		t.Fatalf("expected IsModelNotFound false")
	}
}
