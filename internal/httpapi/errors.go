package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"routerd/internal/manager"
	"routerd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status})
}

func writeErrorResponse(w http.ResponseWriter, resp types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Code)
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps a service error to its HTTP status. Errors without a
// status are internal.
func statusFor(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeServiceError maps err and writes it, counting 429s as backpressure.
func writeServiceError(w http.ResponseWriter, err error) int {
	resp := types.ErrorResponse{Error: err.Error(), Code: statusFor(err)}
	if kind, ok := manager.KindOf(err); ok {
		resp.Kind = string(kind)
	}
	if resp.Code == http.StatusTooManyRequests {
		IncrementBackpressure("provider_rate_limited")
	}
	writeErrorResponse(w, resp)
	return resp.Code
}
