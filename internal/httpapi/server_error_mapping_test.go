package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"routerd/internal/manager"
	"routerd/pkg/types"
)

func TestChat_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"admission", &manager.TaskError{Kind: manager.KindAdmissionExhausted}, http.StatusRequestEntityTooLarge, "AdmissionExhausted"},
		{"rate limited", &manager.TaskError{Kind: manager.KindRateLimited}, http.StatusTooManyRequests, "RateLimitedByProvider"},
		{"timeout", &manager.TaskError{Kind: manager.KindTimeout}, http.StatusGatewayTimeout, "Timeout"},
		{"transport", &manager.TaskError{Kind: manager.KindTransportFailure}, http.StatusBadGateway, "TransportFailure"},
		{"schema", &manager.TaskError{Kind: manager.KindSchemaError}, http.StatusBadGateway, "SchemaError"},
		{"rejected", &manager.TaskError{Kind: manager.KindProviderRejected}, http.StatusBadRequest, "ProviderRejected"},
		{"aborted", &manager.TaskError{Kind: manager.KindAborted}, http.StatusConflict, "Aborted"},
		{"model", manager.ErrModelNotFound("x"), http.StatusNotFound, ""},
		{"closed", manager.ErrClosed, http.StatusServiceUnavailable, ""},
		{"custom", mockHTTPError{msg: "nope", code: http.StatusTeapot}, http.StatusTeapot, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, c := range cases {
		w := postJSON(t, NewMux(&mockService{chatErr: c.err}), "/v1/chat/completions", chatBody, nil)
		if w.Code != c.code {
			t.Fatalf("%s: status=%d want %d", c.name, w.Code, c.code)
		}
		var body types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: json: %v", c.name, err)
		}
		if body.Code != c.code || body.Kind != c.kind || body.Error == "" {
			t.Fatalf("%s: body=%+v", c.name, body)
		}
	}
}
