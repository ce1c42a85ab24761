package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"routerd/pkg/types"
)

const chatBody = `{"model":"gpt-4o","models":["gpt-4o-mini","gpt-4o"],"messages":[{"role":"user","content":"hello"}],"max_tokens":64,"temperature":0.5}`

func TestModelsHandler(t *testing.T) {
	r := NewMux(&mockService{models: []string{"m1", "m2"}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{QueueLen: 3, State: "ready"}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.QueueLen != 3 || body.State != "ready" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthAndReady(t *testing.T) {
	svc := &mockService{ready: true}
	r := NewMux(svc)
	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, w.Code)
		}
	}
	svc.ready = false
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unready status=%d", w.Code)
	}
}

func TestChat_Success(t *testing.T) {
	svc := &mockService{}
	w := postJSON(t, NewMux(svc), "/v1/chat/completions", chatBody, map[string]string{HandleHeader: "job-7"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(HandleHeader); got != "job-7" {
		t.Fatalf("handle header=%q", got)
	}
	if w.Header().Get("X-Deployment") != "east/gpt" || w.Header().Get("X-Attempts") != "2" {
		t.Fatalf("route headers=%v", w.Header())
	}
	var resp types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Choices[0].Message.Content != "hi" || resp.Usage.TotalTokens != 4 {
		t.Fatalf("resp=%+v", resp)
	}
	cfg := svc.lastChat
	if strings.Join(cfg.Models, ",") != "gpt-4o,gpt-4o-mini" {
		t.Fatalf("models=%v", cfg.Models)
	}
	if cfg.MaxTokens != 64 || cfg.Temperature == nil || *cfg.Temperature != 0.5 || cfg.Handle != "job-7" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestChat_GeneratesHandle(t *testing.T) {
	svc := &mockService{}
	w := postJSON(t, NewMux(svc), "/v1/chat/completions", chatBody, nil)
	h := w.Header().Get(HandleHeader)
	if h == "" || h != svc.lastChat.Handle {
		t.Fatalf("handle header=%q cfg handle=%q", h, svc.lastChat.Handle)
	}
}

func TestChat_BadRequests(t *testing.T) {
	r := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatBody))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content-type status=%d", w.Code)
	}
	if w := postJSON(t, r, "/v1/chat/completions", `{"messages":`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid json status=%d", w.Code)
	}
	if w := postJSON(t, r, "/v1/chat/completions", `{"model":"m","messages":[]}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty messages status=%d", w.Code)
	}
}

func TestChat_BodyLimit(t *testing.T) {
	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	w := postJSON(t, NewMux(&mockService{}), "/v1/chat/completions", chatBody, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized body status=%d", w.Code)
	}
}

func TestChat_RequestTimeout(t *testing.T) {
	SetRequestTimeout(20 * time.Millisecond)
	defer SetRequestTimeout(0)
	w := postJSON(t, NewMux(&mockService{block: true}), "/v1/chat/completions", chatBody, nil)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestEmbeddings(t *testing.T) {
	r := NewMux(&mockService{})
	w := postJSON(t, r, "/v1/embeddings", `{"model":"emb","input":["a","b"]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.EmbeddingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("data=%+v", resp.Data)
	}
	if w := postJSON(t, r, "/v1/embeddings", `{"input":[]}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty input status=%d", w.Code)
	}
}

func TestAbortHandler(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/tasks/job-1", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if len(svc.aborted) != 1 || svc.aborted[0] != "job-1" {
		t.Fatalf("aborted=%v", svc.aborted)
	}

	svc.abortErr = mockHTTPError{msg: "task not found", code: http.StatusNotFound}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/tasks/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown handle status=%d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	SetCORSOptions(true, []string{"https://app.example"}, []string{"GET", "POST", "DELETE"}, []string{"Content-Type", HandleHeader})
	defer SetCORSOptions(false, nil, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow-origin=%q (status %d)", got, w.Code)
	}
}

func TestRouteModels(t *testing.T) {
	if got := routeModels("", []string{"a"}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("got %v", got)
	}
	if got := routeModels("a", []string{"b", "a"}); strings.Join(got, ",") != "a,b" {
		t.Fatalf("got %v", got)
	}
}
