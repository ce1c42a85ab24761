package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"routerd/internal/httpapi"
	"routerd/internal/llm"
	"routerd/internal/manager"
	"routerd/internal/registry"
	"routerd/internal/tokens"
	"routerd/internal/transport"
	"routerd/pkg/types"
)

// upstream is a fake provider endpoint. Handlers decide per call number.
type upstream struct {
	*httptest.Server
	calls   atomic.Int32
	mu      sync.Mutex
	headers []http.Header
	paths   []string
	started chan struct{}
	handle  func(n int, w http.ResponseWriter, r *http.Request)
}

func newUpstream(t *testing.T, handle func(n int, w http.ResponseWriter, r *http.Request)) *upstream {
	t.Helper()
	u := &upstream{started: make(chan struct{}, 16), handle: handle}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(u.calls.Add(1))
		// Consume the body up front; net/http only notices a client
		// disconnect once the request body has been read.
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		u.mu.Lock()
		u.headers = append(u.headers, r.Header.Clone())
		u.paths = append(u.paths, r.URL.Path)
		u.mu.Unlock()
		select {
		case u.started <- struct{}{}:
		default:
		}
		u.handle(n, w, r)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) lastHeader() http.Header {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.headers[len(u.headers)-1]
}

func (u *upstream) lastPath() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.paths[len(u.paths)-1]
}

func chatOK(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(types.ChatResponse{
		ID:      "chatcmpl-1",
		Choices: []types.ChatChoice{{FinishReason: "stop", Message: types.Message{Role: "assistant", Content: "hello back"}}},
		Usage:   types.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
	})
}

func embedOK(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	resp := types.EmbeddingResponse{}
	for i := range req.Input {
		resp.Data = append(resp.Data, types.Embedding{Index: i, Embedding: []float64{0.1, 0.2}})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// newRouter wires manifest -> transport -> manager -> llm -> httpapi the way
// the serve command does, minus process concerns.
func newRouter(t *testing.T, endpoints []types.Endpoint) (*httptest.Server, *manager.Manager) {
	t.Helper()
	deps, err := registry.Flatten(endpoints)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Deployments:  deps,
		Transport:    transport.New(transport.Options{}),
		TickInterval: -1,
		Logger:       zerolog.Nop(),
	})
	est := tokens.New(tokens.Options{Encoding: tokens.HeuristicEncoding, OverheadFactor: 1})
	svc := llm.New(mgr, est, llm.Options{Logger: zerolog.Nop()})
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close(context.Background())
	})
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, url string, payload []byte, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	return do(t, req)
}

func httpDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, _ := do(t, req)
	return resp
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("do req: %v", err)
		return &http.Response{}, nil
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
