package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"routerd/internal/llm"
	"routerd/pkg/types"
)

type mockService struct {
	mu       sync.Mutex
	models   []string
	status   types.StatusResponse
	ready    bool
	chatErr  error
	embedErr error
	abortErr error
	block    bool // wait for ctx in Chat
	lastChat llm.ModelConfig
	lastMsgs []types.Message
	aborted  []string
}

func (m *mockService) ListModels() []string          { return append([]string(nil), m.models...) }
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                   { return m.ready }

func (m *mockService) Chat(ctx context.Context, msgs []types.Message, cfg llm.ModelConfig) (*llm.ChatResult, error) {
	m.mu.Lock()
	m.lastChat, m.lastMsgs = cfg, msgs
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	return &llm.ChatResult{
		Handle:     cfg.Handle,
		Deployment: "east/gpt",
		Model:      "gpt-4o",
		Attempts:   2,
		Response: types.ChatResponse{
			ID:      "c1",
			Choices: []types.ChatChoice{{Index: 0, FinishReason: "stop", Message: types.Message{Role: "assistant", Content: "hi"}}},
			Usage:   types.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4},
		},
	}, nil
}

func (m *mockService) Embed(ctx context.Context, input []string, cfg llm.EmbedConfig) (*llm.EmbeddingResult, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	resp := types.EmbeddingResponse{}
	for i := range input {
		resp.Data = append(resp.Data, types.Embedding{Index: i, Embedding: []float64{float64(i)}})
	}
	return &llm.EmbeddingResult{Handle: cfg.Handle, Deployment: "east/emb", Attempts: 1, Response: resp}, nil
}

func (m *mockService) Abort(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abortErr != nil {
		return m.abortErr
	}
	m.aborted = append(m.aborted, handle)
	return nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(t *testing.T, h http.Handler, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
