package manager

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"routerd/pkg/types"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// fakeClock is a manually advanced admission clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// statusErr mimics a provider HTTP failure.
type statusErr int

func (e statusErr) Error() string   { return http.StatusText(int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

// reply is what a gated call returns.
type reply struct {
	body []byte
	err  error
}

// gatedCall is one in-flight call held by gateTransport until the test replies.
type gatedCall struct {
	Call
	ctx   context.Context
	reply chan reply
}

func (g *gatedCall) ok(body string) { g.reply <- reply{body: []byte(body)} }
func (g *gatedCall) fail(err error)  { g.reply <- reply{err: err} }

// gateTransport hands every call to the test and blocks until it is
// answered or the call context ends.
type gateTransport struct {
	calls chan *gatedCall
}

func newGateTransport() *gateTransport {
	return &gateTransport{calls: make(chan *gatedCall, 64)}
}

func (g *gateTransport) Send(ctx context.Context, call Call) ([]byte, error) {
	gc := &gatedCall{Call: call, ctx: ctx, reply: make(chan reply, 1)}
	g.calls <- gc
	select {
	case r := <-gc.reply:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// next waits for the next dispatched call.
func (g *gateTransport) next(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case gc := <-g.calls:
		return gc
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a dispatched call")
		return nil
	}
}

// none asserts no call is dispatched within a short grace period.
func (g *gateTransport) none(t *testing.T) {
	t.Helper()
	select {
	case gc := <-g.calls:
		t.Fatalf("unexpected call to %s for %s", gc.Deployment.Name, gc.Model)
	case <-time.After(30 * time.Millisecond):
	}
}

// countingTransport answers every call with fn and counts attempts.
type countingTransport struct {
	mu    sync.Mutex
	n     int
	calls []Call
	fn    func(ctx context.Context, n int, call Call) ([]byte, error)
}

func (c *countingTransport) Send(ctx context.Context, call Call) ([]byte, error) {
	c.mu.Lock()
	c.n++
	n := c.n
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	return c.fn(ctx, n, call)
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// newTestManager builds a Manager with the ticker disabled and registers Close.
func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.TickInterval == 0 {
		cfg.TickInterval = -1
	}
	cfg.Logger = zerolog.Nop()
	m := NewWithConfig(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func dep(name string, models ...string) types.Deployment {
	return types.Deployment{Name: name, Endpoint: "http://" + name, DeploymentName: name, Models: models}
}

func submit(t *testing.T, m *Manager, id string, demand int, models ...string) *Handle {
	t.Helper()
	h, err := m.Submit(context.Background(), Request{ID: id, Models: models, TokenDemand: demand, Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Submit(%s): %v", id, err)
	}
	return h
}

func wait(t *testing.T, h *Handle) (Result, error) {
	t.Helper()
	res, err := h.Wait(testCtx(t))
	if err == context.DeadlineExceeded {
		t.Fatalf("handle %s did not resolve", h.ID())
	}
	return res, err
}

func assertState(t *testing.T, m *Manager, id string, want State) {
	t.Helper()
	got, ok := m.TaskState(id)
	if !ok {
		t.Fatalf("task %s not live, want %s", id, want)
	}
	if got != want {
		t.Fatalf("task %s state = %s, want %s", id, got, want)
	}
}
