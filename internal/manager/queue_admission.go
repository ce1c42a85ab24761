package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Submit enqueues req and returns its future. It fails fast, without
// queueing, when no deployment serves the requested models or when the token
// demand exceeds the capacity of every deployment that does.
func (m *Manager) Submit(ctx context.Context, req Request) (*Handle, error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.TokenDemand < 0 {
		return nil, invalidRequestError{msg: fmt.Sprintf("negative token demand %d", req.TokenDemand)}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Op == "" {
		req.Op = OpChat
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if _, live := m.tasks[req.ID]; live {
		return nil, duplicateTaskError{id: req.ID}
	}
	t := &task{
		id:          req.ID,
		req:         req,
		retriesLeft: m.maxRetries,
		submitted:   m.now(),
		parent:      trace.SpanContextFromContext(ctx),
		handle:      newHandle(req.ID),
	}
	supported := m.supportingWorkers(req.Models)
	if len(supported) == 0 {
		return nil, ErrModelNotFound(strings.Join(req.Models, ","))
	}
	for _, w := range supported {
		if w.canEverServe(req.TokenDemand) {
			t.eligible = append(t.eligible, w)
		}
	}
	if len(t.eligible) == 0 {
		tasksTotal.WithLabelValues(string(KindAdmissionExhausted)).Inc()
		m.emit("task_rejected", t, "", map[string]any{"kind": string(KindAdmissionExhausted)})
		return nil, &TaskError{
			Kind:   KindAdmissionExhausted,
			TaskID: t.id,
			Err:    fmt.Errorf("token demand %d exceeds the capacity of every eligible deployment", req.TokenDemand),
		}
	}

	m.tasks[t.id] = t
	m.enqueueLocked(t)
	m.emit("task_submitted", t, "", nil)
	m.drainLocked()
	return t.handle, nil
}

// enqueueLocked appends t to the tail with a fresh sequence number.
func (m *Manager) enqueueLocked(t *task) {
	m.seq++
	t.seq = m.seq
	t.state = StatePending
	t.elem = m.queue.PushBack(t)
	queueDepth.Set(float64(m.queue.Len()))
}

// drainLocked assigns queued tasks in FIFO order. It stops at the first task
// that no eligible worker can admit right now, so later tasks never overtake
// the head. Workers are tried in configuration order.
func (m *Manager) drainLocked() {
	for {
		front := m.queue.Front()
		if front == nil {
			return
		}
		t := front.Value.(*task)
		now := m.now()
		var (
			assigned *worker
			model    string
		)
		for _, w := range t.eligible {
			if mdl, ok := w.tryAdmit(t.id, t.req.Models, t.req.TokenDemand, now); ok {
				assigned, model = w, mdl
				break
			}
		}
		if assigned == nil {
			return
		}
		m.queue.Remove(front)
		t.elem = nil
		queueDepth.Set(float64(m.queue.Len()))
		m.dispatchLocked(t, assigned, model)
	}
}

// Abort cancels a live task. A pending task is removed from the queue and
// resolved as Aborted immediately; an assigned task has its call cancelled
// and resolves once the call returns. Unknown or finished handles yield
// ErrTaskNotFound.
func (m *Manager) Abort(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	switch t.state {
	case StatePending:
		m.queue.Remove(t.elem)
		t.elem = nil
		queueDepth.Set(float64(m.queue.Len()))
		m.failLocked(t, KindAborted, "", errAborted)
		// The head may have been the blocker.
		m.drainLocked()
	case StateAssigned:
		t.aborting = true
		if t.cancel != nil {
			t.cancel(errAborted)
		}
	}
	return nil
}

// completeLocked applies the outcome of one attempt: resolve, requeue at
// the tail for a transient failure with retries left, or fail.
func (m *Manager) completeLocked(t *task, deployment string, o outcome) {
	t.worker = nil
	t.cancel = nil
	if o.err == nil {
		t.state = StateSucceeded
		delete(m.tasks, t.id)
		m.succeeded++
		tasksTotal.WithLabelValues("succeeded").Inc()
		m.emit("task_succeeded", t, deployment, map[string]any{"attempts": t.attempts})
		t.handle.resolve(Result{
			Value:      o.value,
			Raw:        o.raw,
			Deployment: deployment,
			Model:      o.model,
			Attempts:   t.attempts,
		}, nil)
		return
	}
	kind := o.kind
	if t.aborting {
		kind = KindAborted
	}
	t.lastKind = kind
	if kind.Transient() && t.retriesLeft > 0 && !m.closed {
		t.retriesLeft--
		m.retries++
		retriesTotal.WithLabelValues(string(kind)).Inc()
		m.emit("task_retry", t, deployment, map[string]any{
			"kind":         string(kind),
			"retries_left": t.retriesLeft,
			"error":        o.err.Error(),
		})
		m.enqueueLocked(t)
		return
	}
	m.failLocked(t, kind, deployment, o.err)
}

// failLocked resolves t with a TaskError and forgets it.
func (m *Manager) failLocked(t *task, kind ErrorKind, deployment string, err error) {
	if kind == KindAborted {
		t.state = StateAborted
	} else {
		t.state = StateFailed
	}
	delete(m.tasks, t.id)
	m.failed++
	tasksTotal.WithLabelValues(string(kind)).Inc()
	m.emit("task_failed", t, deployment, map[string]any{"kind": string(kind), "attempts": t.attempts})
	t.handle.resolve(Result{}, &TaskError{Kind: kind, TaskID: t.id, Attempts: t.attempts, Err: err})
}
