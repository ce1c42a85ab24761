package manager

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"routerd/internal/tracing"
)

// outcome is the classified result of one attempt.
type outcome struct {
	value any
	raw   []byte
	model string
	kind  ErrorKind
	err   error
}

// dispatchLocked starts the call for an admitted task. Caller holds m.mu.
func (m *Manager) dispatchLocked(t *task, w *worker, model string) {
	t.state = StateAssigned
	t.worker = w
	t.attempts++
	ctx, cancel := context.WithCancelCause(m.baseCtx)
	t.cancel = cancel
	timeout := timeoutFor(w.d, t.req.TokenDemand, m.defaultTimeout)
	disarm := arm(timeout, cancel)
	m.emit("task_assigned", t, w.d.Name, map[string]any{
		"model":      model,
		"attempt":    t.attempts,
		"timeout_ms": timeout.Milliseconds(),
	})
	call := Call{Deployment: w.d, Model: model, Op: t.req.Op, Body: t.req.Body}
	ctx, span := tracing.StartSpan(trace.ContextWithSpanContext(ctx, t.parent), "scheduler.attempt",
		attribute.String("task.id", t.id),
		attribute.String("deployment", w.d.Name),
		attribute.String("model", model),
		attribute.Int("attempt", t.attempts),
		attribute.Int("token_demand", t.req.TokenDemand),
	)
	m.calls.Add(1)
	go m.run(ctx, cancel, disarm, span, t, w, call)
}

// run performs one attempt off-lock, then settles the worker and feeds the
// outcome back into the queue.
func (m *Manager) run(ctx context.Context, cancel context.CancelCauseFunc, disarm func() bool, span trace.Span, t *task, w *worker, call Call) {
	defer m.calls.Done()
	defer span.End()
	start := time.Now()
	body, err := m.send(ctx, call)
	disarm()
	o := outcome{raw: body, model: call.Model}
	switch {
	case err != nil:
		o.kind, o.err = classify(ctx, err), err
	case t.req.Decode != nil:
		v, derr := t.req.Decode(body)
		if derr != nil {
			o.kind, o.err = KindSchemaError, errors.Wrap(derr, "decode response")
		} else {
			o.value = v
		}
	default:
		o.value = body
	}
	// Cause must be read before the context is released.
	cancel(nil)
	if o.err != nil {
		span.RecordError(o.err)
		span.SetStatus(codes.Error, string(o.kind))
	}
	m.log.Debug().Str("task", t.id).Str("deployment", w.d.Name).Dur("elapsed", time.Since(start)).Err(o.err).Msg("call returned")

	w.settle(t.id)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeLocked(t, w.d.Name, o)
	m.drainLocked()
}

// send guards the transport against panics so a faulty implementation
// cannot leak the worker's in-flight slot.
func (m *Manager) send(ctx context.Context, call Call) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("transport panic: %v", r)
		}
	}()
	if m.transport == nil {
		return nil, errors.New("no transport configured")
	}
	return m.transport.Send(ctx, call)
}

// classify maps a failed attempt to an ErrorKind. The context cause wins
// over whatever error the transport surfaced for the cancellation.
func classify(ctx context.Context, err error) ErrorKind {
	if ctx.Err() != nil {
		switch cause := context.Cause(ctx); {
		case errors.Is(cause, errDeadline):
			return KindTimeout
		default:
			// Caller abort or manager shutdown.
			return KindAborted
		}
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return KindRateLimited
		case code == http.StatusRequestTimeout:
			return KindTimeout
		case code >= 500:
			return KindTransportFailure
		default:
			return KindProviderRejected
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransportFailure
}
