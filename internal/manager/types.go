package manager

import (
	"container/list"
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"routerd/pkg/types"
)

// State is the lifecycle state of a task.
type State string

const (
	StatePending   State = "pending"
	StateAssigned  State = "assigned"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateAborted   State = "aborted"
)

// Operation selects the provider API a call targets.
type Operation string

const (
	OpChat       Operation = "chat/completions"
	OpEmbeddings Operation = "embeddings"
)

// Request is a unit of work submitted to the Manager.
type Request struct {
	// ID is the abort handle. Empty generates a UUID.
	ID string
	Op Operation
	// Models restricts eligible deployments to those serving any of these names.
	// Empty means any deployment.
	Models []string
	// Body is the JSON payload forwarded to the deployment.
	Body []byte
	// TokenDemand is the estimated token cost used for admission.
	TokenDemand int
	// Decode validates the response body. A decode error fails the task with SchemaError.
	Decode func(body []byte) (any, error)
}

// Result is the outcome of a successful task.
type Result struct {
	Value      any
	Raw        []byte
	Deployment string
	Model      string
	Attempts   int
}

// Call is what the Transport receives for one attempt.
type Call struct {
	Deployment types.Deployment
	Model      string
	Op         Operation
	Body       []byte
}

// Transport performs the network call for an admitted task. Implementations
// must return promptly once ctx is done.
type Transport interface {
	Send(ctx context.Context, call Call) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, call Call) ([]byte, error)

func (f TransportFunc) Send(ctx context.Context, call Call) ([]byte, error) { return f(ctx, call) }

// Handle is the future returned by Submit. It resolves exactly once.
type Handle struct {
	id   string
	done chan struct{}
	res  Result
	err  error
}

func newHandle(id string) *Handle { return &Handle{id: id, done: make(chan struct{})} }

// ID returns the abort handle.
func (h *Handle) ID() string { return h.id }

// Done is closed once the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task resolves or ctx is done. Returning on ctx does
// not cancel the task; call Manager.Abort for that.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.res, h.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve must be called once, under the Manager lock.
func (h *Handle) resolve(res Result, err error) {
	h.res, h.err = res, err
	close(h.done)
}

// task is the scheduler's record of a submitted Request.
type task struct {
	id          string
	req         Request
	seq         uint64
	retriesLeft int
	attempts    int
	state       State
	lastKind    ErrorKind
	submitted   time.Time

	eligible []*worker
	elem     *list.Element // set while Pending
	worker   *worker       // set while Assigned
	cancel   context.CancelCauseFunc
	aborting bool
	// parent links attempt spans to the submitter's trace.
	parent trace.SpanContext

	handle *Handle
}
