package manager

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"routerd/pkg/types"
)

type Manager struct {
	mu      sync.Mutex
	workers []*worker
	queue   list.List // of *task, FIFO by seq
	tasks   map[string]*task
	seq     uint64
	closed  bool

	maxRetries     int
	windows        []time.Duration
	defaultTimeout time.Duration
	transport      Transport
	log            zerolog.Logger
	publisher      EventPublisher
	now            func() time.Time
	startTime      time.Time

	// Counters reported by Status.
	succeeded uint64
	failed    uint64
	retries   uint64

	baseCtx    context.Context
	cancelBase context.CancelFunc
	calls      sync.WaitGroup
	stopTick   chan struct{}
	tickDone   chan struct{}
}

// Ready reports whether the manager accepts work: it is open and has at
// least one deployment.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && len(m.workers) > 0
}

// ListModels returns the routable model names in configuration order.
func (m *Manager) ListModels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range m.workers {
		for _, name := range w.d.Models {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// Deployments returns a copy of the configured deployment descriptors.
func (m *Manager) Deployments() []types.Deployment {
	out := make([]types.Deployment, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, w.d)
	}
	return out
}

// SetEventPublisher installs the lifecycle event sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// TaskState reports the current state of a live task.
func (m *Manager) TaskState(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return "", false
	}
	return t.state, true
}

func (m *Manager) tickLoop(interval time.Duration) {
	defer close(m.tickDone)
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			m.tick()
		case <-m.stopTick:
			return
		}
	}
}

// tick re-runs the drain loop so tasks blocked only by window capacity are
// admitted once old log entries expire.
func (m *Manager) tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.queue.Len() == 0 {
		return
	}
	m.drainLocked()
}
