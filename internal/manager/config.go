package manager

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"routerd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxRetries   = 3
	defaultTickInterval = 250 * time.Millisecond
	defaultTimeout      = 60 * time.Second
)

// DefaultWindows mirrors common provider burst rules: a per-second, a
// ten-second and the per-minute window the RPM/TPM limits are expressed in.
var DefaultWindows = []time.Duration{time.Second, 10 * time.Second, time.Minute}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Deployments in routing order. The drain loop tries eligible workers in this order.
	Deployments []types.Deployment
	Transport   Transport
	// MaxRetries bounds requeues after transient failures. 0 uses the default; negative disables retry.
	MaxRetries int
	// Windows are the tracked rate windows; the longest is treated as the strict minute budget.
	Windows []time.Duration
	// TickInterval drives the window-expiry drain. Negative disables the ticker.
	TickInterval time.Duration
	// DefaultTimeout applies when a deployment configures neither timeout field.
	DefaultTimeout time.Duration
	Logger         zerolog.Logger
	Publisher      EventPublisher
	// Now overrides the admission clock (tests).
	Now func() time.Time
}

// New constructs a Manager with package defaults.
func New(deployments []types.Deployment, tr Transport) *Manager {
	// Delegate to NewWithConfig to centralize defaults and option parsing
	return NewWithConfig(ManagerConfig{
		Deployments: deployments,
		Transport:   tr,
	})
}

// NewWithConfig constructs a Manager from ManagerConfig and starts the
// window-expiry ticker unless disabled.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		tasks:     make(map[string]*task),
		transport: cfg.Transport,
		log:       cfg.Logger,
		publisher: cfg.Publisher,
		now:       cfg.Now,
		startTime: time.Now(),
	}
	m.queue.Init()
	// Apply defaults if unset
	switch {
	case cfg.MaxRetries < 0:
		m.maxRetries = 0
	case cfg.MaxRetries == 0:
		m.maxRetries = defaultMaxRetries
	default:
		m.maxRetries = cfg.MaxRetries
	}
	if len(cfg.Windows) == 0 {
		m.windows = append([]time.Duration(nil), DefaultWindows...)
	} else {
		m.windows = append([]time.Duration(nil), cfg.Windows...)
		sort.Slice(m.windows, func(i, j int) bool { return m.windows[i] < m.windows[j] })
	}
	if cfg.DefaultTimeout <= 0 {
		m.defaultTimeout = defaultTimeout
	} else {
		m.defaultTimeout = cfg.DefaultTimeout
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.workers = make([]*worker, 0, len(cfg.Deployments))
	for _, d := range cfg.Deployments {
		m.workers = append(m.workers, newWorker(d, m.windows))
	}
	m.baseCtx, m.cancelBase = context.WithCancel(context.Background())

	interval := cfg.TickInterval
	if interval == 0 {
		interval = defaultTickInterval
	}
	m.stopTick = make(chan struct{})
	m.tickDone = make(chan struct{})
	if interval > 0 {
		go m.tickLoop(interval)
	} else {
		close(m.tickDone)
	}
	return m
}
