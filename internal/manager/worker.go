package manager

import (
	"sync"
	"time"

	"routerd/pkg/types"
)

// worker owns the admission state of one deployment. Its lock is always
// acquired after the Manager lock, never before.
type worker struct {
	d       types.Deployment
	windows []time.Duration // ascending; the last one is strict

	mu       sync.Mutex
	log      windowLog
	inflight map[string]struct{}
	admitted uint64
}

func newWorker(d types.Deployment, windows []time.Duration) *worker {
	return &worker{d: d, windows: windows, inflight: make(map[string]struct{})}
}

func (w *worker) longest() time.Duration { return w.windows[len(w.windows)-1] }

// pickModel returns the first requested model this deployment serves. An
// empty request list accepts the deployment's primary model.
func (w *worker) pickModel(models []string) (string, bool) {
	if len(models) == 0 {
		if len(w.d.Models) == 0 {
			return "", true
		}
		return w.d.Models[0], true
	}
	for _, name := range models {
		if w.d.Supports(name) {
			return name, true
		}
	}
	return "", false
}

// canEverServe reports whether demand could be admitted on an idle worker.
func (w *worker) canEverServe(demand int) bool {
	if w.d.TPM > 0 && demand > windowCap(w.d.TPM, w.longest()) {
		return false
	}
	if w.d.RPM > 0 && windowCap(w.d.RPM, w.longest()) < 1 {
		return false
	}
	if w.d.ContextWindow > 0 && demand > w.d.ContextWindow {
		return false
	}
	return true
}

// fits must be called with w.mu held.
func (w *worker) fits(demand int, now time.Time) bool {
	if w.d.Concurrency > 0 && len(w.inflight) >= w.d.Concurrency {
		return false
	}
	last := len(w.windows) - 1
	for i, win := range w.windows {
		reqs, toks := w.log.usage(now, win)
		// An empty short window admits a single burst; only the longest
		// window caps unconditionally.
		if reqs == 0 && i < last {
			continue
		}
		if w.d.RPM > 0 && reqs+1 > windowCap(w.d.RPM, win) {
			return false
		}
		if w.d.TPM > 0 && toks+demand > windowCap(w.d.TPM, win) {
			return false
		}
	}
	return true
}

// tryAdmit checks capacity and, if the task fits, records the admission in
// one step. The returned model is the name the call should be sent with.
func (w *worker) tryAdmit(taskID string, models []string, demand int, now time.Time) (string, bool) {
	model, ok := w.pickModel(models)
	if !ok {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log.prune(now, w.longest())
	if !w.fits(demand, now) {
		return "", false
	}
	w.log.add(now, demand)
	w.inflight[taskID] = struct{}{}
	w.admitted++
	admissionsTotal.WithLabelValues(w.d.Name).Inc()
	inflightGauge.WithLabelValues(w.d.Name).Inc()
	return model, true
}

// settle releases the in-flight slot held by taskID. The window entry stays
// until it ages out.
func (w *worker) settle(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inflight[taskID]; !ok {
		return
	}
	delete(w.inflight, taskID)
	inflightGauge.WithLabelValues(w.d.Name).Dec()
}

func (w *worker) status(now time.Time) types.DeploymentStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.log.prune(now, w.longest())
	st := types.DeploymentStatus{
		Name:          w.d.Name,
		Models:        append([]string(nil), w.d.Models...),
		Inflight:      len(w.inflight),
		Concurrency:   w.d.Concurrency,
		RPM:           w.d.RPM,
		TPM:           w.d.TPM,
		AdmittedTotal: w.admitted,
	}
	for _, win := range w.windows {
		reqs, toks := w.log.usage(now, win)
		st.Windows = append(st.Windows, types.WindowUsage{
			Seconds:    win.Seconds(),
			Requests:   reqs,
			Tokens:     toks,
			RequestCap: windowCap(w.d.RPM, win),
			TokenCap:   windowCap(w.d.TPM, win),
		})
	}
	return st
}
