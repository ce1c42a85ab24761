package manager

import (
	"time"

	"routerd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	resp := types.StatusResponse{
		QueueLen:       m.queue.Len(),
		SucceededTotal: m.succeeded,
		FailedTotal:    m.failed,
		RetriesTotal:   m.retries,
		UptimeSeconds:  int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		State:          "ready",
	}
	if m.closed {
		resp.State = "closed"
	}
	for _, t := range m.tasks {
		if t.state == StateAssigned {
			resp.Assigned++
		}
	}
	resp.Deployments = make([]types.DeploymentStatus, 0, len(m.workers))
	for _, w := range m.workers {
		resp.Deployments = append(resp.Deployments, w.status(now))
	}
	return resp
}
