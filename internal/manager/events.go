package manager

import "time"

// Event represents a task lifecycle event.
// Minimal and stable: name + task id, the deployment when one is involved,
// and optional fields via key/values.
type Event struct {
	Name       string         `json:"name"`
	TaskID     string         `json:"task_id"`
	Deployment string         `json:"deployment,omitempty"`
	At         time.Time      `json:"at"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish is called with the manager lock held
// and must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// emit logs e and forwards it to the publisher. Caller holds m.mu.
func (m *Manager) emit(name string, t *task, deployment string, fields map[string]any) {
	ev := m.log.Debug()
	switch name {
	case "task_retry":
		ev = m.log.Warn()
	case "task_failed", "task_rejected":
		ev = m.log.Info()
	}
	ev = ev.Str("event", name).Str("task", t.id).Int("demand", t.req.TokenDemand)
	if deployment != "" {
		ev = ev.Str("deployment", deployment)
	}
	ev.Fields(fields).Msg("manager")
	m.publisher.Publish(Event{Name: name, TaskID: t.id, Deployment: deployment, At: m.now(), Fields: fields})
}
