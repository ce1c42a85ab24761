package manager

// supportingWorkers returns, in configuration order, the workers serving any
// of models. Empty models matches every worker.
func (m *Manager) supportingWorkers(models []string) []*worker {
	var out []*worker
	for _, w := range m.workers {
		if _, ok := w.pickModel(models); ok {
			out = append(out, w)
		}
	}
	return out
}
