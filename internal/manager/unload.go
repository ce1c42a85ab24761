package manager

import "context"

// Close stops admissions and drains the manager:
// - Rejects new submissions with ErrClosed and stops the expiry ticker.
// - Resolves every pending task as Aborted.
// - Waits for in-flight calls until ctx is done, then cancels them.
// In-flight calls that fail after Close are not retried.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pending := 0
	for e := m.queue.Front(); e != nil; {
		next := e.Next()
		t := e.Value.(*task)
		m.queue.Remove(e)
		t.elem = nil
		m.failLocked(t, KindAborted, "", ErrClosed)
		pending++
		e = next
	}
	queueDepth.Set(0)
	m.publisher.Publish(Event{Name: "close_start", At: m.now(), Fields: map[string]any{"rejected": pending}})
	m.mu.Unlock()

	close(m.stopTick)
	<-m.tickDone

	done := make(chan struct{})
	go func() {
		m.calls.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn().Msg("close deadline reached, cancelling in-flight calls")
		m.cancelBase()
		<-done
		err = ctx.Err()
	}
	m.cancelBase()
	m.mu.Lock()
	m.publisher.Publish(Event{Name: "close_done", At: m.now()})
	m.mu.Unlock()
	return err
}
