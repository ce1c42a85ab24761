package manager

import (
	"testing"
	"time"

	"routerd/pkg/types"
)

func TestStatus_ReportsQueueAndWindows(t *testing.T) {
	clock := newFakeClock()
	gt := newGateTransport()
	d := dep("a", "m")
	d.Concurrency, d.TPM, d.RPM = 1, 6000, 60
	m := newTestManager(t, ManagerConfig{Deployments: []types.Deployment{d}, Transport: gt, Now: clock.Now})

	submit(t, m, "A", 40, "m")
	call := gt.next(t)
	submit(t, m, "B", 40, "m")

	st := m.Status()
	if st.State != "ready" || st.QueueLen != 1 || st.Assigned != 1 {
		t.Fatalf("status = %+v", st)
	}
	if len(st.Deployments) != 1 {
		t.Fatalf("deployments = %d", len(st.Deployments))
	}
	ds := st.Deployments[0]
	if ds.Inflight != 1 || ds.Concurrency != 1 {
		t.Fatalf("deployment status = %+v", ds)
	}
	last := ds.Windows[len(ds.Windows)-1]
	if last.Seconds != 60 || last.Tokens != 40 || last.TokenCap != 6000 || last.RequestCap != 60 {
		t.Fatalf("minute window = %+v", last)
	}
	// The 1s window holds A's request; B is admitted once it rolls over.
	clock.Advance(time.Second)
	call.ok(`{}`)
	gt.next(t).ok(`{}`)
}

func TestReadyAndListModels(t *testing.T) {
	m := newTestManager(t, ManagerConfig{
		Deployments: []types.Deployment{dep("a", "gpt-4o", "gpt-4o-mini"), dep("b", "gpt-4o", "emb")},
		Transport:   newGateTransport(),
	})
	if !m.Ready() {
		t.Fatalf("manager with deployments should be ready")
	}
	got := m.ListModels()
	want := []string{"gpt-4o", "gpt-4o-mini", "emb"}
	if len(got) != len(want) {
		t.Fatalf("ListModels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListModels = %v, want %v", got, want)
		}
	}
	empty := newTestManager(t, ManagerConfig{})
	if empty.Ready() {
		t.Fatalf("manager without deployments should not be ready")
	}
}
