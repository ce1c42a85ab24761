package manager

import (
	"testing"
	"time"
)

func TestNewWithConfig_Defaults(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	if m.maxRetries != defaultMaxRetries {
		t.Fatalf("maxRetries = %d, want %d", m.maxRetries, defaultMaxRetries)
	}
	if m.defaultTimeout != defaultTimeout {
		t.Fatalf("defaultTimeout = %s", m.defaultTimeout)
	}
	if len(m.windows) != 3 || m.windows[2] != time.Minute {
		t.Fatalf("windows = %v", m.windows)
	}
}

func TestNewWithConfig_Overrides(t *testing.T) {
	m := newTestManager(t, ManagerConfig{
		MaxRetries:     -1,
		Windows:        []time.Duration{time.Minute, time.Second},
		DefaultTimeout: time.Second,
	})
	if m.maxRetries != 0 {
		t.Fatalf("maxRetries = %d, want 0", m.maxRetries)
	}
	if m.windows[0] != time.Second || m.windows[1] != time.Minute {
		t.Fatalf("windows not sorted: %v", m.windows)
	}
	if m.defaultTimeout != time.Second {
		t.Fatalf("defaultTimeout = %s", m.defaultTimeout)
	}
}
