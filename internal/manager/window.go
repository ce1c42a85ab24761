package manager

import "time"

type windowEntry struct {
	at     time.Time
	tokens int
}

// windowLog records admissions in time order. Entries older than the longest
// tracked window are pruned on every admission check.
type windowLog struct {
	entries []windowEntry
}

func (l *windowLog) add(at time.Time, tokens int) {
	l.entries = append(l.entries, windowEntry{at: at, tokens: tokens})
}

// prune drops entries that have aged out of horizon.
func (l *windowLog) prune(now time.Time, horizon time.Duration) {
	i := 0
	for i < len(l.entries) && now.Sub(l.entries[i].at) >= horizon {
		i++
	}
	if i == 0 {
		return
	}
	if i == len(l.entries) {
		l.entries = l.entries[:0]
		return
	}
	l.entries = append(l.entries[:0], l.entries[i:]...)
}

// usage sums requests and tokens admitted within the last w before now.
func (l *windowLog) usage(now time.Time, w time.Duration) (reqs, tokens int) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if now.Sub(e.at) >= w {
			break
		}
		reqs++
		tokens += e.tokens
	}
	return reqs, tokens
}

// windowCap scales a per-minute limit to window w, rounding down.
func windowCap(perMinute int, w time.Duration) int {
	return int(int64(perMinute) * int64(w) / int64(time.Minute))
}
