package manager

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"routerd/pkg/types"
)

// Cancellation causes attached to a call's context.
var (
	errDeadline = errors.New("call deadline exceeded")
	errAborted  = errors.New("aborted by caller")
)

// timeoutFor computes the deadline for one attempt:
// max(MinTimeoutMs, demand*TimeoutMsPerToken), saturating at the largest
// representable duration. When that evaluates to zero (neither field set, or
// only the per-token rate with a zero demand) fallback applies, since a zero
// deadline would expire before the call is sent.
func timeoutFor(d types.Deployment, demand int, fallback time.Duration) time.Duration {
	floor := time.Duration(d.MinTimeoutMs) * time.Millisecond
	var scaled time.Duration
	if d.TimeoutMsPerToken > 0 && demand > 0 {
		per := time.Duration(d.TimeoutMsPerToken) * time.Millisecond
		if time.Duration(demand) > maxDuration/per {
			scaled = maxDuration
		} else {
			scaled = time.Duration(demand) * per
		}
	}
	if floor <= 0 && scaled <= 0 {
		return fallback
	}
	if scaled > floor {
		return scaled
	}
	return floor
}

const maxDuration = time.Duration(math.MaxInt64)

// arm cancels with errDeadline once d elapses. The returned disarm reports
// whether it stopped the timer before it fired; it is safe to call repeatedly.
func arm(d time.Duration, cancel context.CancelCauseFunc) (disarm func() bool) {
	t := time.AfterFunc(d, func() { cancel(errDeadline) })
	var (
		once    sync.Once
		stopped bool
	)
	return func() bool {
		once.Do(func() { stopped = t.Stop() })
		return stopped
	}
}
