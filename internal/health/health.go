package health

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT is received.
// The health handler reports shutting-down with 503 while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// DefaultRetention is how long outcomes are kept when NewTracker is given none.
const DefaultRetention = 15 * time.Minute

// Tracker keeps a sliding window of forecast outcomes so /health can report
// the weather provider as degraded when too many recent analyses failed.
type Tracker struct {
	clock     clockwork.Clock
	retention time.Duration

	mu        sync.Mutex
	successes []time.Time
	failures  []time.Time
}

// NewTracker returns a Tracker reading time from clock and keeping outcomes
// for retention. Pass the widest window Degraded will be asked about.
func NewTracker(clock clockwork.Clock, retention time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{clock: clock, retention: retention}
}

// RecordSuccess records an analysis whose forecast fetch succeeded.
func (t *Tracker) RecordSuccess() {
	t.record(&t.successes)
}

// RecordFailure records an analysis that failed upstream.
func (t *Tracker) RecordFailure() {
	t.record(&t.failures)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// FailureRate returns (failures, total) recorded within window.
func (t *Tracker) FailureRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	failures = countSince(t.failures, cutoff)
	return failures, failures + countSince(t.successes, cutoff)
}

// Degraded reports whether failures reached thresholdPct percent of the
// outcomes in window. An empty window is never degraded.
func (t *Tracker) Degraded(window time.Duration, thresholdPct int) bool {
	if window <= 0 || thresholdPct <= 0 {
		return false
	}
	failures, total := t.FailureRate(window)
	if total == 0 {
		return false
	}
	return failures*100 >= thresholdPct*total
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops outcomes older than t.retention. Caller holds t.mu.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successes)
	prune(&t.failures)
}
