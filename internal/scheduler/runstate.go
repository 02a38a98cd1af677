// Package scheduler implements the top-level control loop: per-model run
// state machines, a bounded memory-sized worker pool, and the progressive
// forecast-hour dispatch loop.
package scheduler

import (
	"sync"
	"time"
)

// Phase is one state of the per-(model_id, run_time) state machine.
type Phase int

const (
	PhasePending Phase = iota
	PhaseMonitoring
	PhaseComplete
	PhaseAbandoned
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "PENDING"
	case PhaseMonitoring:
		return "MONITORING"
	case PhaseComplete:
		return "COMPLETE"
	case PhaseAbandoned:
		return "ABANDONED"
	default:
		return "UNKNOWN"
	}
}

// RunState tracks progress of one (model_id, run_time) through the
// MONITORING phase. completed only ever grows, so readers always see
// monotonically growing sets.
type RunState struct {
	mu                sync.Mutex
	Phase             Phase
	ExpectedForecastHours []int
	completed         map[int]bool
	inFlight          map[int]bool
	failed            map[int]bool
	firstSeenUpstream map[int]time.Time
	lastProgressAt    time.Time
	startedAt         time.Time
}

// NewRunState begins a run in PENDING with the model's expected forecast
// hour list already known.
func NewRunState(expectedForecastHours []int) *RunState {
	return &RunState{
		Phase:                 PhasePending,
		ExpectedForecastHours: expectedForecastHours,
		completed:             make(map[int]bool),
		inFlight:              make(map[int]bool),
		failed:                make(map[int]bool),
		firstSeenUpstream:     make(map[int]time.Time),
		startedAt:             time.Now(),
	}
}

// BeginMonitoring transitions PENDING -> MONITORING.
func (r *RunState) BeginMonitoring() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phase = PhaseMonitoring
}

// NewlyAvailable returns the subset of available not already completed or
// in flight, and marks it in_flight.
func (r *RunState) NewlyAvailable(available []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fresh []int
	for _, fh := range available {
		if r.completed[fh] || r.inFlight[fh] || r.failed[fh] {
			continue
		}
		if _, seen := r.firstSeenUpstream[fh]; !seen {
			r.firstSeenUpstream[fh] = time.Now()
		}
		r.inFlight[fh] = true
		fresh = append(fresh, fh)
	}
	return fresh
}

// MarkCompleted records fh as done and releases its in_flight entry.
func (r *RunState) MarkCompleted(fh int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, fh)
	r.completed[fh] = true
	r.lastProgressAt = time.Now()
}

// MarkFailed records fh as failed without marking it completed: a single
// task failure is logged with no retry within the run, leaving IsComplete
// permanently false for this run, but NewlyAvailable will never re-offer it
// on a later poll.
func (r *RunState) MarkFailed(fh int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, fh)
	r.failed[fh] = true
}

// IsComplete reports whether every expected forecast hour has completed.
func (r *RunState) IsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fh := range r.ExpectedForecastHours {
		if !r.completed[fh] {
			return false
		}
	}
	return true
}

// Completed returns a snapshot of the completed set.
func (r *RunState) Completed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.completed))
	for fh := range r.completed {
		out = append(out, fh)
	}
	return out
}

// SetPhase transitions the state machine (COMPLETE or ABANDONED are both
// terminal, set exactly once by the caller's loop exit).
func (r *RunState) SetPhase(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phase = p
}
