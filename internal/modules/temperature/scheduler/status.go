package scheduler

import "time"

type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateCommitting State = "committing"
	StateFailed     State = "failed"
)

// Status is a point-in-time copy of the scheduler's progress. LastSuccess is
// the process-wide "last successful update" marker.
type Status struct {
	State        State     `json:"state"`
	Interval     string    `json:"interval"`
	LastCycleID  string    `json:"lastCycleId,omitempty"`
	LastAttempt  time.Time `json:"lastAttempt,omitzero"`
	LastSuccess  time.Time `json:"lastSuccess,omitzero"`
	LastFailure  time.Time `json:"lastFailure,omitzero"`
	LastError    string    `json:"lastError,omitempty"`
	LastReadings int       `json:"lastReadings"`
	Cycles       int64     `json:"cycles"`
	Failures     int64     `json:"failures"`
}

// Stale reports whether no cycle has succeeded within maxAge of now.
func (s Status) Stale(now time.Time, maxAge time.Duration) bool {
	if s.LastSuccess.IsZero() {
		return true
	}
	return now.Sub(s.LastSuccess) > maxAge
}
