package domain

import "time"

type CycleOutcome string

const (
	CycleCompleted     CycleOutcome = "completed"
	CycleFetchFailed   CycleOutcome = "fetch_failed"
	CyclePersistFailed CycleOutcome = "persist_failed"
	CycleSkipped       CycleOutcome = "skipped"
)

// CycleReport summarizes one scheduler cycle for logs and operators.
type CycleReport struct {
	CycleID    string            `json:"cycle_id"`
	Outcome    CycleOutcome      `json:"outcome"`
	Bootstrap  bool              `json:"bootstrap"`
	Fetched    int               `json:"fetched"`
	Events     map[EventKind]int `json:"events,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Error      string            `json:"error,omitempty"`
}

// Duration is the wall time the cycle took.
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
