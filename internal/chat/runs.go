// ABOUTME: Registry of in-flight turn runs, observed for crash reporting
// ABOUTME: Runs register on start and deregister when they reach a final state

package chat

import (
	"sync"
	"time"
)

// RunInfo is the observable snapshot of one in-flight run.
type RunInfo struct {
	ID         string
	DialogueID int64
	UserID     int64
	State      State
	StartedAt  time.Time
}

// Runs tracks in-flight turn runs by run id.
type Runs struct {
	mu   sync.Mutex
	runs map[string]*Run
}

// NewRuns creates an empty run registry.
func NewRuns() *Runs {
	return &Runs{runs: make(map[string]*Run)}
}

func (r *Runs) add(run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
}

func (r *Runs) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}

// Len reports the number of in-flight runs.
func (r *Runs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// Snapshot returns the current in-flight runs.
func (r *Runs) Snapshot() []RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunInfo, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, RunInfo{
			ID:         run.ID,
			DialogueID: run.DialogueID,
			UserID:     run.UserID,
			State:      run.CurrentState(),
			StartedAt:  run.StartedAt,
		})
	}
	return out
}
