// Package bench drives a full benchmark run: dataset generation, strategy
// measurement, optional telemetry, and artifact export.
package bench

import (
	"sync"
	"time"
)

// Run phases, in the order a run moves through them.
const (
	PhaseIdle      = "idle"
	PhaseBuilding  = "building_dataset"
	PhaseInserting = "inserting_corpus"
	PhaseMeasuring = "measuring"
	PhaseReceipt   = "collecting_receipt"
	PhaseWriting   = "writing_artifacts"
	PhaseDone      = "done"
)

// Tracker records where a run currently is so the status server can report
// progress while the measurement loop owns the foreground.
type Tracker struct {
	mu        sync.Mutex
	runID     string
	phase     string
	method    string
	startedAt time.Time
}

// Snapshot is a point-in-time view of run progress.
type Snapshot struct {
	RunID     string  `json:"run_id"`
	Phase     string  `json:"phase"`
	Method    string  `json:"method,omitempty"`
	ElapsedS  float64 `json:"elapsed_s"`
	StartedAt string  `json:"started_at,omitempty"`
}

func NewTracker() *Tracker {
	return &Tracker{phase: PhaseIdle}
}

// Begin marks the start of a run.
func (t *Tracker) Begin(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runID = runID
	t.phase = PhaseBuilding
	t.method = ""
	t.startedAt = time.Now()
}

// SetPhase moves the run to a new phase and clears the method label.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.method = ""
}

// SetMethod records which strategy measurement is in flight.
func (t *Tracker) SetMethod(method string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseMeasuring
	t.method = method
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		RunID:  t.runID,
		Phase:  t.phase,
		Method: t.method,
	}
	if !t.startedAt.IsZero() {
		snap.ElapsedS = time.Since(t.startedAt).Seconds()
		snap.StartedAt = t.startedAt.UTC().Format(time.RFC3339)
	}
	return snap
}
