package service

import (
	"sync"

	"github.com/emrgen/canvas/internal/model"
)

type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// Outcome records the result of one per-node sub-operation inside a
// composite publish or duplicate.
type Outcome struct {
	NodeID     string
	EntityID   string
	EntityType model.EntityType
	Status     OutcomeStatus
	Reason     string
}

// Report collects per-node outcomes of a composite operation. A node
// failure never aborts sibling work; it shows up here as Skipped with a
// reason instead. Safe for concurrent use.
type Report struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) AddOK(nodeID, entityID string, t model.EntityType) {
	r.add(Outcome{NodeID: nodeID, EntityID: entityID, EntityType: t, Status: OutcomeOK})
}

func (r *Report) AddSkipped(nodeID, entityID string, t model.EntityType, reason string) {
	r.add(Outcome{NodeID: nodeID, EntityID: entityID, EntityType: t, Status: OutcomeSkipped, Reason: reason})
}

func (r *Report) add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

// Outcomes returns a copy of every recorded outcome.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Skipped returns only the skipped outcomes.
func (r *Report) Skipped() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Outcome
	for _, o := range r.outcomes {
		if o.Status == OutcomeSkipped {
			out = append(out, o)
		}
	}
	return out
}
