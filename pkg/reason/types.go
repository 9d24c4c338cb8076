// Package reason implements the reasoner adapter (C10): two
// implementations of the same propose(context) -> Decision interface,
// an LLM-backed oracle and a deterministic rule-based fallback (§4.10).
package reason

import (
	"github.com/kernelsight/kernelsight/pkg/simulate"
	"github.com/kernelsight/kernelsight/pkg/store"
)

// ActionRef is the typed (action_type, params) pair the reasoner emits;
// the loop renders and validates the concrete command from it via
// pkg/actions (§4.9 step 4 "hybrid action model").
type ActionRef struct {
	ActionType string         `json:"action_type"`
	Params     map[string]any `json:"params"`
}

// Decision is the object §4.9 step 4 requires back from C10.
type Decision struct {
	Observation      string         `json:"observation"`
	Hypothesis       string         `json:"hypothesis"`
	Evidence         []string       `json:"evidence"`
	BaselineContext  map[string]any `json:"baseline_context"`
	PredictedOutcome map[string]any `json:"predicted_outcome"`
	RecommendedAction ActionRef     `json:"recommended_action"`
	Confidence       float64        `json:"confidence"`

	// Source records which implementation produced the decision
	// ("oracle" or "rule_based"), for the trace and for tests that
	// assert the oracle fell through on failure.
	Source string `json:"-"`
}

// Input is the structured context submitted to C10 (§4.9 step 4
// "submit the structured context to C10").
type Input struct {
	CycleID         string
	Signal          store.Signal
	Baseline        map[string]any
	Trend           map[string]any
	Projection      *simulate.Projection
	ObservationText string
	AvailableActions []string // action_type catalog, for the oracle prompt
}
