package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// Trace is one reasoning_traces row: the full record of a decision-loop
// cycle, persisted incrementally after each phase so a crash mid-cycle
// leaves an inspectable partial trace rather than nothing.
type Trace struct {
	ID        int64
	CycleID   string
	StartedAt time.Time
	Phase     string
	SignalIDs []int64

	SystemState map[string]any

	Observation string
	Hypothesis  string
	Evidence    []string

	BaselineContext map[string]any
	PredictedOutcome map[string]any

	ActionType      string
	ActionParams    map[string]any
	RenderedCommand string
	Confidence      float64

	ActionExecuted  bool
	RejectedReason  string

	ActualOutcome map[string]any

	HypothesisCorrect    *bool
	PredictionAccurate   *bool
	ConfidenceCalibrated *bool
	Lessons              []string
}

// InsertTrace creates the initial row for a new cycle, at the OBSERVE
// phase. Returns the row id used by every subsequent AdvancePhase call.
func (s *Store) InsertTrace(ctx context.Context, t Trace) (int64, error) {
	signalIDsJSON, _ := json.Marshal(t.SignalIDs)
	stateJSON, _ := json.Marshal(t.SystemState)
	var id int64
	err := s.withWriteTx(ctx, "store.InsertTrace", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO reasoning_traces
			(cycle_id, started_at, phase, signal_ids, system_state_json,
			 observation, hypothesis, evidence_json, baseline_context_json, predicted_outcome_json,
			 action_type, action_params_json, rendered_command, confidence,
			 action_executed, rejected_reason, actual_outcome_json,
			 hypothesis_correct, prediction_accurate, confidence_calibrated, lessons_json)
			VALUES (?, ?, ?, ?, ?, '', '', '[]', '{}', '{}', '', '{}', '', 0, 0, '', '{}', NULL, NULL, NULL, '[]')`,
			t.CycleID, t.StartedAt.Unix(), t.Phase, string(signalIDsJSON), string(stateJSON))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// AdvancePhase persists the fields a phase produced and moves the trace's
// phase column forward, within one transaction — so a reader never
// observes a trace whose phase says DECIDE but whose action_type column
// is still empty.
func (s *Store) AdvancePhase(ctx context.Context, id int64, phase string, fields map[string]any) error {
	return s.withWriteTx(ctx, "store.AdvancePhase", func(tx *sql.Tx) error {
		sets := []string{"phase = ?"}
		args := []any{phase}
		for col, v := range fields {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
		args = append(args, id)
		q := "UPDATE reasoning_traces SET " + join(sets, ", ") + " WHERE id = ?"
		_, err := tx.ExecContext(ctx, q, args...)
		return err
	})
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// GetTrace fetches one reasoning_traces row for inspection.
func (sn *Snapshot) GetTrace(ctx context.Context, id int64) (*Trace, error) {
	var t Trace
	var startedAt int64
	var signalIDsJSON, stateJSON, evidenceJSON, baselineJSON, predictedJSON string
	var paramsJSON, actualJSON, lessonsJSON string
	row := sn.db.QueryRowContext(ctx, `SELECT id, cycle_id, started_at, phase, signal_ids, system_state_json,
		observation, hypothesis, evidence_json, baseline_context_json, predicted_outcome_json,
		action_type, action_params_json, rendered_command, confidence,
		action_executed, rejected_reason, actual_outcome_json,
		hypothesis_correct, prediction_accurate, confidence_calibrated, lessons_json
		FROM reasoning_traces WHERE id = ?`, id)
	var actionExecuted int
	var hypothesisCorrect, predictionAccurate, confidenceCalibrated sql.NullInt64
	if err := row.Scan(&t.ID, &t.CycleID, &startedAt, &t.Phase, &signalIDsJSON, &stateJSON,
		&t.Observation, &t.Hypothesis, &evidenceJSON, &baselineJSON, &predictedJSON,
		&t.ActionType, &paramsJSON, &t.RenderedCommand, &t.Confidence,
		&actionExecuted, &t.RejectedReason, &actualJSON,
		&hypothesisCorrect, &predictionAccurate, &confidenceCalibrated, &lessonsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, kernsight.InputMalformed("store.GetTrace", err)
		}
		return nil, kernsight.Retryable("store.GetTrace", err)
	}
	t.StartedAt = time.Unix(startedAt, 0).UTC()
	t.ActionExecuted = actionExecuted != 0
	t.HypothesisCorrect = nullIntToBoolPtr(hypothesisCorrect)
	t.PredictionAccurate = nullIntToBoolPtr(predictionAccurate)
	t.ConfidenceCalibrated = nullIntToBoolPtr(confidenceCalibrated)
	_ = json.Unmarshal([]byte(signalIDsJSON), &t.SignalIDs)
	_ = json.Unmarshal([]byte(stateJSON), &t.SystemState)
	_ = json.Unmarshal([]byte(evidenceJSON), &t.Evidence)
	_ = json.Unmarshal([]byte(baselineJSON), &t.BaselineContext)
	_ = json.Unmarshal([]byte(predictedJSON), &t.PredictedOutcome)
	_ = json.Unmarshal([]byte(paramsJSON), &t.ActionParams)
	_ = json.Unmarshal([]byte(actualJSON), &t.ActualOutcome)
	_ = json.Unmarshal([]byte(lessonsJSON), &t.Lessons)
	return &t, nil
}

func nullIntToBoolPtr(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	b := n.Int64 != 0
	return &b
}

// RecentTraces returns the ids of the most recent traces, newest first
// by started_at.
func (sn *Snapshot) RecentTraces(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := sn.db.QueryContext(ctx, `SELECT id FROM reasoning_traces ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, kernsight.Retryable("store.RecentTraces", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, kernsight.Retryable("store.RecentTraces", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
