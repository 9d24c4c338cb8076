package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// Signal mirrors one signal_metadata row: a classified, human-readable
// observation derived from one or more raw rows (§3.2, §6.1).
type Signal struct {
	ID              int64
	Timestamp       time.Time
	Category        string
	SignalType      string
	Scope           string
	SemanticLabel   string
	Severity        string
	PressureScore   float64
	Summary         string
	Patterns        []string
	ReasoningHints  []string
	SourceTable     string
	SourceID        int64
	EntityType      string
	EntityID        string
	EntityName      string
	Context         map[string]any
	FirstSeen       time.Time
	LastSeen        time.Time
	OccurrenceCount int
}

// SignalFilter narrows QuerySignals. Zero values are unconstrained.
type SignalFilter struct {
	SignalType string
	Severity   string
	EntityID   string
	Since      time.Time
	Limit      int
}

// UpsertSignal inserts a new signal, or — if an existing row with the
// same (signal_type, entity_id, semantic_label) last fired within the
// store's coalesce window — folds into it instead: bumping last_seen and
// occurrence_count rather than creating a near-duplicate row (§3.2
// "coalescing", §6.1).
func (s *Store) UpsertSignal(ctx context.Context, window time.Duration, sig Signal) (coalesced bool, id int64, err error) {
	patternsJSON, jerr := json.Marshal(sig.Patterns)
	if jerr != nil {
		return false, 0, kernsight.InputMalformed("store.UpsertSignal", jerr)
	}
	hintsJSON, jerr := json.Marshal(sig.ReasoningHints)
	if jerr != nil {
		return false, 0, kernsight.InputMalformed("store.UpsertSignal", jerr)
	}
	ctxJSON, jerr := json.Marshal(sig.Context)
	if jerr != nil {
		return false, 0, kernsight.InputMalformed("store.UpsertSignal", jerr)
	}

	txErr := s.withWriteTx(ctx, "store.UpsertSignal", func(tx *sql.Tx) error {
		cutoff := sig.Timestamp.Add(-window).Unix()
		var existingID int64
		var occurrences int
		row := tx.QueryRowContext(ctx, `SELECT id, occurrence_count FROM signal_metadata
			WHERE signal_type = ? AND entity_id = ? AND semantic_label = ? AND last_seen >= ?
			ORDER BY last_seen DESC LIMIT 1`,
			sig.SignalType, sig.EntityID, sig.SemanticLabel, cutoff)
		scanErr := row.Scan(&existingID, &occurrences)
		switch scanErr {
		case nil:
			_, err := tx.ExecContext(ctx, `UPDATE signal_metadata SET
				last_seen = ?, occurrence_count = ?, pressure_score = ?, severity = ?, summary = ?,
				patterns = ?, reasoning_hints = ?, context_json = ?
				WHERE id = ?`,
				sig.Timestamp.Unix(), occurrences+1, sig.PressureScore, sig.Severity, sig.Summary,
				string(patternsJSON), string(hintsJSON), string(ctxJSON), existingID)
			if err != nil {
				return err
			}
			coalesced = true
			id = existingID
			return nil
		case sql.ErrNoRows:
			res, err := tx.ExecContext(ctx, `INSERT INTO signal_metadata
				(timestamp, category, signal_type, scope, semantic_label, severity, pressure_score,
				 summary, patterns, reasoning_hints, source_table, source_id,
				 entity_type, entity_id, entity_name, context_json, first_seen, last_seen, occurrence_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
				sig.Timestamp.Unix(), sig.Category, sig.SignalType, sig.Scope, sig.SemanticLabel,
				sig.Severity, sig.PressureScore, sig.Summary, string(patternsJSON), string(hintsJSON),
				sig.SourceTable, sig.SourceID, sig.EntityType, sig.EntityID, sig.EntityName,
				string(ctxJSON), sig.Timestamp.Unix(), sig.Timestamp.Unix())
			if err != nil {
				return err
			}
			id, err = res.LastInsertId()
			return err
		default:
			return scanErr
		}
	})
	if txErr != nil {
		return false, 0, txErr
	}
	return coalesced, id, nil
}

// QuerySignals reads signal_metadata against the read pool through a
// Snapshot, ordered most-recent first.
func (sn *Snapshot) QuerySignals(ctx context.Context, f SignalFilter) ([]Signal, error) {
	q := `SELECT id, timestamp, category, signal_type, scope, semantic_label, severity,
		pressure_score, summary, patterns, reasoning_hints, source_table, source_id,
		entity_type, entity_id, entity_name, context_json, first_seen, last_seen, occurrence_count
		FROM signal_metadata WHERE 1=1`
	args := []any{}
	if f.SignalType != "" {
		q += " AND signal_type = ?"
		args = append(args, f.SignalType)
	}
	if f.Severity != "" {
		q += " AND severity = ?"
		args = append(args, f.Severity)
	}
	if f.EntityID != "" {
		q += " AND entity_id = ?"
		args = append(args, f.EntityID)
	}
	if !f.Since.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.Unix())
	}
	q += " ORDER BY last_seen DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := sn.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, kernsight.Retryable("store.QuerySignals", err)
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var sig Signal
		var ts, firstSeen, lastSeen int64
		var patternsJSON, hintsJSON, ctxJSON string
		if err := rows.Scan(&sig.ID, &ts, &sig.Category, &sig.SignalType, &sig.Scope,
			&sig.SemanticLabel, &sig.Severity, &sig.PressureScore, &sig.Summary,
			&patternsJSON, &hintsJSON, &sig.SourceTable, &sig.SourceID,
			&sig.EntityType, &sig.EntityID, &sig.EntityName, &ctxJSON,
			&firstSeen, &lastSeen, &sig.OccurrenceCount); err != nil {
			return nil, kernsight.Retryable("store.QuerySignals", err)
		}
		sig.Timestamp = time.Unix(ts, 0).UTC()
		sig.FirstSeen = time.Unix(firstSeen, 0).UTC()
		sig.LastSeen = time.Unix(lastSeen, 0).UTC()
		_ = json.Unmarshal([]byte(patternsJSON), &sig.Patterns)
		_ = json.Unmarshal([]byte(hintsJSON), &sig.ReasoningHints)
		_ = json.Unmarshal([]byte(ctxJSON), &sig.Context)
		out = append(out, sig)
	}
	return out, rows.Err()
}
