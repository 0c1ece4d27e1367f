package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Runs returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, kind, status, failures, started_seq, COALESCE(finished_seq, 0)
		FROM runs
		ORDER BY started_seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &r.Failures, &r.StartedSeq, &r.FinishedSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns the run with id. ok is false when there is none.
func (s *Store) Run(ctx context.Context, id string) (run Run, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT id, kind, status, failures, started_seq, COALESCE(finished_seq, 0)
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Kind, &run.Status, &run.Failures, &run.StartedSeq, &run.FinishedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("query run %s: %w", id, err)
	}
	return run, true, nil
}

// DefinitionStates returns the latest state of every definition touched by
// runID, ordered by type.
func (s *Store) DefinitionStates(ctx context.Context, runID string) ([]DefinitionState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.run_id, d.type, d.state, d.destination_id, d.message, d.seq
		FROM definition_states d
		WHERE d.run_id = ?
		  AND d.seq = (
			SELECT MAX(seq) FROM definition_states
			WHERE run_id = d.run_id AND type = d.type
		  )
		ORDER BY d.type ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query definition states: %w", err)
	}
	defer rows.Close()

	var states []DefinitionState
	for rows.Next() {
		var st DefinitionState
		if err := rows.Scan(&st.RunID, &st.Type, &st.State, &st.DestinationID, &st.Message, &st.Seq); err != nil {
			return nil, fmt.Errorf("scan definition state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definition states: %w", err)
	}
	return states, nil
}

// DefinitionHistory returns every state transition of typ in runID, in
// seq order.
func (s *Store) DefinitionHistory(ctx context.Context, runID, typ string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT state FROM definition_states
		WHERE run_id = ? AND type = ?
		ORDER BY seq ASC
	`, runID, typ)
	if err != nil {
		return nil, fmt.Errorf("query definition history: %w", err)
	}
	defer rows.Close()

	var states []string
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("scan definition history: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// DeferredFields returns the deferred fields of runID in seq order.
func (s *Store) DeferredFields(ctx context.Context, runID string) ([]DeferredField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, owner_type, field_key, payload, reconciled, seq
		FROM deferred_fields
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query deferred fields: %w", err)
	}
	defer rows.Close()

	var fields []DeferredField
	for rows.Next() {
		var f DeferredField
		if err := rows.Scan(&f.RunID, &f.OwnerType, &f.FieldKey, &f.Payload, &f.Reconciled, &f.Seq); err != nil {
			return nil, fmt.Errorf("scan deferred field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deferred fields: %w", err)
	}
	return fields, nil
}

// Failures returns the failures of runID in seq order.
func (s *Store) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, subject, operation, message, seq
		FROM failures
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.RunID, &f.Kind, &f.Subject, &f.Operation, &f.Message, &f.Seq); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}
