package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one command invocation that wrote to the destination.
type Run struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Failures    int    `json:"failures"`
	StartedSeq  int64  `json:"started_seq"`
	FinishedSeq int64  `json:"finished_seq,omitempty"`
}

// DefinitionState is one state transition of a definition during a run.
type DefinitionState struct {
	RunID         string `json:"run_id"`
	Type          string `json:"type"`
	State         string `json:"state"`
	DestinationID string `json:"destination_id,omitempty"`
	Message       string `json:"message,omitempty"`
	Seq           int64  `json:"seq"`
}

// DeferredField is a field held back from its owner's create payload.
// Payload is the JSON of the formatted field with its pending references.
type DeferredField struct {
	RunID      string `json:"run_id"`
	OwnerType  string `json:"owner_type"`
	FieldKey   string `json:"field_key"`
	Payload    string `json:"payload"`
	Reconciled bool   `json:"reconciled"`
	Seq        int64  `json:"seq"`
}

// Failure is a per-record failure.
type Failure struct {
	RunID     string `json:"run_id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Operation string `json:"operation"`
	Message   string `json:"message"`
	Seq       int64  `json:"seq"`
}

// Upsert is the last successful upsert of an instance.
type Upsert struct {
	Type          string `json:"type"`
	Handle        string `json:"handle"`
	PayloadHash   string `json:"payload_hash"`
	DestinationID string `json:"destination_id,omitempty"`
	RunID         string `json:"run_id"`
	Seq           int64  `json:"seq"`
}

// BeginRun records the start of a run with status running.
func (s *Store) BeginRun(ctx context.Context, id, kind string) (Run, error) {
	run := Run{ID: id, Kind: kind, Status: RunRunning, StartedSeq: s.clock.Next()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, kind, status, failures, started_seq)
		VALUES (?, ?, ?, 0, ?)
	`, run.ID, run.Kind, run.Status, run.StartedSeq)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// FinishRun records the final status and failure count of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, failures int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, failures = ?, finished_seq = ?
		WHERE id = ?
	`, status, failures, s.clock.Next(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %q not found", id)
	}
	return nil
}

// RecordDefinition appends a definition state transition.
func (s *Store) RecordDefinition(ctx context.Context, st DefinitionState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO definition_states (run_id, type, state, destination_id, message, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, st.RunID, st.Type, st.State, st.DestinationID, st.Message, s.clock.Next())
	if err != nil {
		return fmt.Errorf("record definition %s: %w", st.Type, err)
	}
	return nil
}

// RecordDeferredField stores a deferred field. Recording the same
// (run, owner, key) again replaces the payload.
func (s *Store) RecordDeferredField(ctx context.Context, f DeferredField) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deferred_fields (run_id, owner_type, field_key, payload, reconciled, seq)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(run_id, owner_type, field_key) DO UPDATE SET
			payload = excluded.payload,
			seq = excluded.seq
	`, f.RunID, f.OwnerType, f.FieldKey, f.Payload, s.clock.Next())
	if err != nil {
		return fmt.Errorf("record deferred field %s.%s: %w", f.OwnerType, f.FieldKey, err)
	}
	return nil
}

// MarkDeferredReconciled flags a deferred field as added to its owner.
func (s *Store) MarkDeferredReconciled(ctx context.Context, runID, owner, key string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE deferred_fields SET reconciled = 1
		WHERE run_id = ? AND owner_type = ? AND field_key = ?
	`, runID, owner, key)
	if err != nil {
		return fmt.Errorf("reconcile deferred field %s.%s: %w", owner, key, err)
	}
	return nil
}

// RecordFailure appends a failure.
func (s *Store) RecordFailure(ctx context.Context, f Failure) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (run_id, kind, subject, operation, message, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.RunID, f.Kind, f.Subject, f.Operation, f.Message, s.clock.Next())
	if err != nil {
		return fmt.Errorf("record failure %s: %w", f.Subject, err)
	}
	return nil
}

// RecordUpsert stores the hash of a successful upsert, replacing the
// previous one for (type, handle).
func (s *Store) RecordUpsert(ctx context.Context, u Upsert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instance_upserts (type, handle, payload_hash, destination_id, run_id, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, handle) DO UPDATE SET
			payload_hash = excluded.payload_hash,
			destination_id = excluded.destination_id,
			run_id = excluded.run_id,
			seq = excluded.seq
	`, u.Type, u.Handle, u.PayloadHash, u.DestinationID, u.RunID, s.clock.Next())
	if err != nil {
		return fmt.Errorf("record upsert %s/%s: %w", u.Type, u.Handle, err)
	}
	return nil
}

// LastUpsertHash returns the payload hash of the last successful upsert of
// (typ, handle). ok is false when the instance was never upserted.
func (s *Store) LastUpsertHash(ctx context.Context, typ, handle string) (hash string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT payload_hash FROM instance_upserts WHERE type = ? AND handle = ?
	`, typ, handle).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("last upsert %s/%s: %w", typ, handle, err)
	}
	return hash, true, nil
}
