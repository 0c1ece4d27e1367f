package migrate

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/store"
)

// Journal persists what a run did. *store.Store implements it.
type Journal interface {
	BeginRun(ctx context.Context, id, kind string) (store.Run, error)
	FinishRun(ctx context.Context, id, status string, failures int) error
	RecordDefinition(ctx context.Context, st store.DefinitionState) error
	RecordDeferredField(ctx context.Context, f store.DeferredField) error
	MarkDeferredReconciled(ctx context.Context, runID, owner, key string) error
	RecordFailure(ctx context.Context, f store.Failure) error
	RecordUpsert(ctx context.Context, u store.Upsert) error
	LastUpsertHash(ctx context.Context, typ, handle string) (string, bool, error)
}

type nopJournal struct{}

func (nopJournal) BeginRun(_ context.Context, id, kind string) (store.Run, error) {
	return store.Run{ID: id, Kind: kind, Status: store.RunRunning}, nil
}
func (nopJournal) FinishRun(context.Context, string, string, int) error { return nil }
func (nopJournal) RecordDefinition(context.Context, store.DefinitionState) error { return nil }
func (nopJournal) RecordDeferredField(context.Context, store.DeferredField) error { return nil }
func (nopJournal) MarkDeferredReconciled(context.Context, string, string, string) error { return nil }
func (nopJournal) RecordFailure(context.Context, store.Failure) error { return nil }
func (nopJournal) RecordUpsert(context.Context, store.Upsert) error { return nil }
func (nopJournal) LastUpsertHash(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}

// RunIDGenerator produces run IDs.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Options configures a migrator. The zero value is usable.
type Options struct {
	// Journal records the run. Nil disables journaling.
	Journal Journal
	// RunIDs generates the run ID. Nil uses UUIDv7Generator.
	RunIDs RunIDGenerator
	// Logger receives per-record log lines. Nil discards output.
	Logger *zap.Logger
	// SkipUnchanged skips instances whose upsert payload matches the
	// journal's last successful upsert.
	SkipUnchanged bool
}

func (o Options) withDefaults() Options {
	if o.Journal == nil {
		o.Journal = nopJournal{}
	}
	if o.RunIDs == nil {
		o.RunIDs = UUIDv7Generator{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// recorder threads one run's report, journal and logger through a migrator.
// Journal write errors are logged and never fail the run.
type recorder struct {
	journal Journal
	logger  *zap.Logger
	report  *Report
}

func startRun(ctx context.Context, opts Options, kind string) (*recorder, error) {
	id := opts.RunIDs.Generate()
	if _, err := opts.Journal.BeginRun(ctx, id, kind); err != nil {
		return nil, err
	}
	return &recorder{
		journal: opts.Journal,
		logger:  opts.Logger.With(zap.String("run_id", id)),
		report:  &Report{RunID: id, Kind: kind, Failures: []Failure{}},
	}, nil
}

func (r *recorder) finish(ctx context.Context, err error) (*Report, error) {
	status := store.RunCompleted
	if err != nil {
		status = store.RunFailed
	}
	// The run context may be cancelled already; the final status is still
	// written.
	if jerr := r.journal.FinishRun(context.WithoutCancel(ctx), r.report.RunID, status, len(r.report.Failures)); jerr != nil {
		r.logger.Error("journal write failed", zap.Error(jerr))
	}
	r.logger.Info("run finished",
		zap.String("kind", r.report.Kind), zap.String("status", status), zap.Int("failures", len(r.report.Failures)))
	return r.report, err
}

func (r *recorder) fail(ctx context.Context, f Failure) {
	r.report.Failures = append(r.report.Failures, f)
	r.logger.Warn("record failed",
		zap.String("kind", string(f.Kind)),
		zap.String("subject", f.Subject),
		zap.String("operation", f.Operation),
		zap.String("error", f.Message))
	err := r.journal.RecordFailure(ctx, store.Failure{
		RunID:     r.report.RunID,
		Kind:      string(f.Kind),
		Subject:   f.Subject,
		Operation: f.Operation,
		Message:   f.Message,
	})
	if err != nil {
		r.logger.Error("journal write failed", zap.Error(err))
	}
}

func (r *recorder) failErr(ctx context.Context, subject, operation string, err error) {
	r.fail(ctx, Failure{Kind: classify(err), Subject: subject, Operation: operation, Message: err.Error()})
}

func (r *recorder) state(ctx context.Context, typ, state, destinationID, message string) {
	r.report.setOutcome(typ, state, destinationID)
	r.logger.Debug("definition state",
		zap.String("type", typ), zap.String("state", state), zap.String("destination_id", destinationID))
	err := r.journal.RecordDefinition(ctx, store.DefinitionState{
		RunID:         r.report.RunID,
		Type:          typ,
		State:         state,
		DestinationID: destinationID,
		Message:       message,
	})
	if err != nil {
		r.logger.Error("journal write failed", zap.Error(err))
	}
}
