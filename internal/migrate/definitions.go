package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/format"
	"github.com/roach88/metamigrate/internal/graph"
	"github.com/roach88/metamigrate/internal/ir"
	"github.com/roach88/metamigrate/internal/store"
)

// DefinitionSource reads definitions from a snapshot. *snapshot.Snapshot
// implements it.
type DefinitionSource interface {
	Definition(typ string) (ir.Definition, error)
}

// DefinitionDestination writes definitions. *shopify.Store implements it.
type DefinitionDestination interface {
	CreateDefinition(ctx context.Context, input ir.DefinitionCreateInput) (*ir.Definition, error)
	UpdateDefinition(ctx context.Context, id string, input ir.DefinitionUpdateInput) (*ir.Definition, error)
}

// DefinitionMigrator creates definitions in dependency order, then adds the
// fields that had to be deferred.
type DefinitionMigrator struct {
	source      DefinitionSource
	destination DefinitionDestination
	resolver    format.DefinitionResolver
	formatter   *format.Formatter
	opts        Options
}

// NewDefinitionMigrator creates a migrator. resolver translates definition
// references from the source store to the destination.
func NewDefinitionMigrator(source DefinitionSource, destination DefinitionDestination, resolver format.DefinitionResolver, opts Options) *DefinitionMigrator {
	opts = opts.withDefaults()
	return &DefinitionMigrator{
		source:      source,
		destination: destination,
		resolver:    resolver,
		formatter:   format.New(resolver, opts.Logger),
		opts:        opts,
	}
}

// Run migrates every type of order.
//
// Phase 1 creates each definition in Sequence order with the fields whose
// references already resolve. Phase 2 adds the deferred fields to their
// owners. Record failures land in the Report; the returned error is non-nil
// only when the journal cannot start the run or ctx is cancelled.
func (m *DefinitionMigrator) Run(ctx context.Context, order graph.Order) (*Report, error) {
	rec, err := startRun(ctx, m.opts, "definitions")
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	deferred, err := m.create(ctx, rec, order.Sequence())
	if err != nil {
		return rec.finish(ctx, err)
	}
	if err := m.reconcile(ctx, rec, deferred); err != nil {
		return rec.finish(ctx, err)
	}
	return rec.finish(ctx, nil)
}

// create is Phase 1.
func (m *DefinitionMigrator) create(ctx context.Context, rec *recorder, sequence []string) (format.DeferredFields, error) {
	deferred := format.DeferredFields{}

	for _, typ := range sequence {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec.state(ctx, typ, StatePending, "", "")

		def, err := m.source.Definition(typ)
		if err != nil {
			state := StateFailed
			if errors.Is(err, fs.ErrNotExist) {
				state = StateSkipped
			}
			rec.state(ctx, typ, state, "", err.Error())
			rec.failErr(ctx, typ, "read definition", err)
			continue
		}

		res, err := m.formatter.Format(ctx, def)
		if err != nil {
			rec.state(ctx, typ, StateFailed, "", err.Error())
			rec.fail(ctx, Failure{Kind: FailureLocalIO, Subject: typ, Operation: "format definition", Message: err.Error()})
			continue
		}
		for _, ex := range res.Excluded {
			rec.report.Excluded = append(rec.report.Excluded, ex)
			rec.fail(ctx, Failure{
				Kind:      FailureResolution,
				Subject:   ex.Owner + "." + ex.Field,
				Operation: "format definition",
				Message:   fmt.Sprintf("referenced definition %s not found in source", ex.SourceID),
			})
		}

		created, err := m.destination.CreateDefinition(ctx, res.Definition)
		if err != nil {
			rec.state(ctx, typ, StateFailed, "", err.Error())
			rec.failErr(ctx, typ, "create definition", err)
			// The owner may already exist from an earlier run; Phase 2
			// still tries its deferred fields.
			m.deferFields(ctx, rec, deferred, res.Deferred)
			continue
		}
		destinationID := ""
		if created != nil {
			destinationID = created.ID
		}
		rec.state(ctx, typ, StateCreated, destinationID, "")
		rec.logger.Info("definition created",
			zap.String("type", typ),
			zap.Int("fields", len(res.Definition.FieldDefinitions)),
			zap.Int("deferred", len(res.Deferred[typ])))
		m.deferFields(ctx, rec, deferred, res.Deferred)
	}
	return deferred, nil
}

func (m *DefinitionMigrator) deferFields(ctx context.Context, rec *recorder, all, fields format.DeferredFields) {
	all.Merge(fields)
	for _, owner := range fields.Owners() {
		for _, f := range fields[owner] {
			rec.report.Deferred = append(rec.report.Deferred, DeferredOutcome{Owner: owner, Field: f.Field.Key})
			payload, err := json.Marshal(f)
			if err != nil {
				rec.logger.Error("encode deferred field", zap.String("type", owner), zap.String("field", f.Field.Key), zap.Error(err))
				continue
			}
			err = rec.journal.RecordDeferredField(ctx, store.DeferredField{
				RunID:     rec.report.RunID,
				OwnerType: owner,
				FieldKey:  f.Field.Key,
				Payload:   string(payload),
			})
			if err != nil {
				rec.logger.Error("journal write failed", zap.Error(err))
			}
		}
	}
}

// reconcile is Phase 2. Each owner gets one update carrying all of its
// deferred fields that now resolve. Nothing is retried.
func (m *DefinitionMigrator) reconcile(ctx context.Context, rec *recorder, deferred format.DeferredFields) error {
	for _, owner := range deferred.Owners() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields := deferred[owner]

		ownerID, ok := m.resolver.DestinationDefinitionID(ctx, owner)
		if !ok {
			for _, f := range fields {
				rec.fail(ctx, Failure{
					Kind:      FailureResolution,
					Subject:   owner + "." + f.Field.Key,
					Operation: "reintegrate field",
					Message:   fmt.Sprintf("definition %s not found in destination", owner),
				})
			}
			continue
		}

		lookup := func(typ string) (string, bool) {
			return m.resolver.DestinationDefinitionID(ctx, typ)
		}
		var ops []ir.FieldDefinitionOperation
		var keys []string
		for _, f := range fields {
			field, missing := f.Reintegrate(lookup)
			if len(missing) > 0 {
				rec.fail(ctx, Failure{
					Kind:      FailureResolution,
					Subject:   owner + "." + f.Field.Key,
					Operation: "reintegrate field",
					Message:   fmt.Sprintf("referenced definitions not found in destination: %s", strings.Join(missing, ", ")),
				})
				continue
			}
			ops = append(ops, ir.FieldDefinitionOperation{Create: &field})
			keys = append(keys, f.Field.Key)
		}
		if len(ops) == 0 {
			continue
		}

		_, err := m.destination.UpdateDefinition(ctx, ownerID, ir.DefinitionUpdateInput{
			FieldDefinitions: ops,
			ResetFieldOrder:  true,
		})
		if err != nil {
			rec.failErr(ctx, owner, "update definition", err)
			continue
		}

		rec.state(ctx, owner, StateFieldsReconciled, ownerID, "")
		rec.logger.Info("deferred fields added", zap.String("type", owner), zap.Strings("fields", keys))
		for _, key := range keys {
			markReconciled(rec.report, owner, key)
			if err := rec.journal.MarkDeferredReconciled(ctx, rec.report.RunID, owner, key); err != nil {
				rec.logger.Error("journal write failed", zap.Error(err))
			}
		}
	}
	return nil
}

func markReconciled(r *Report, owner, key string) {
	for i := range r.Deferred {
		if r.Deferred[i].Owner == owner && r.Deferred[i].Field == key {
			r.Deferred[i].Reconciled = true
		}
	}
}
