package migrate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/ir"
)

// RemoteSource reads a live store. *shopify.Store implements it.
type RemoteSource interface {
	ListDefinitions(ctx context.Context) ([]ir.DefinitionSummary, error)
	DefinitionByType(ctx context.Context, typ string) (*ir.Definition, error)
	Metaobjects(ctx context.Context, typ string, pageSize, limit int) ([]ir.Metaobject, error)
}

// SnapshotWriter persists an export. *snapshot.Snapshot implements it.
type SnapshotWriter interface {
	WriteDefinition(def ir.Definition) error
	WriteMetaobject(m ir.Metaobject) error
	WriteComplete(def ir.Definition, objs []ir.Metaobject) error
}

// Exporter writes every definition and instance of a store to a snapshot.
type Exporter struct {
	source   RemoteSource
	writer   SnapshotWriter
	pageSize int
	opts     Options
}

// NewExporter creates an exporter. pageSize <= 0 uses the store default.
// The journal of opts is not used; exports are not journaled.
func NewExporter(source RemoteSource, writer SnapshotWriter, pageSize int, opts Options) *Exporter {
	opts = opts.withDefaults()
	opts.Journal = nopJournal{}
	return &Exporter{source: source, writer: writer, pageSize: pageSize, opts: opts}
}

// Run exports the store. Failing to list definitions is returned as an
// error; failures of individual types are recorded in the Report.
func (e *Exporter) Run(ctx context.Context) (*Report, error) {
	rec, err := startRun(ctx, e.opts, "snapshot")
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	summaries, err := e.source.ListDefinitions(ctx)
	if err != nil {
		return rec.finish(ctx, err)
	}
	rec.logger.Info("definitions listed", zap.Int("count", len(summaries)))

	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return rec.finish(ctx, err)
		}
		e.export(ctx, rec, summary.Type)
	}
	return rec.finish(ctx, nil)
}

func (e *Exporter) export(ctx context.Context, rec *recorder, typ string) {
	def, err := e.source.DefinitionByType(ctx, typ)
	if err != nil {
		rec.failErr(ctx, typ, "fetch definition", err)
		return
	}
	if def == nil {
		rec.fail(ctx, Failure{Kind: FailureRemote, Subject: typ, Operation: "fetch definition", Message: "definition disappeared during export"})
		return
	}
	if err := e.writer.WriteDefinition(*def); err != nil {
		rec.fail(ctx, Failure{Kind: FailureLocalIO, Subject: typ, Operation: "write definition", Message: err.Error()})
		return
	}

	limit := def.MetaobjectsCount
	objs, err := e.source.Metaobjects(ctx, typ, e.pageSize, limit)
	if err != nil {
		rec.failErr(ctx, typ, "fetch metaobjects", err)
		return
	}
	written := 0
	for _, m := range objs {
		if m.Type == "" {
			m.Type = typ
		}
		if err := e.writer.WriteMetaobject(m); err != nil {
			rec.fail(ctx, Failure{Kind: FailureLocalIO, Subject: typ + "/" + m.Handle, Operation: "write metaobject", Message: err.Error()})
			continue
		}
		written++
	}
	if err := e.writer.WriteComplete(*def, objs); err != nil {
		rec.fail(ctx, Failure{Kind: FailureLocalIO, Subject: typ, Operation: "write complete", Message: err.Error()})
	}

	rec.report.Exported = append(rec.report.Exported, ExportedType{Type: typ, Metaobjects: written})
	rec.logger.Info("type exported", zap.String("type", typ), zap.Int("metaobjects", written))
}
