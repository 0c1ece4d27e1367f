package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/format"
	"github.com/roach88/metamigrate/internal/ir"
	"github.com/roach88/metamigrate/internal/resolve"
	"github.com/roach88/metamigrate/internal/snapshot"
	"github.com/roach88/metamigrate/internal/store"
)

// MetaobjectSource reads instances from a snapshot. *snapshot.Snapshot
// implements it. invalid lists the files that could not be decoded; err
// means the type could not be read at all.
type MetaobjectSource interface {
	Metaobjects(typ string) (objs []ir.Metaobject, invalid []*snapshot.FileError, err error)
}

// MetaobjectDestination writes instances. *shopify.Store implements it.
type MetaobjectDestination interface {
	UpsertMetaobject(ctx context.Context, handle ir.MetaobjectHandle, input ir.MetaobjectUpsertInput) (*ir.Metaobject, error)
}

// ReferenceResolver translates product, collection and media IDs.
// *resolve.Resolver implements it.
type ReferenceResolver interface {
	Resolve(ctx context.Context, kind ir.RefKind, sourceID string) resolve.Resolution
}

// InstanceMigrator upserts instances with their references rewritten.
type InstanceMigrator struct {
	source      MetaobjectSource
	destination MetaobjectDestination
	resolver    ReferenceResolver
	opts        Options
}

// NewInstanceMigrator creates a migrator.
func NewInstanceMigrator(source MetaobjectSource, destination MetaobjectDestination, resolver ReferenceResolver, opts Options) *InstanceMigrator {
	return &InstanceMigrator{
		source:      source,
		destination: destination,
		resolver:    resolver,
		opts:        opts.withDefaults(),
	}
}

// Run upserts every instance of every type in sequence, in order. The
// returned error is non-nil only when the journal cannot start the run or
// ctx is cancelled.
func (m *InstanceMigrator) Run(ctx context.Context, sequence []string) (*Report, error) {
	rec, err := startRun(ctx, m.opts, "metaobjects")
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	rec.report.Instances = &InstanceStats{}

	for _, typ := range sequence {
		objs, invalid, err := m.source.Metaobjects(typ)
		if err != nil {
			rec.failErr(ctx, typ, "read metaobjects", err)
			continue
		}
		for _, fe := range invalid {
			rec.report.Instances.Failed++
			rec.failErr(ctx, typ+"/"+filepath.Base(fe.Path), "read metaobject", fe)
		}
		rec.logger.Info("migrating metaobjects", zap.String("type", typ), zap.Int("count", len(objs)))

		for _, obj := range objs {
			if err := ctx.Err(); err != nil {
				return rec.finish(ctx, err)
			}
			m.migrate(ctx, rec, obj)
		}
	}
	return rec.finish(ctx, nil)
}

func (m *InstanceMigrator) migrate(ctx context.Context, rec *recorder, obj ir.Metaobject) {
	subject := obj.Type + "/" + obj.Handle
	stats := rec.report.Instances

	handle, input := format.Instance(m.rewrite(ctx, rec, obj))

	var hash string
	if m.opts.SkipUnchanged {
		h, err := ir.UpsertHash(handle, input)
		if err != nil {
			rec.logger.Warn("hash upsert payload", zap.String("subject", subject), zap.Error(err))
		} else {
			hash = h
			last, ok, err := rec.journal.LastUpsertHash(ctx, handle.Type, handle.Handle)
			if err != nil {
				rec.logger.Error("journal read failed", zap.Error(err))
			} else if ok && last == hash {
				stats.Skipped++
				rec.logger.Debug("unchanged, skipped", zap.String("type", obj.Type), zap.String("handle", obj.Handle))
				return
			}
		}
	}

	upserted, err := m.destination.UpsertMetaobject(ctx, handle, input)
	if err != nil {
		stats.Failed++
		rec.failErr(ctx, subject, "upsert metaobject", err)
		return
	}
	stats.Upserted++
	rec.logger.Debug("upserted", zap.String("type", obj.Type), zap.String("handle", obj.Handle))

	if hash == "" {
		h, err := ir.UpsertHash(handle, input)
		if err != nil {
			return
		}
		hash = h
	}
	destinationID := ""
	if upserted != nil {
		destinationID = upserted.ID
	}
	err = rec.journal.RecordUpsert(ctx, store.Upsert{
		Type:          handle.Type,
		Handle:        handle.Handle,
		PayloadHash:   hash,
		DestinationID: destinationID,
		RunID:         rec.report.RunID,
	})
	if err != nil {
		rec.logger.Error("journal write failed", zap.Error(err))
	}
}

// rewrite returns a copy of obj with reference values translated to
// destination IDs. A field that cannot be translated gets a nil value,
// which format.Instance drops.
func (m *InstanceMigrator) rewrite(ctx context.Context, rec *recorder, obj ir.Metaobject) ir.Metaobject {
	subject := obj.Type + "/" + obj.Handle
	out := obj
	out.Fields = make([]ir.MetaobjectField, len(obj.Fields))

	for i, field := range obj.Fields {
		out.Fields[i] = field
		if field.Value == nil {
			continue
		}
		kind, ok := ir.RefKindForFieldType(field.BaseType())
		if !ok {
			continue
		}

		if !field.IsList() {
			res := m.resolver.Resolve(ctx, kind, *field.Value)
			if !res.OK() {
				m.dropped(ctx, rec, subject, field.Key, res)
				out.Fields[i].Value = nil
				continue
			}
			out.Fields[i].Value = ir.StringPtr(res.ID)
			continue
		}

		var ids []string
		if err := json.Unmarshal([]byte(*field.Value), &ids); err != nil {
			rec.fail(ctx, Failure{
				Kind:      FailureResolution,
				Subject:   subject,
				Operation: "resolve " + field.Key,
				Message:   fmt.Sprintf("list value is not an array of IDs: %v", err),
			})
			out.Fields[i].Value = nil
			continue
		}
		resolved := make([]string, 0, len(ids))
		for _, id := range ids {
			res := m.resolver.Resolve(ctx, kind, id)
			if !res.OK() {
				m.dropped(ctx, rec, subject, field.Key, res)
				continue
			}
			resolved = append(resolved, res.ID)
		}
		if len(resolved) == 0 {
			out.Fields[i].Value = nil
			continue
		}
		data, err := json.Marshal(resolved)
		if err != nil {
			out.Fields[i].Value = nil
			continue
		}
		out.Fields[i].Value = ir.StringPtr(string(data))
	}
	return out
}

func (m *InstanceMigrator) dropped(ctx context.Context, rec *recorder, subject, key string, res resolve.Resolution) {
	msg := fmt.Sprintf("%s %s not found in source", res.Kind, res.SourceID)
	if res.Status == resolve.MissingDestination {
		msg = fmt.Sprintf("%s with %s %q not found in destination", res.Kind, res.Kind.KeyName(), res.Key)
	}
	rec.fail(ctx, Failure{
		Kind:      FailureResolution,
		Subject:   subject,
		Operation: "resolve " + key,
		Message:   msg,
	})
}
