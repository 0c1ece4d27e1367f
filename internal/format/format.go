// Package format turns definitions and instances read from the source store
// into mutation payloads for the destination store.
//
// Definition fields that validate against another definition carry a
// source-store ID. The formatter rewrites it to the destination ID of the
// same type. When the source type is unknown the field is excluded; when the
// destination does not have the type yet the field is deferred so the
// definition can be created without it and extended later.
package format

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/ir"
)

// DefinitionResolver translates definition references.
// *resolve.Resolver implements it.
type DefinitionResolver interface {
	SourceType(ctx context.Context, definitionID string) (string, bool)
	DestinationDefinitionID(ctx context.Context, typ string) (string, bool)
}

// PendingRef is a definition reference of a deferred field that had no
// destination ID at format time.
type PendingRef struct {
	// Validation indexes Field.Validations.
	Validation int `json:"validation"`
	// Type is the source type of the referenced definition.
	Type string `json:"type"`
}

// DeferredField is a formatted field held back from its owner's create
// payload.
type DeferredField struct {
	Owner   string                  `json:"owner"`
	Field   ir.FieldDefinitionInput `json:"field"`
	Pending []PendingRef            `json:"pending"`
}

// Reintegrate fills the pending references with destination IDs from
// lookup. It returns the completed field and the types lookup could not
// resolve; the field is only usable when missing is empty.
func (d DeferredField) Reintegrate(lookup func(typ string) (string, bool)) (ir.FieldDefinitionInput, []string) {
	field := d.Field
	field.Validations = slices.Clone(d.Field.Validations)

	var missing []string
	for _, p := range d.Pending {
		if p.Validation < 0 || p.Validation >= len(field.Validations) {
			missing = append(missing, p.Type)
			continue
		}
		id, ok := lookup(p.Type)
		if !ok {
			missing = append(missing, p.Type)
			continue
		}
		field.Validations[p.Validation].Value = id
	}
	return field, missing
}

// DeferredFields groups deferred fields by owner type.
type DeferredFields map[string][]DeferredField

// Merge appends every field of other.
func (d DeferredFields) Merge(other DeferredFields) {
	for owner, fields := range other {
		d[owner] = append(d[owner], fields...)
	}
}

// Owners returns the owner types in ascending order.
func (d DeferredFields) Owners() []string {
	owners := make([]string, 0, len(d))
	for owner := range d {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Len returns the number of deferred fields across owners.
func (d DeferredFields) Len() int {
	n := 0
	for _, fields := range d {
		n += len(fields)
	}
	return n
}

// ExcludedField is a field dropped because a referenced definition is
// unknown to the source store.
type ExcludedField struct {
	Owner    string `json:"owner"`
	Field    string `json:"field"`
	SourceID string `json:"source_id"`
}

// Result is the outcome of formatting one definition.
type Result struct {
	Definition ir.DefinitionCreateInput
	Deferred   DeferredFields
	Excluded   []ExcludedField
}

// Formatter builds mutation payloads.
type Formatter struct {
	resolver DefinitionResolver
	logger   *zap.Logger
}

// New creates a formatter. A nil logger discards output.
func New(resolver DefinitionResolver, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{resolver: resolver, logger: logger}
}

// Format builds the create payload for def. The source ID and instance
// count never reach the payload. An error means a validation value could
// not be serialized.
func (f *Formatter) Format(ctx context.Context, def ir.Definition) (Result, error) {
	res := Result{
		Definition: ir.DefinitionCreateInput{
			Name:             def.Name,
			Type:             def.Type,
			Description:      def.Description,
			Capabilities:     def.Capabilities,
			FieldDefinitions: []ir.FieldDefinitionInput{},
		},
		Deferred: DeferredFields{},
	}

	for _, fd := range def.FieldDefinitions {
		input := ir.FieldDefinitionInput{
			Key:         fd.Key,
			Name:        fd.Name,
			Description: fd.Description,
			Required:    fd.Required,
			Type:        fd.Type.Name,
		}

		var pending []PendingRef
		excluded := false
		for _, v := range fd.Validations {
			value, err := v.ValueString()
			if err != nil {
				return Result{}, fmt.Errorf("format %s.%s: %w", def.Type, fd.Key, err)
			}
			if !fd.IsMetaobjectReference() || v.Name != ir.ValidationDefinitionID {
				input.Validations = append(input.Validations, ir.ValidationInput{Name: v.Name, Value: value})
				continue
			}

			typ, ok := f.resolver.SourceType(ctx, value)
			if !ok {
				f.logger.Error("field excluded: referenced definition not found in source",
					zap.String("type", def.Type), zap.String("field", fd.Key), zap.String("id", value))
				res.Excluded = append(res.Excluded, ExcludedField{Owner: def.Type, Field: fd.Key, SourceID: value})
				excluded = true
				break
			}
			id, ok := f.resolver.DestinationDefinitionID(ctx, typ)
			if !ok {
				pending = append(pending, PendingRef{Validation: len(input.Validations), Type: typ})
				input.Validations = append(input.Validations, ir.ValidationInput{Name: v.Name})
				continue
			}
			input.Validations = append(input.Validations, ir.ValidationInput{Name: v.Name, Value: id})
		}

		switch {
		case excluded:
		case len(pending) > 0:
			f.logger.Info("field deferred",
				zap.String("type", def.Type), zap.String("field", fd.Key), zap.String("depends_on", pending[0].Type))
			res.Deferred[def.Type] = append(res.Deferred[def.Type], DeferredField{
				Owner:   def.Type,
				Field:   input,
				Pending: pending,
			})
		default:
			res.Definition.FieldDefinitions = append(res.Definition.FieldDefinitions, input)
		}
	}
	return res, nil
}

// Instance builds the upsert payload of m. The display name and field types
// are dropped, as is every field whose value is null.
func Instance(m ir.Metaobject) (ir.MetaobjectHandle, ir.MetaobjectUpsertInput) {
	input := ir.MetaobjectUpsertInput{
		Fields:       make([]ir.MetaobjectFieldInput, 0, len(m.Fields)),
		Capabilities: m.Capabilities,
	}
	for _, field := range m.Fields {
		if field.Value == nil {
			continue
		}
		input.Fields = append(input.Fields, ir.MetaobjectFieldInput{Key: field.Key, Value: *field.Value})
	}
	return ir.MetaobjectHandle{Handle: m.Handle, Type: m.Type}, input
}
