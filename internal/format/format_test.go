package format

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/metamigrate/internal/ir"
	"github.com/roach88/metamigrate/internal/resolve"
	"github.com/roach88/metamigrate/internal/testutil"
)

type stores struct {
	src *testutil.FakePlatform
	dst *testutil.FakePlatform
	res *resolve.Resolver
}

func newStores() stores {
	src := testutil.NewFakePlatform("src")
	dst := testutil.NewFakePlatform("dst")
	return stores{src: src, dst: dst, res: resolve.New(src, dst, nil)}
}

func refField(key, id string) ir.FieldDefinition {
	return ir.FieldDefinition{
		Key:  key,
		Name: key,
		Type: ir.FieldType{Category: "REFERENCE", Name: ir.TypeMetaobjectReference},
		Validations: []ir.Validation{
			{Name: ir.ValidationDefinitionID, Type: "single_line_text_field", Value: id},
		},
	}
}

func TestFormatStripsStoreScopedData(t *testing.T) {
	s := newStores()
	def := ir.Definition{
		ID:               "gid://src/MetaobjectDefinition/7",
		Name:             "Size",
		Type:             "Size",
		Description:      ir.StringPtr("Shoe sizes"),
		MetaobjectsCount: 12,
		FieldDefinitions: []ir.FieldDefinition{
			{Key: "label", Name: "Label", Required: true, Type: ir.FieldType{Category: "TEXT", Name: "single_line_text_field"}},
		},
	}

	res, err := New(s.res, nil).Format(context.Background(), def)
	require.NoError(t, err)

	data, err := json.Marshal(res.Definition)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Size",
		"type": "Size",
		"description": "Shoe sizes",
		"fieldDefinitions": [
			{"key": "label", "name": "Label", "required": true, "type": "single_line_text_field"}
		]
	}`, string(data))
	assert.Empty(t, res.Deferred)
	assert.Empty(t, res.Excluded)
}

func TestFormatKeepsCapabilities(t *testing.T) {
	s := newStores()
	def := ir.Definition{
		Name:             "Size",
		Type:             "Size",
		Capabilities:     &ir.DefinitionCapabilities{Publishable: &ir.CapabilityToggle{Enabled: true}},
		FieldDefinitions: []ir.FieldDefinition{},
	}

	res, err := New(s.res, nil).Format(context.Background(), def)
	require.NoError(t, err)

	data, err := json.Marshal(res.Definition)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "Size",
		"type": "Size",
		"capabilities": {"publishable": {"enabled": true}},
		"fieldDefinitions": []
	}`, string(data))
}

func TestFormatSerializesValidationValues(t *testing.T) {
	s := newStores()
	def := ir.Definition{Name: "Shoe", Type: "shoe", FieldDefinitions: []ir.FieldDefinition{
		{Key: "rating", Name: "Rating", Type: ir.FieldType{Name: "rating"}, Validations: []ir.Validation{
			{Name: "scale_min", Value: "1.0"},
			{Name: "scale", Value: map[string]any{"max": 5, "min": 1}},
			{Name: "choices", Value: []any{"a", "b"}},
			{Name: "enabled", Value: true},
		}},
	}}

	res, err := New(s.res, nil).Format(context.Background(), def)
	require.NoError(t, err)
	require.Len(t, res.Definition.FieldDefinitions, 1)
	assert.Equal(t, []ir.ValidationInput{
		{Name: "scale_min", Value: "1.0"},
		{Name: "scale", Value: `{"max":5,"min":1}`},
		{Name: "choices", Value: `["a","b"]`},
		{Name: "enabled", Value: "true"},
	}, res.Definition.FieldDefinitions[0].Validations)
}

func TestFormatResolvesReference(t *testing.T) {
	s := newStores()
	srcSize := s.src.AddDefinition(ir.Definition{Name: "Size", Type: "Size"})
	dstSize := s.dst.AddDefinition(ir.Definition{Name: "Size", Type: "Size"})

	def := ir.Definition{Name: "Product Feature", Type: "Product-Feature", FieldDefinitions: []ir.FieldDefinition{
		refField("size", srcSize.ID),
	}}
	res, err := New(s.res, nil).Format(context.Background(), def)
	require.NoError(t, err)

	require.Len(t, res.Definition.FieldDefinitions, 1)
	assert.Equal(t, []ir.ValidationInput{{Name: ir.ValidationDefinitionID, Value: dstSize.ID}},
		res.Definition.FieldDefinitions[0].Validations)
	assert.Empty(t, res.Deferred)
}

func TestFormatDefersMissingDestination(t *testing.T) {
	s := newStores()
	srcColor := s.src.AddDefinition(ir.Definition{Name: "Color", Type: "color"})

	def := ir.Definition{Name: "Swatch", Type: "swatch", FieldDefinitions: []ir.FieldDefinition{
		{Key: "name", Name: "Name", Type: ir.FieldType{Name: "single_line_text_field"}},
		refField("color", srcColor.ID),
	}}
	res, err := New(s.res, nil).Format(context.Background(), def)
	require.NoError(t, err)

	require.Len(t, res.Definition.FieldDefinitions, 1)
	assert.Equal(t, "name", res.Definition.FieldDefinitions[0].Key)

	require.Len(t, res.Deferred["swatch"], 1)
	deferred := res.Deferred["swatch"][0]
	assert.Equal(t, "color", deferred.Field.Key)
	assert.Equal(t, []PendingRef{{Validation: 0, Type: "color"}}, deferred.Pending)

	field, missing := deferred.Reintegrate(func(typ string) (string, bool) {
		return "gid://dst/MetaobjectDefinition/42", typ == "color"
	})
	assert.Empty(t, missing)
	assert.Equal(t, "gid://dst/MetaobjectDefinition/42", field.Validations[0].Value)
	assert.Empty(t, deferred.Field.Validations[0].Value, "reintegration must not mutate the deferred field")
}

func TestFormatExcludesUnknownSourceType(t *testing.T) {
	s := newStores()
	core, logs := observer.New(zapcore.DebugLevel)

	def := ir.Definition{Name: "Swatch", Type: "swatch", FieldDefinitions: []ir.FieldDefinition{
		refField("ghost", "gid://src/MetaobjectDefinition/404"),
	}}
	res, err := New(s.res, zap.New(core)).Format(context.Background(), def)
	require.NoError(t, err)

	assert.Empty(t, res.Definition.FieldDefinitions)
	assert.Empty(t, res.Deferred)
	assert.Equal(t, []ExcludedField{{Owner: "swatch", Field: "ghost", SourceID: "gid://src/MetaobjectDefinition/404"}}, res.Excluded)

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ghost", entries[0].ContextMap()["field"])
}

func TestFormatOmitsEmptyValidations(t *testing.T) {
	s := newStores()
	def := ir.Definition{Name: "Tag", Type: "tag", FieldDefinitions: []ir.FieldDefinition{
		{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}, Validations: []ir.Validation{}},
	}}
	res, err := New(s.res, nil).Format(context.Background(), def)
	require.NoError(t, err)

	data, err := json.Marshal(res.Definition.FieldDefinitions[0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "validations")
}

func TestDeferredFieldsMerge(t *testing.T) {
	d := DeferredFields{"a": {{Owner: "a"}}}
	d.Merge(DeferredFields{"a": {{Owner: "a"}}, "b": {{Owner: "b"}}})

	assert.Equal(t, []string{"a", "b"}, d.Owners())
	assert.Equal(t, 3, d.Len())
}

func TestReintegrateReportsMissing(t *testing.T) {
	d := DeferredField{
		Owner:   "a",
		Field:   ir.FieldDefinitionInput{Key: "b", Validations: []ir.ValidationInput{{Name: ir.ValidationDefinitionID}}},
		Pending: []PendingRef{{Validation: 0, Type: "b"}},
	}
	_, missing := d.Reintegrate(func(string) (string, bool) { return "", false })
	assert.Equal(t, []string{"b"}, missing)
}

func TestInstance(t *testing.T) {
	m := ir.Metaobject{
		ID:          "gid://src/Metaobject/1",
		Handle:      "us-9",
		Type:        "Size",
		DisplayName: "US 9",
		Capabilities: &ir.MetaobjectCapabilities{
			Publishable: &ir.PublishableCapability{Status: "ACTIVE"},
		},
		Fields: []ir.MetaobjectField{
			{Key: "label", Value: ir.StringPtr("US 9"), Type: "single_line_text_field"},
			{Key: "note", Value: nil, Type: "multi_line_text_field"},
		},
	}

	handle, input := Instance(m)
	assert.Equal(t, ir.MetaobjectHandle{Handle: "us-9", Type: "Size"}, handle)

	data, err := json.Marshal(input)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"fields": [{"key": "label", "value": "US 9"}],
		"capabilities": {"publishable": {"status": "ACTIVE"}}
	}`, string(data))
}
