package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metamigrate/internal/ir"
	"github.com/roach88/metamigrate/internal/store"
)

// seedInstances creates the Size type in both stores and writes objs to the
// snapshot.
func seedInstances(t *testing.T, h *harness, fields []ir.FieldDefinition, objs ...ir.Metaobject) {
	t.Helper()
	def := h.define(ir.Definition{Name: "Size", Type: "Size", FieldDefinitions: fields})
	inputs := make([]ir.FieldDefinitionInput, len(def.FieldDefinitions))
	for i, fd := range def.FieldDefinitions {
		inputs[i] = ir.FieldDefinitionInput{Key: fd.Key, Name: fd.Name, Type: fd.Type.Name}
	}
	_, err := h.dst.CreateDefinition(context.Background(), ir.DefinitionCreateInput{Name: def.Name, Type: def.Type, FieldDefinitions: inputs})
	require.NoError(t, err)
	for _, m := range objs {
		require.NoError(t, h.snap.WriteMetaobject(m))
	}
}

func field(key, typ string, value *string) ir.MetaobjectField {
	return ir.MetaobjectField{Key: key, Type: typ, Value: value}
}

func valueOf(t *testing.T, m ir.Metaobject, key string) (string, bool) {
	t.Helper()
	for _, f := range m.Fields {
		if f.Key == key {
			require.NotNil(t, f.Value)
			return *f.Value, true
		}
	}
	return "", false
}

func TestInstancesRewriteReferences(t *testing.T) {
	h := newHarness(t)
	h.src.AddProduct("gid://src/Product/1", "sandal")
	h.dst.AddProduct("gid://dst/Product/9", "sandal")
	h.src.AddCollection("gid://src/Collection/1", "summer")
	h.dst.AddCollection("gid://dst/Collection/5", "summer")
	h.src.AddFile("gid://src/MediaImage/1", "hero")
	h.dst.AddFile("gid://dst/MediaImage/7", "hero")

	seedInstances(t, h,
		[]ir.FieldDefinition{
			{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}},
			{Key: "product", Name: "Product", Type: ir.FieldType{Name: ir.TypeProductReference}},
			{Key: "collection", Name: "Collection", Type: ir.FieldType{Name: ir.TypeCollectionReference}},
			{Key: "image", Name: "Image", Type: ir.FieldType{Name: ir.TypeFileReference}},
			{Key: "related", Name: "Related", Type: ir.FieldType{Name: ir.TypeMetaobjectReference}},
			{Key: "note", Name: "Note", Type: ir.FieldType{Name: "multi_line_text_field"}},
		},
		ir.Metaobject{Handle: "us-9", Type: "Size", DisplayName: "US 9", Fields: []ir.MetaobjectField{
			field("label", "single_line_text_field", ir.StringPtr("US 9")),
			field("product", ir.TypeProductReference, ir.StringPtr("gid://src/Product/1")),
			field("collection", ir.TypeCollectionReference, ir.StringPtr("gid://src/Collection/1")),
			field("image", ir.TypeFileReference, ir.StringPtr("gid://src/MediaImage/1")),
			field("related", ir.TypeMetaobjectReference, ir.StringPtr("gid://src/Metaobject/3")),
			field("note", "multi_line_text_field", nil),
		}},
	)

	report, err := NewInstanceMigrator(h.snap, h.dst, h.res, h.options()).Run(context.Background(), []string{"Size"})
	require.NoError(t, err)
	assert.False(t, report.Failed(), "failures: %v", report.Failures)
	assert.Equal(t, &InstanceStats{Upserted: 1}, report.Instances)

	m, ok := h.dst.Metaobject("Size", "us-9")
	require.True(t, ok)
	for key, want := range map[string]string{
		"label":      "US 9",
		"product":    "gid://dst/Product/9",
		"collection": "gid://dst/Collection/5",
		"image":      "gid://dst/MediaImage/7",
		"related":    "gid://src/Metaobject/3",
	} {
		got, ok := valueOf(t, m, key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok = valueOf(t, m, "note")
	assert.False(t, ok, "null fields are not written")
}

func TestInstancesDropUnresolvableField(t *testing.T) {
	h := newHarness(t)
	h.src.AddProduct("gid://src/Product/1", "sandal")

	seedInstances(t, h,
		[]ir.FieldDefinition{
			{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}},
			{Key: "product", Name: "Product", Type: ir.FieldType{Name: ir.TypeProductReference}},
		},
		ir.Metaobject{Handle: "us-9", Type: "Size", Fields: []ir.MetaobjectField{
			field("label", "single_line_text_field", ir.StringPtr("US 9")),
			field("product", ir.TypeProductReference, ir.StringPtr("gid://src/Product/1")),
		}},
	)

	report, err := NewInstanceMigrator(h.snap, h.dst, h.res, h.options()).Run(context.Background(), []string{"Size"})
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, FailureResolution, report.Failures[0].Kind)
	assert.Equal(t, "Size/us-9", report.Failures[0].Subject)
	assert.Contains(t, report.Failures[0].Message, `"sandal"`)

	m, ok := h.dst.Metaobject("Size", "us-9")
	require.True(t, ok, "the instance is still upserted")
	_, ok = valueOf(t, m, "product")
	assert.False(t, ok)
}

func TestInstancesListReferences(t *testing.T) {
	h := newHarness(t)
	h.src.AddProduct("gid://src/Product/1", "sandal")
	h.src.AddProduct("gid://src/Product/2", "boot")
	h.dst.AddProduct("gid://dst/Product/9", "sandal")

	seedInstances(t, h,
		[]ir.FieldDefinition{
			{Key: "products", Name: "Products", Type: ir.FieldType{Name: "list." + ir.TypeProductReference}},
			{Key: "others", Name: "Others", Type: ir.FieldType{Name: "list." + ir.TypeProductReference}},
		},
		ir.Metaobject{Handle: "us-9", Type: "Size", Fields: []ir.MetaobjectField{
			field("products", "list."+ir.TypeProductReference, ir.StringPtr(`["gid://src/Product/1","gid://src/Product/2"]`)),
			field("others", "list."+ir.TypeProductReference, ir.StringPtr(`["gid://src/Product/2"]`)),
		}},
	)

	report, err := NewInstanceMigrator(h.snap, h.dst, h.res, h.options()).Run(context.Background(), []string{"Size"})
	require.NoError(t, err)
	assert.Len(t, report.FailuresOf(FailureResolution), 2)

	m, ok := h.dst.Metaobject("Size", "us-9")
	require.True(t, ok)
	got, ok := valueOf(t, m, "products")
	require.True(t, ok)
	assert.JSONEq(t, `["gid://dst/Product/9"]`, got)
	_, ok = valueOf(t, m, "others")
	assert.False(t, ok, "a list with nothing resolved is dropped")
}

func TestInstancesUpsertIsIdempotent(t *testing.T) {
	h := newHarness(t)
	seedInstances(t, h,
		[]ir.FieldDefinition{{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}}},
		ir.Metaobject{Handle: "us-9", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("US 9"))}},
		ir.Metaobject{Handle: "us-10", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("US 10"))}},
	)
	m := NewInstanceMigrator(h.snap, h.dst, h.res, h.options())

	for i := 0; i < 2; i++ {
		report, err := m.Run(context.Background(), []string{"Size"})
		require.NoError(t, err)
		assert.Equal(t, 2, report.Instances.Upserted)
	}
	objs, err := h.dst.Metaobjects(context.Background(), "Size", 0, 0)
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestInstancesSkipUnchanged(t *testing.T) {
	h := newHarness(t)
	seedInstances(t, h,
		[]ir.FieldDefinition{{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}}},
		ir.Metaobject{Handle: "us-9", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("US 9"))}},
	)

	journal, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer journal.Close()

	opts := h.options()
	opts.Journal = journal
	opts.SkipUnchanged = true
	m := NewInstanceMigrator(h.snap, h.dst, h.res, opts)

	first, err := m.Run(context.Background(), []string{"Size"})
	require.NoError(t, err)
	assert.Equal(t, &InstanceStats{Upserted: 1}, first.Instances)

	second, err := m.Run(context.Background(), []string{"Size"})
	require.NoError(t, err)
	assert.Equal(t, &InstanceStats{Skipped: 1}, second.Instances)

	require.NoError(t, h.snap.WriteMetaobject(ir.Metaobject{Handle: "us-9", Type: "Size", Fields: []ir.MetaobjectField{
		field("label", "single_line_text_field", ir.StringPtr("US 9.0")),
	}}))
	third, err := m.Run(context.Background(), []string{"Size"})
	require.NoError(t, err)
	assert.Equal(t, &InstanceStats{Upserted: 1}, third.Instances)
}

func TestInstancesUpsertFailureContinues(t *testing.T) {
	h := newHarness(t)
	seedInstances(t, h,
		[]ir.FieldDefinition{{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}}},
		ir.Metaobject{Handle: "a", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("A"))}},
		ir.Metaobject{Handle: "b", Type: "Size", Fields: []ir.MetaobjectField{field("bogus", "single_line_text_field", ir.StringPtr("B"))}},
		ir.Metaobject{Handle: "c", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("C"))}},
	)

	report, err := NewInstanceMigrator(h.snap, h.dst, h.res, h.options()).Run(context.Background(), []string{"Size", "Color"})
	require.NoError(t, err)

	assert.Equal(t, &InstanceStats{Upserted: 2, Failed: 1}, report.Instances)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, FailureRemote, report.Failures[0].Kind)
	assert.Equal(t, "Size/b", report.Failures[0].Subject)
}

func TestInstancesTransportFailure(t *testing.T) {
	h := newHarness(t)
	seedInstances(t, h,
		[]ir.FieldDefinition{{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}}},
		ir.Metaobject{Handle: "a", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("A"))}},
	)
	h.dst.FailOn("UpsertMetaobject", errors.New("503 service unavailable"))

	report, err := NewInstanceMigrator(h.snap, h.dst, h.res, h.options()).Run(context.Background(), []string{"Size"})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, FailureTransport, report.Failures[0].Kind)
}

func TestInstancesCorruptFileSkipsOnlyThatInstance(t *testing.T) {
	h := newHarness(t)
	seedInstances(t, h,
		[]ir.FieldDefinition{{Key: "label", Name: "Label", Type: ir.FieldType{Name: "single_line_text_field"}}},
		ir.Metaobject{Handle: "a", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("A"))}},
		ir.Metaobject{Handle: "b", Type: "Size", Fields: []ir.MetaobjectField{field("label", "single_line_text_field", ir.StringPtr("B"))}},
	)
	corrupt := filepath.Join(h.snap.Root(), "metaobjects_definitions", "Size", "metaobjects", "zz.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	report, err := NewInstanceMigrator(h.snap, h.dst, h.res, h.options()).Run(context.Background(), []string{"Size"})
	require.NoError(t, err)

	assert.Equal(t, &InstanceStats{Upserted: 2, Failed: 1}, report.Instances)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, FailureLocalIO, report.Failures[0].Kind)
	assert.Equal(t, "Size/zz.json", report.Failures[0].Subject)

	objs, err := h.dst.Metaobjects(context.Background(), "Size", 0, 0)
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}
