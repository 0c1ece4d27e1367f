package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/metamigrate/internal/ir"
	"github.com/roach88/metamigrate/internal/shopify"
)

// FakePlatform is an in-memory store that enforces the rules the migration
// depends on:
//   - a definition type can be created once (TAKEN on the second attempt)
//   - a metaobject_definition_id validation must name an existing definition
//   - an upsert needs an existing definition and known field keys
//
// It implements the lookups of resolve.Directory and the read/write
// operations of *shopify.Store.
//
// Thread-safety: all methods lock an internal mutex.
type FakePlatform struct {
	mu   sync.Mutex
	name string
	seq  int

	definitions map[string]*ir.Definition // by type
	metaobjects map[ir.MetaobjectHandle]*ir.Metaobject
	products    map[string]string // id -> handle
	collections map[string]string // id -> handle
	files       map[string]string // id -> alt text

	failures map[string]error
	calls    []string
}

// NewFakePlatform creates an empty store. name scopes generated IDs so IDs
// from two fakes never collide.
func NewFakePlatform(name string) *FakePlatform {
	return &FakePlatform{
		name:        name,
		definitions: make(map[string]*ir.Definition),
		metaobjects: make(map[ir.MetaobjectHandle]*ir.Metaobject),
		products:    make(map[string]string),
		collections: make(map[string]string),
		files:       make(map[string]string),
		failures:    make(map[string]error),
	}
}

func (f *FakePlatform) nextID(kind string) string {
	f.seq++
	return fmt.Sprintf("gid://%s/%s/%d", f.name, kind, f.seq)
}

// AddDefinition stores def as-is, assigning an ID when empty, and returns
// the stored copy. Validations are not checked; use it to seed a source.
func (f *FakePlatform) AddDefinition(def ir.Definition) ir.Definition {
	f.mu.Lock()
	defer f.mu.Unlock()
	if def.ID == "" {
		def.ID = f.nextID("MetaobjectDefinition")
	}
	stored := def
	stored.FieldDefinitions = slices.Clone(def.FieldDefinitions)
	f.definitions[def.Type] = &stored
	return stored
}

// AddMetaobject stores m, assigning an ID when empty.
func (f *FakePlatform) AddMetaobject(m ir.Metaobject) ir.Metaobject {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = f.nextID("Metaobject")
	}
	stored := m
	stored.Fields = slices.Clone(m.Fields)
	f.metaobjects[ir.MetaobjectHandle{Handle: m.Handle, Type: m.Type}] = &stored
	if def, ok := f.definitions[m.Type]; ok {
		def.MetaobjectsCount++
	}
	return stored
}

// AddProduct registers a product.
func (f *FakePlatform) AddProduct(id, handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id] = handle
}

// AddCollection registers a collection.
func (f *FakePlatform) AddCollection(id, handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[id] = handle
}

// AddFile registers a media file with its alt text.
func (f *FakePlatform) AddFile(id, alt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id] = alt
}

// FailOn makes every later call of op return err. op is the method name,
// e.g. "CreateDefinition" or "KeyByID".
func (f *FakePlatform) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Calls returns the operations issued so far, as "Op subject".
func (f *FakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Definition returns a copy of the stored definition of typ.
func (f *FakePlatform) Definition(typ string) (ir.Definition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.definitions[typ]
	if !ok {
		return ir.Definition{}, false
	}
	out := *def
	out.FieldDefinitions = slices.Clone(def.FieldDefinitions)
	return out, true
}

// Metaobject returns a copy of the stored instance.
func (f *FakePlatform) Metaobject(typ, handle string) (ir.Metaobject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.metaobjects[ir.MetaobjectHandle{Handle: handle, Type: typ}]
	if !ok {
		return ir.Metaobject{}, false
	}
	out := *m
	out.Fields = slices.Clone(m.Fields)
	return out, true
}

// FieldKeys returns the field keys of typ in stored order.
func (f *FakePlatform) FieldKeys(typ string) []string {
	def, ok := f.Definition(typ)
	if !ok {
		return nil
	}
	keys := make([]string, len(def.FieldDefinitions))
	for i, fd := range def.FieldDefinitions {
		keys[i] = fd.Key
	}
	return keys
}

func (f *FakePlatform) record(op, subject string) error {
	f.calls = append(f.calls, op+" "+subject)
	return f.failures[op]
}

func (f *FakePlatform) definitionByID(id string) *ir.Definition {
	for _, def := range f.definitions {
		if def.ID == id {
			return def
		}
	}
	return nil
}

// KeyByID implements resolve.Directory.
func (f *FakePlatform) KeyByID(ctx context.Context, kind ir.RefKind, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("KeyByID", string(kind)+":"+id); err != nil {
		return "", err
	}
	switch kind {
	case ir.RefDefinition:
		if def := f.definitionByID(id); def != nil {
			return def.Type, nil
		}
		return "", nil
	case ir.RefProduct:
		return f.products[id], nil
	case ir.RefCollection:
		return f.collections[id], nil
	case ir.RefMedia:
		return f.files[id], nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
}

// IDByKey implements resolve.Directory.
func (f *FakePlatform) IDByKey(ctx context.Context, kind ir.RefKind, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("IDByKey", string(kind)+":"+key); err != nil {
		return "", err
	}
	switch kind {
	case ir.RefDefinition:
		if def, ok := f.definitions[key]; ok {
			return def.ID, nil
		}
		return "", nil
	case ir.RefProduct:
		return findKey(f.products, key), nil
	case ir.RefCollection:
		return findKey(f.collections, key), nil
	case ir.RefMedia:
		return findKey(f.files, key), nil
	default:
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
}

func findKey(m map[string]string, value string) string {
	ids := make([]string, 0, len(m))
	for id, v := range m {
		if v == value {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

// ListDefinitions returns summaries ordered by type.
func (f *FakePlatform) ListDefinitions(ctx context.Context) ([]ir.DefinitionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListDefinitions", ""); err != nil {
		return nil, err
	}
	out := make([]ir.DefinitionSummary, 0, len(f.definitions))
	for _, def := range f.definitions {
		out = append(out, ir.DefinitionSummary{ID: def.ID, Name: def.Name, Type: def.Type})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

// DefinitionByType returns a copy of the definition or nil.
func (f *FakePlatform) DefinitionByType(ctx context.Context, typ string) (*ir.Definition, error) {
	f.mu.Lock()
	if err := f.record("DefinitionByType", typ); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	def, ok := f.Definition(typ)
	if !ok {
		return nil, nil
	}
	return &def, nil
}

// Metaobjects returns instances of typ ordered by handle.
func (f *FakePlatform) Metaobjects(ctx context.Context, typ string, pageSize, limit int) ([]ir.Metaobject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Metaobjects", typ); err != nil {
		return nil, err
	}
	var out []ir.Metaobject
	for h, m := range f.metaobjects {
		if h.Type == typ {
			cp := *m
			cp.Fields = slices.Clone(m.Fields)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateDefinition enforces type uniqueness and reference validity.
func (f *FakePlatform) CreateDefinition(ctx context.Context, input ir.DefinitionCreateInput) (*ir.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateDefinition", input.Type); err != nil {
		return nil, err
	}
	if _, ok := f.definitions[input.Type]; ok {
		return nil, &shopify.UserErrors{
			Operation: "create definition",
			Subject:   input.Type,
			Errors: []shopify.UserError{{
				Field: []string{"definition", "type"}, Message: "Type has already been taken", Code: "TAKEN",
			}},
		}
	}

	def := &ir.Definition{Name: input.Name, Type: input.Type, Description: input.Description, Capabilities: input.Capabilities}
	for _, in := range input.FieldDefinitions {
		fd, err := f.fieldFromInput("create definition", input.Type, in)
		if err != nil {
			return nil, err
		}
		def.FieldDefinitions = append(def.FieldDefinitions, fd)
	}
	def.ID = f.nextID("MetaobjectDefinition")
	f.definitions[def.Type] = def

	out := *def
	out.FieldDefinitions = slices.Clone(def.FieldDefinitions)
	return &out, nil
}

// UpdateDefinition appends created fields to the definition with id.
func (f *FakePlatform) UpdateDefinition(ctx context.Context, id string, input ir.DefinitionUpdateInput) (*ir.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateDefinition", id); err != nil {
		return nil, err
	}
	def := f.definitionByID(id)
	if def == nil {
		return nil, &shopify.UserErrors{
			Operation: "update definition",
			Subject:   id,
			Errors:    []shopify.UserError{{Field: []string{"id"}, Message: "Record not found", Code: "NOT_FOUND"}},
		}
	}

	added := make([]ir.FieldDefinition, 0, len(input.FieldDefinitions))
	for _, op := range input.FieldDefinitions {
		if op.Create == nil {
			continue
		}
		for _, existing := range def.FieldDefinitions {
			if existing.Key == op.Create.Key {
				return nil, &shopify.UserErrors{
					Operation: "update definition",
					Subject:   id,
					Errors:    []shopify.UserError{{Field: []string{"definition", "fieldDefinitions", op.Create.Key}, Message: "Key is in use", Code: "TAKEN"}},
				}
			}
		}
		fd, err := f.fieldFromInput("update definition", id, *op.Create)
		if err != nil {
			return nil, err
		}
		added = append(added, fd)
	}
	def.FieldDefinitions = append(def.FieldDefinitions, added...)

	out := *def
	out.FieldDefinitions = slices.Clone(def.FieldDefinitions)
	return &out, nil
}

func (f *FakePlatform) fieldFromInput(op, subject string, in ir.FieldDefinitionInput) (ir.FieldDefinition, error) {
	fd := ir.FieldDefinition{
		Key:         in.Key,
		Name:        in.Name,
		Description: in.Description,
		Required:    in.Required,
		Type:        ir.FieldType{Name: in.Type},
	}
	for _, v := range in.Validations {
		if v.Name == ir.ValidationDefinitionID && f.definitionByID(v.Value) == nil {
			return ir.FieldDefinition{}, &shopify.UserErrors{
				Operation: op,
				Subject:   subject,
				Errors: []shopify.UserError{{
					Field:   []string{"definition", "fieldDefinitions", in.Key, "validations"},
					Message: "Validations metaobject definition does not exist",
					Code:    "INVALID",
				}},
			}
		}
		fd.Validations = append(fd.Validations, ir.Validation{Name: v.Name, Value: v.Value})
	}
	return fd, nil
}

// UpsertMetaobject creates or replaces the fields of the instance. It rejects
// capabilities the definition does not enable.
func (f *FakePlatform) UpsertMetaobject(ctx context.Context, handle ir.MetaobjectHandle, input ir.MetaobjectUpsertInput) (*ir.Metaobject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject := handle.Type + "/" + handle.Handle
	if err := f.record("UpsertMetaobject", subject); err != nil {
		return nil, err
	}
	def, ok := f.definitions[handle.Type]
	if !ok {
		return nil, &shopify.UserErrors{
			Operation: "upsert metaobject",
			Subject:   subject,
			Errors:    []shopify.UserError{{Field: []string{"handle", "type"}, Message: "No metaobject definition exists for type", Code: "UNDEFINED_OBJECT_TYPE"}},
		}
	}

	if input.Capabilities != nil && input.Capabilities.Publishable != nil && !def.Capabilities.PublishableEnabled() {
		return nil, &shopify.UserErrors{
			Operation: "upsert metaobject",
			Subject:   subject,
			Errors:    []shopify.UserError{{Field: []string{"metaobject", "capabilities", "publishable"}, Message: "Capability is not enabled on the definition", Code: "CAPABILITY_NOT_ENABLED"}},
		}
	}

	fieldTypes := make(map[string]string, len(def.FieldDefinitions))
	for _, fd := range def.FieldDefinitions {
		fieldTypes[fd.Key] = fd.Type.Name
	}
	fields := make([]ir.MetaobjectField, 0, len(input.Fields))
	for _, in := range input.Fields {
		typ, ok := fieldTypes[in.Key]
		if !ok {
			return nil, &shopify.UserErrors{
				Operation: "upsert metaobject",
				Subject:   subject,
				Errors:    []shopify.UserError{{Field: []string{"metaobject", "fields", in.Key}, Message: "Field definition does not exist", Code: "UNDEFINED_OBJECT_FIELD"}},
			}
		}
		fields = append(fields, ir.MetaobjectField{Key: in.Key, Value: ir.StringPtr(in.Value), Type: typ})
	}

	m, exists := f.metaobjects[handle]
	if !exists {
		m = &ir.Metaobject{ID: f.nextID("Metaobject"), Handle: handle.Handle, Type: handle.Type}
		f.metaobjects[handle] = m
		def.MetaobjectsCount++
	}
	m.Fields = fields
	m.Capabilities = input.Capabilities

	out := *m
	out.Fields = slices.Clone(m.Fields)
	return &out, nil
}
