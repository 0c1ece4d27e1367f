package ir

import (
	"encoding/json"
	"fmt"
)

// Field type names that carry a schema-level reference to another definition.
const (
	TypeMetaobjectReference     = "metaobject_reference"
	TypeListMetaobjectReference = "list.metaobject_reference"
)

// ValidationDefinitionID is the validation that encodes a store-scoped
// reference to another metaobject definition's ID.
const ValidationDefinitionID = "metaobject_definition_id"

// Definition is a metaobject definition as read from a store.
//
// ID is scoped to the store it was read from and must never be sent to
// another store. Type is the portable identifier.
type Definition struct {
	ID               string                  `json:"id,omitempty"`
	Name             string                  `json:"name"`
	Type             string                  `json:"type"`
	Description      *string                 `json:"description,omitempty"`
	Capabilities     *DefinitionCapabilities `json:"capabilities,omitempty"`
	FieldDefinitions []FieldDefinition       `json:"fieldDefinitions"`
	MetaobjectsCount int                     `json:"metaobjectsCount,omitempty"`
}

// DefinitionCapabilities are the optional behaviors enabled on a definition.
// Instances may only carry capabilities their definition enables.
type DefinitionCapabilities struct {
	Publishable *CapabilityToggle `json:"publishable,omitempty"`
}

// CapabilityToggle switches one definition capability.
type CapabilityToggle struct {
	Enabled bool `json:"enabled"`
}

// PublishableEnabled reports whether the publishable capability is on.
func (c *DefinitionCapabilities) PublishableEnabled() bool {
	return c != nil && c.Publishable != nil && c.Publishable.Enabled
}

// FieldDefinition belongs to exactly one Definition. Key is unique within
// the parent.
type FieldDefinition struct {
	Key         string       `json:"key"`
	Name        string       `json:"name"`
	Description *string      `json:"description,omitempty"`
	Required    bool         `json:"required"`
	Type        FieldType    `json:"type"`
	Validations []Validation `json:"validations,omitempty"`
}

// IsMetaobjectReference reports whether the field references other metaobjects.
func (f FieldDefinition) IsMetaobjectReference() bool {
	return f.Type.Name == TypeMetaobjectReference || f.Type.Name == TypeListMetaobjectReference
}

// FieldType is the {category, name} pair the API returns for a field.
type FieldType struct {
	Category string `json:"category,omitempty"`
	Name     string `json:"name"`
}

// Validation is a constraint attached to a field definition.
//
// Value holds whatever JSON the source returned: usually a string, but
// objects and arrays occur for structured validations.
type Validation struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// ValueString returns the validation value in the text form the create and
// update mutations expect. Strings pass through; everything else is
// JSON-encoded.
func (v Validation) ValueString() (string, error) {
	switch val := v.Value.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("validation %q: %w", v.Name, err)
		}
		return string(b), nil
	}
}

// DefinitionSummary is one entry of the definitions listing.
type DefinitionSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}
