package ir

// DefinitionCreateInput is the payload of the definition create mutation.
// It never carries the source ID or instance count.
type DefinitionCreateInput struct {
	Name             string                  `json:"name"`
	Type             string                  `json:"type"`
	Description      *string                 `json:"description,omitempty"`
	Capabilities     *DefinitionCapabilities `json:"capabilities,omitempty"`
	FieldDefinitions []FieldDefinitionInput  `json:"fieldDefinitions"`
}

// FieldDefinitionInput is a field definition in the shape the create and
// update mutations expect: the type flattened to its name and every
// validation value as text.
//
// A nil or empty Validations slice is omitted from the JSON. The destination
// treats an empty array differently from an absent key.
type FieldDefinitionInput struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description *string           `json:"description,omitempty"`
	Required    bool              `json:"required"`
	Type        string            `json:"type"`
	Validations []ValidationInput `json:"validations,omitempty"`
}

// ValidationInput is a validation with its value serialized to text.
type ValidationInput struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DefinitionUpdateInput is the payload of the definition update mutation.
type DefinitionUpdateInput struct {
	FieldDefinitions []FieldDefinitionOperation `json:"fieldDefinitions"`
	ResetFieldOrder  bool                       `json:"resetFieldOrder,omitempty"`
}

// FieldDefinitionOperation wraps one field change of an update.
type FieldDefinitionOperation struct {
	Create *FieldDefinitionInput `json:"create,omitempty"`
}

// MetaobjectHandle identifies an instance across stores.
type MetaobjectHandle struct {
	Handle string `json:"handle"`
	Type   string `json:"type"`
}

// MetaobjectUpsertInput is the payload of the instance upsert mutation.
type MetaobjectUpsertInput struct {
	Fields       []MetaobjectFieldInput  `json:"fields"`
	Capabilities *MetaobjectCapabilities `json:"capabilities,omitempty"`
}

// MetaobjectFieldInput is a non-null field value to write.
type MetaobjectFieldInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
