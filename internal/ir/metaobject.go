package ir

import "strings"

// Field type names of instance fields whose values are store-scoped IDs.
const (
	TypeProductReference    = "product_reference"
	TypeCollectionReference = "collection_reference"
	TypeMediaReference      = "media_reference"
	TypeFileReference       = "file_reference"

	listPrefix = "list."
)

// Metaobject is an instance of a Definition. Handle is unique within Type
// and is the join key across stores.
type Metaobject struct {
	ID           string                  `json:"id,omitempty"`
	Handle       string                  `json:"handle"`
	Type         string                  `json:"type"`
	DisplayName  string                  `json:"displayName,omitempty"`
	Capabilities *MetaobjectCapabilities `json:"capabilities,omitempty"`
	Fields       []MetaobjectField       `json:"fields"`
}

// MetaobjectField is one key/value pair of an instance. A nil Value means
// the field is unset in the source.
type MetaobjectField struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
	Type  string  `json:"type,omitempty"`
}

// IsList reports whether the field's value is a JSON array of values.
func (f MetaobjectField) IsList() bool {
	return strings.HasPrefix(f.Type, listPrefix)
}

// BaseType returns the field type without a list prefix.
func (f MetaobjectField) BaseType() string {
	return strings.TrimPrefix(f.Type, listPrefix)
}

// MetaobjectCapabilities mirrors the capabilities block of an instance.
type MetaobjectCapabilities struct {
	Publishable *PublishableCapability `json:"publishable,omitempty"`
}

// PublishableCapability carries the publish status of an instance.
type PublishableCapability struct {
	Status string `json:"status"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
