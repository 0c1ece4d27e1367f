package ir

// RefKind names an entity kind whose store-scoped IDs are translated
// through a portable key.
type RefKind string

const (
	// RefDefinition translates definition ID <-> definition type.
	RefDefinition RefKind = "definition"
	// RefProduct translates product ID <-> product handle.
	RefProduct RefKind = "product"
	// RefCollection translates collection ID <-> collection handle.
	RefCollection RefKind = "collection"
	// RefMedia translates file ID <-> alt text.
	RefMedia RefKind = "media"
)

// KeyName describes the portable key of the kind, for messages.
func (k RefKind) KeyName() string {
	switch k {
	case RefDefinition:
		return "type"
	case RefProduct, RefCollection:
		return "handle"
	case RefMedia:
		return "alt text"
	default:
		return "key"
	}
}

// RefKindForFieldType maps an instance field's base type to the kind of
// entity its value references. Only kinds whose IDs are rewritten across
// stores are reported.
func RefKindForFieldType(baseType string) (RefKind, bool) {
	switch baseType {
	case TypeProductReference:
		return RefProduct, true
	case TypeCollectionReference:
		return RefCollection, true
	case TypeMediaReference, TypeFileReference:
		return RefMedia, true
	default:
		return "", false
	}
}
