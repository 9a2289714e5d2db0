package odata

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the EDM kind of a type reference.
type Kind uint8

const (
	KindNone Kind = iota // Untyped (null literals, open properties)
	KindBoolean
	KindByte
	KindInt16
	KindInt32
	KindInt64
	KindSingle
	KindDouble
	KindString
	KindGuid
	KindDateTimeOffset
	KindEntity
)

var kindNames = [...]string{
	KindNone:           "Edm.Untyped",
	KindBoolean:        "Edm.Boolean",
	KindByte:           "Edm.Byte",
	KindInt16:          "Edm.Int16",
	KindInt32:          "Edm.Int32",
	KindInt64:          "Edm.Int64",
	KindSingle:         "Edm.Single",
	KindDouble:         "Edm.Double",
	KindString:         "Edm.String",
	KindGuid:           "Edm.Guid",
	KindDateTimeOffset: "Edm.DateTimeOffset",
	KindEntity:         "Edm.Entity",
}

// String returns the EDM name of the kind
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsIntegral reports whether the kind is an integer kind
func (k Kind) IsIntegral() bool {
	return k == KindByte || k == KindInt16 || k == KindInt32 || k == KindInt64
}

// IsNumeric reports whether the kind is an integer or floating point kind
func (k Kind) IsNumeric() bool {
	return k.IsIntegral() || k == KindSingle || k == KindDouble
}

// TypeRef is a reference to an EDM type. It is a comparable value, so two
// type references are the same type exactly when they are ==.
type TypeRef struct {
	Kind       Kind
	Entity     *EntityType // Set when Kind == KindEntity
	Collection bool
	Nullable   bool
}

// Primitive type references used throughout the model and tests.
var (
	Untyped        = TypeRef{Kind: KindNone, Nullable: true}
	Boolean        = TypeRef{Kind: KindBoolean}
	Byte           = TypeRef{Kind: KindByte}
	Int16          = TypeRef{Kind: KindInt16}
	Int32          = TypeRef{Kind: KindInt32}
	Int64          = TypeRef{Kind: KindInt64}
	Single         = TypeRef{Kind: KindSingle}
	Double         = TypeRef{Kind: KindDouble}
	String         = TypeRef{Kind: KindString}
	Guid           = TypeRef{Kind: KindGuid}
	DateTimeOffset = TypeRef{Kind: KindDateTimeOffset}
)

// EntityRef returns a type reference to a single entity of type t
func EntityRef(t *EntityType) TypeRef {
	return TypeRef{Kind: KindEntity, Entity: t, Nullable: true}
}

// CollectionOf returns the collection type of t
func CollectionOf(t TypeRef) TypeRef {
	t.Collection = true
	return t
}

// AsNullable returns t marked nullable
func (t TypeRef) AsNullable() TypeRef {
	t.Nullable = true
	return t
}

// ElementType returns the element type of a collection type reference
func (t TypeRef) ElementType() TypeRef {
	t.Collection = false
	return t
}

// IsZero reports whether t is the zero type reference
func (t TypeRef) IsZero() bool {
	return t == TypeRef{}
}

// String returns the EDM spelling of the type
func (t TypeRef) String() string {
	name := t.Kind.String()
	if t.Kind == KindEntity && t.Entity != nil {
		name = t.Entity.QualifiedName()
	}
	if t.Collection {
		return "Collection(" + name + ")"
	}
	return name
}

// KindOf returns the EDM kind that a runtime value naturally maps to.
// Plain Go ints map to Int32 when they fit, Int64 otherwise.
func KindOf(v interface{}) Kind {
	switch val := v.(type) {
	case nil:
		return KindNone
	case bool:
		return KindBoolean
	case uint8:
		return KindByte
	case int8, int16:
		return KindInt16
	case int32:
		return KindInt32
	case int:
		if val >= -1<<31 && val <= 1<<31-1 {
			return KindInt32
		}
		return KindInt64
	case int64, uint16, uint32:
		return KindInt64
	case float32:
		return KindSingle
	case float64:
		return KindDouble
	case string:
		return KindString
	case uuid.UUID:
		return KindGuid
	case time.Time:
		return KindDateTimeOffset
	case Entity, []Entity:
		return KindEntity
	default:
		return KindNone
	}
}

// TypeOf returns the type reference a literal value would be declared with
func TypeOf(v interface{}) TypeRef {
	if v == nil {
		return Untyped
	}
	return TypeRef{Kind: KindOf(v)}
}
