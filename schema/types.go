package schema

import (
	"github.com/anirudhraja/protokit/wire"
)

// FieldNumber is a field's tag number.
type FieldNumber = wire.FieldNumber

// Field numbers the protobuf runtime keeps for itself.
const (
	FirstReservedNumber FieldNumber = 19000
	LastReservedNumber  FieldNumber = 19999
)

// Label represents field labels
type Label int8

const (
	LabelOptional Label = iota + 1
	LabelRequired
	LabelRepeated
)

func (l Label) String() string {
	switch l {
	case LabelOptional:
		return "optional"
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	default:
		return "invalid"
	}
}

// ParseLabel maps a schema keyword onto a Label.
func ParseLabel(s string) (Label, bool) {
	switch s {
	case "optional":
		return LabelOptional, true
	case "required":
		return LabelRequired, true
	case "repeated":
		return LabelRepeated, true
	}
	return 0, false
}

// Type represents the declared type of a field
type Type int8

const (
	TypeInvalid Type = iota
	TypeDouble
	TypeFloat
	TypeInt64
	TypeUint64
	TypeInt32
	TypeFixed64
	TypeFixed32
	TypeBool
	TypeString
	TypeBytes
	TypeUint32
	TypeSfixed32
	TypeSfixed64
	TypeSint32
	TypeSint64
	TypeEnum
	TypeMessage
)

var typeNames = map[Type]string{
	TypeDouble:   "double",
	TypeFloat:    "float",
	TypeInt64:    "int64",
	TypeUint64:   "uint64",
	TypeInt32:    "int32",
	TypeFixed64:  "fixed64",
	TypeFixed32:  "fixed32",
	TypeBool:     "bool",
	TypeString:   "string",
	TypeBytes:    "bytes",
	TypeUint32:   "uint32",
	TypeSfixed32: "sfixed32",
	TypeSfixed64: "sfixed64",
	TypeSint32:   "sint32",
	TypeSint64:   "sint64",
	TypeEnum:     "enum",
	TypeMessage:  "message",
}

// scalarKeywords maps schema type keywords to scalar types.
var scalarKeywords = map[string]Type{
	"double":   TypeDouble,
	"float":    TypeFloat,
	"int64":    TypeInt64,
	"uint64":   TypeUint64,
	"int32":    TypeInt32,
	"fixed64":  TypeFixed64,
	"fixed32":  TypeFixed32,
	"bool":     TypeBool,
	"string":   TypeString,
	"bytes":    TypeBytes,
	"uint32":   TypeUint32,
	"sfixed32": TypeSfixed32,
	"sfixed64": TypeSfixed64,
	"sint32":   TypeSint32,
	"sint64":   TypeSint64,
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "invalid"
}

// ParseScalarType maps a scalar type keyword onto a Type. Names of message and
// enum types are not keywords and return false.
func ParseScalarType(s string) (Type, bool) {
	t, ok := scalarKeywords[s]
	return t, ok
}

// IsScalar reports whether t is one of the fifteen scalar types.
func (t Type) IsScalar() bool {
	return t >= TypeDouble && t <= TypeSint64
}

// IsInteger reports whether values of t are integers on the Go side.
func (t Type) IsInteger() bool {
	switch t {
	case TypeInt32, TypeInt64, TypeUint32, TypeUint64, TypeSint32, TypeSint64,
		TypeFixed32, TypeFixed64, TypeSfixed32, TypeSfixed64:
		return true
	}
	return false
}

// IsFloat reports whether t is float or double.
func (t Type) IsFloat() bool {
	return t == TypeFloat || t == TypeDouble
}

var packedEligible = map[Type]struct{}{
	TypeDouble:   {},
	TypeFloat:    {},
	TypeInt64:    {},
	TypeUint64:   {},
	TypeInt32:    {},
	TypeFixed64:  {},
	TypeFixed32:  {},
	TypeBool:     {},
	TypeUint32:   {},
	TypeSfixed32: {},
	TypeSfixed64: {},
	TypeSint32:   {},
	TypeSint64:   {},
	TypeEnum:     {},
}

// IsPackable reports whether repeated fields of t may use packed encoding.
func (t Type) IsPackable() bool {
	_, ok := packedEligible[t]
	return ok
}

// WireType returns the wire type a single value of t is encoded with.
func (t Type) WireType() wire.WireType {
	switch t {
	case TypeString, TypeBytes, TypeMessage:
		return wire.WireBytes
	case TypeFloat, TypeFixed32, TypeSfixed32:
		return wire.WireFixed32
	case TypeDouble, TypeFixed64, TypeSfixed64:
		return wire.WireFixed64
	default:
		return wire.WireVarint
	}
}
