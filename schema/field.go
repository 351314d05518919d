package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/anirudhraja/protokit/protoerr"
)

// FieldDescriptor is the immutable metadata of one field. It is created by
// MessageDescriptor.DefineField and must not be modified afterwards.
type FieldDescriptor struct {
	containing *MessageDescriptor
	index      int

	number FieldNumber
	name   string
	typ    Type
	label  Label
	packed bool

	// typeName is the fully qualified name of the referenced message or enum.
	typeName string
	refFile  *File
	ref      int

	defaultLit string
	hasDefault bool
	def        any
}

// FieldOption configures a field at definition time.
type FieldOption func(*FieldDescriptor)

// WithTypeName names the referenced message or enum type by its fully
// qualified name. Required for TypeMessage and TypeEnum fields.
func WithTypeName(fullName string) FieldOption {
	return func(f *FieldDescriptor) {
		f.typeName = strings.TrimPrefix(fullName, ".")
	}
}

// WithDefault sets the default literal of an optional scalar or enum field,
// written as it would appear in a schema (`"abc"`, `1.5`, `true`, `VALUE`).
// The literal is checked against the type when the file is linked.
func WithDefault(literal string) FieldOption {
	return func(f *FieldDescriptor) {
		f.defaultLit = literal
		f.hasDefault = true
	}
}

// WithPacked requests packed encoding for a repeated numeric field.
func WithPacked() FieldOption {
	return func(f *FieldDescriptor) {
		f.packed = true
	}
}

func (f *FieldDescriptor) Number() FieldNumber { return f.number }
func (f *FieldDescriptor) Name() string        { return f.name }
func (f *FieldDescriptor) Type() Type          { return f.typ }
func (f *FieldDescriptor) Label() Label        { return f.label }
func (f *FieldDescriptor) TypeName() string    { return f.typeName }
func (f *FieldDescriptor) Packed() bool        { return f.packed }

// Index is the field's position in declaration order.
func (f *FieldDescriptor) Index() int { return f.index }

// Containing returns the message the field belongs to.
func (f *FieldDescriptor) Containing() *MessageDescriptor { return f.containing }

func (f *FieldDescriptor) IsRepeated() bool { return f.label == LabelRepeated }
func (f *FieldDescriptor) IsRequired() bool { return f.label == LabelRequired }

// FullName returns the containing message's full name plus the field name.
func (f *FieldDescriptor) FullName() string {
	return f.containing.FullName() + "." + f.name
}

// Message returns the resolved message type, or nil for other types and
// before linking.
func (f *FieldDescriptor) Message() *MessageDescriptor {
	if f.typ != TypeMessage || f.refFile == nil {
		return nil
	}
	return f.refFile.messages[f.ref]
}

// Enum returns the resolved enum type, or nil for other types and before
// linking.
func (f *FieldDescriptor) Enum() *EnumDescriptor {
	if f.typ != TypeEnum || f.refFile == nil {
		return nil
	}
	return f.refFile.enums[f.ref]
}

// HasDefault reports whether the schema declared an explicit default.
func (f *FieldDescriptor) HasDefault() bool { return f.hasDefault }

// Default returns the value an unset optional scalar or enum field reads as:
// the explicit default, otherwise the type's zero value (for enums, the first
// declared value). Required, repeated and message fields have no default.
func (f *FieldDescriptor) Default() (any, bool) {
	if f.label != LabelOptional || f.typ == TypeMessage {
		return nil, false
	}
	if f.hasDefault {
		return cloneDefault(f.def), true
	}
	return f.ZeroValue(), true
}

// ZeroValue returns the Go zero value for a single element of the field's
// type: int32(0), "", []byte{}, the first enum number, and so on. Message
// fields return nil.
func (f *FieldDescriptor) ZeroValue() any {
	switch f.typ {
	case TypeInt32, TypeSint32, TypeSfixed32:
		return int32(0)
	case TypeInt64, TypeSint64, TypeSfixed64:
		return int64(0)
	case TypeUint32, TypeFixed32:
		return uint32(0)
	case TypeUint64, TypeFixed64:
		return uint64(0)
	case TypeFloat:
		return float32(0)
	case TypeDouble:
		return float64(0)
	case TypeBool:
		return false
	case TypeString:
		return ""
	case TypeBytes:
		return []byte{}
	case TypeEnum:
		if ed := f.Enum(); ed != nil && len(ed.values) > 0 {
			return ed.values[0].Number
		}
		return int32(0)
	default:
		return nil
	}
}

func cloneDefault(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte{}, b...)
	}
	return v
}

// resolveDefault parses the default literal against the resolved type.
func (f *FieldDescriptor) resolveDefault() error {
	if !f.hasDefault {
		return nil
	}

	v, err := parseDefault(f, f.defaultLit)
	if err != nil {
		return protoerr.WithField(err, f.name)
	}
	f.def = v
	return nil
}

func parseDefault(f *FieldDescriptor, lit string) (any, error) {
	lit = strings.TrimSpace(lit)

	switch f.typ {
	case TypeInt32, TypeSint32, TypeSfixed32:
		v, err := strconv.ParseInt(lit, 0, 32)
		if err != nil {
			return nil, protoerr.Structuralf("invalid %s default %q", f.typ, lit)
		}
		return int32(v), nil
	case TypeInt64, TypeSint64, TypeSfixed64:
		v, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return nil, protoerr.Structuralf("invalid %s default %q", f.typ, lit)
		}
		return v, nil
	case TypeUint32, TypeFixed32:
		v, err := strconv.ParseUint(lit, 0, 32)
		if err != nil {
			return nil, protoerr.Structuralf("invalid %s default %q", f.typ, lit)
		}
		return uint32(v), nil
	case TypeUint64, TypeFixed64:
		v, err := strconv.ParseUint(lit, 0, 64)
		if err != nil {
			return nil, protoerr.Structuralf("invalid %s default %q", f.typ, lit)
		}
		return v, nil
	case TypeFloat, TypeDouble:
		v, err := parseFloatLiteral(lit)
		if err != nil {
			return nil, protoerr.Structuralf("invalid %s default %q", f.typ, lit)
		}
		if f.typ == TypeFloat {
			return float32(v), nil
		}
		return v, nil
	case TypeBool:
		switch lit {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, protoerr.Structuralf("invalid bool default %q", lit)
	case TypeString:
		s, err := UnquoteLiteral(lit)
		if err != nil {
			return nil, protoerr.Structuralf("invalid string default %q", lit)
		}
		return s, nil
	case TypeBytes:
		s, err := UnquoteLiteral(lit)
		if err != nil {
			return nil, protoerr.Structuralf("invalid bytes default %q", lit)
		}
		return []byte(s), nil
	case TypeEnum:
		ed := f.Enum()
		if ed == nil {
			return nil, protoerr.Structuralf("enum default %q on unresolved type %s", lit, f.typeName)
		}
		v, ok := ed.ValueByName(lit)
		if !ok {
			return nil, protoerr.Structuralf("default %q is not a value of enum %s", lit, ed.FullName())
		}
		return v.Number, nil
	default:
		return nil, protoerr.Structuralf("fields of type %s cannot have a default", f.typ)
	}
}

func parseFloatLiteral(lit string) (float64, error) {
	switch strings.ToLower(lit) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(lit, 64)
}

// UnquoteLiteral removes the quotes of a single- or double-quoted schema
// string literal and resolves its escapes. Unquoted input is returned as is.
func UnquoteLiteral(lit string) (string, error) {
	if lit == "" || (lit[0] != '"' && lit[0] != '\'') {
		return lit, nil
	}
	if len(lit) >= 2 && lit[0] == '\'' && lit[len(lit)-1] == '\'' {
		inner := lit[1 : len(lit)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		lit = `"` + inner + `"`
	}
	return strconv.Unquote(lit)
}
