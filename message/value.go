package message

import (
	"bytes"
	"fmt"
	"math"

	"github.com/anirudhraja/protokit/schema"
)

// Kind is the Go-side representation a Value holds.
type Kind int8

const (
	InvalidKind Kind = iota
	Int32Kind
	Int64Kind
	Uint32Kind
	Uint64Kind
	Float32Kind
	Float64Kind
	BoolKind
	StringKind
	BytesKind
	EnumKind
	MessageKind
)

var kindNames = [...]string{
	InvalidKind: "invalid",
	Int32Kind:   "int32",
	Int64Kind:   "int64",
	Uint32Kind:  "uint32",
	Uint64Kind:  "uint64",
	Float32Kind: "float32",
	Float64Kind: "float64",
	BoolKind:    "bool",
	StringKind:  "string",
	BytesKind:   "bytes",
	EnumKind:    "enum",
	MessageKind: "message",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// kindOf maps a declared field type onto the Value kind it is stored as.
func kindOf(t schema.Type) Kind {
	switch t {
	case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
		return Int32Kind
	case schema.TypeInt64, schema.TypeSint64, schema.TypeSfixed64:
		return Int64Kind
	case schema.TypeUint32, schema.TypeFixed32:
		return Uint32Kind
	case schema.TypeUint64, schema.TypeFixed64:
		return Uint64Kind
	case schema.TypeFloat:
		return Float32Kind
	case schema.TypeDouble:
		return Float64Kind
	case schema.TypeBool:
		return BoolKind
	case schema.TypeString:
		return StringKind
	case schema.TypeBytes:
		return BytesKind
	case schema.TypeEnum:
		return EnumKind
	case schema.TypeMessage:
		return MessageKind
	default:
		return InvalidKind
	}
}

// Value is a single field value: one case per scalar kind, enum and message.
// Numeric kinds share num, holding the two's complement bits of integers and
// the IEEE 754 bits of floats.
type Value struct {
	kind Kind
	num  uint64
	str  string
	raw  []byte
	msg  *Message
}

func ValueOfInt32(v int32) Value     { return Value{kind: Int32Kind, num: uint64(int64(v))} }
func ValueOfInt64(v int64) Value     { return Value{kind: Int64Kind, num: uint64(v)} }
func ValueOfUint32(v uint32) Value   { return Value{kind: Uint32Kind, num: uint64(v)} }
func ValueOfUint64(v uint64) Value   { return Value{kind: Uint64Kind, num: v} }
func ValueOfFloat32(v float32) Value { return Value{kind: Float32Kind, num: uint64(math.Float32bits(v))} }
func ValueOfFloat64(v float64) Value { return Value{kind: Float64Kind, num: math.Float64bits(v)} }
func ValueOfString(v string) Value   { return Value{kind: StringKind, str: v} }
func ValueOfBytes(v []byte) Value    { return Value{kind: BytesKind, raw: v} }
func ValueOfEnum(v int32) Value      { return Value{kind: EnumKind, num: uint64(int64(v))} }
func ValueOfMessage(m *Message) Value {
	return Value{kind: MessageKind, msg: m}
}

func ValueOfBool(v bool) Value {
	if v {
		return Value{kind: BoolKind, num: 1}
	}
	return Value{kind: BoolKind}
}

// Kind reports which case the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds anything.
func (v Value) IsValid() bool { return v.kind != InvalidKind }

// Int returns the value of an int32, int64 or enum value.
func (v Value) Int() int64 {
	switch v.kind {
	case Int32Kind, Int64Kind, EnumKind:
		return int64(v.num)
	}
	panic(fmt.Sprintf("message: Int of %s value", v.kind))
}

// Uint returns the value of a uint32 or uint64 value.
func (v Value) Uint() uint64 {
	switch v.kind {
	case Uint32Kind, Uint64Kind:
		return v.num
	}
	panic(fmt.Sprintf("message: Uint of %s value", v.kind))
}

// Float returns the value of a float32 or float64 value.
func (v Value) Float() float64 {
	switch v.kind {
	case Float32Kind:
		return float64(math.Float32frombits(uint32(v.num)))
	case Float64Kind:
		return math.Float64frombits(v.num)
	}
	panic(fmt.Sprintf("message: Float of %s value", v.kind))
}

// Bool returns the value of a bool value.
func (v Value) Bool() bool {
	if v.kind != BoolKind {
		panic(fmt.Sprintf("message: Bool of %s value", v.kind))
	}
	return v.num != 0
}

// String returns the string of a string value and a formatted rendering of
// any other kind.
func (v Value) String() string {
	if v.kind == StringKind {
		return v.str
	}
	return fmt.Sprint(v.Interface())
}

// Bytes returns the contents of a bytes value. The slice is shared.
func (v Value) Bytes() []byte {
	if v.kind != BytesKind {
		panic(fmt.Sprintf("message: Bytes of %s value", v.kind))
	}
	return v.raw
}

// Enum returns the number of an enum value.
func (v Value) Enum() int32 {
	if v.kind != EnumKind {
		panic(fmt.Sprintf("message: Enum of %s value", v.kind))
	}
	return int32(v.num)
}

// Message returns the message of a message value.
func (v Value) Message() *Message {
	if v.kind != MessageKind {
		panic(fmt.Sprintf("message: Message of %s value", v.kind))
	}
	return v.msg
}

// Interface returns the value as its natural Go type: int32, int64, uint32,
// uint64, float32, float64, bool, string, []byte, int32 for enums and
// *Message for messages.
func (v Value) Interface() any {
	switch v.kind {
	case Int32Kind, EnumKind:
		return int32(v.num)
	case Int64Kind:
		return int64(v.num)
	case Uint32Kind:
		return uint32(v.num)
	case Uint64Kind:
		return v.num
	case Float32Kind:
		return math.Float32frombits(uint32(v.num))
	case Float64Kind:
		return math.Float64frombits(v.num)
	case BoolKind:
		return v.num != 0
	case StringKind:
		return v.str
	case BytesKind:
		return v.raw
	case MessageKind:
		return v.msg
	default:
		return nil
	}
}

// Equal reports whether two values are of the same kind and hold equal data.
// Floats compare by bit pattern, so a NaN equals itself and its decoded copy
// while 0 and -0 differ; messages compare structurally.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case StringKind:
		return v.str == o.str
	case BytesKind:
		return bytes.Equal(v.raw, o.raw)
	case MessageKind:
		return v.msg.Equal(o.msg)
	default:
		return v.num == o.num
	}
}
