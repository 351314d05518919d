package message

import (
	"math"
	"reflect"
	"strconv"

	"golang.org/x/exp/constraints"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

// Set assigns v to the named field after checking it against the declared
// type:
//
//   - integer fields take any Go integer that fits the field's range
//   - float and double fields take Go floats and, widened, Go integers
//   - bool, string fields take only bool, string
//   - bytes fields take []byte or string
//   - enum fields take a defined value number or a value name
//   - message fields take a *Message of the same descriptor
//   - repeated fields take a slice whose every element is acceptable
//
// A Value is accepted for a field of its kind. Setting nil clears the field.
// A message that already contains m, or m itself, is rejected since the
// result could not be encoded. On error the message is left unchanged.
func (m *Message) Set(name string, v any) error {
	fd, err := m.field(name)
	if err != nil {
		return err
	}
	return protoerr.WithField(m.set(fd, v), name)
}

// SetNumber is Set addressing the field by number.
func (m *Message) SetNumber(n schema.FieldNumber, v any) error {
	fd, err := m.fieldByNumber(n)
	if err != nil {
		return err
	}
	return protoerr.WithField(m.set(fd, v), fd.Name())
}

// SetField is Set addressing the field by descriptor.
func (m *Message) SetField(fd *schema.FieldDescriptor, v any) error {
	if err := m.checkOwner(fd); err != nil {
		return err
	}
	return protoerr.WithField(m.set(fd, v), fd.Name())
}

// SetValue assigns a typed value to a singular field. Only the kind is
// checked, plus enum membership and message descriptor identity.
func (m *Message) SetValue(fd *schema.FieldDescriptor, v Value) error {
	if err := m.checkOwner(fd); err != nil {
		return err
	}
	if fd.IsRepeated() {
		return protoerr.WithField(protoerr.Typef("repeated field needs a list"), fd.Name())
	}
	if err := checkValue(fd, v); err != nil {
		return protoerr.WithField(err, fd.Name())
	}
	if err := m.checkCycle(v); err != nil {
		return protoerr.WithField(err, fd.Name())
	}
	m.store(fd, v)
	return nil
}

// Append adds v to the end of the named repeated field.
func (m *Message) Append(name string, v any) error {
	fd, err := m.field(name)
	if err != nil {
		return err
	}
	if !fd.IsRepeated() {
		return protoerr.WithField(protoerr.Typef("field is not repeated"), name)
	}
	val, err := convert(fd, v)
	if err != nil {
		return protoerr.WithField(err, name)
	}
	if err := m.checkCycle(val); err != nil {
		return protoerr.WithField(err, name)
	}
	m.lists[fd.Number()] = append(m.lists[fd.Number()], val)
	return nil
}

func (m *Message) checkOwner(fd *schema.FieldDescriptor) error {
	if fd == nil || fd.Containing() != m.desc {
		return protoerr.Argumentf("field does not belong to message %s", m.desc.FullName())
	}
	return nil
}

// checkCycle rejects message values from which m is reachable.
func (m *Message) checkCycle(vals ...Value) error {
	seen := map[*Message]bool{}
	for _, v := range vals {
		if v.kind == MessageKind && v.msg.reaches(m, seen) {
			return protoerr.Argumentf("%s message cannot contain itself", m.desc.FullName())
		}
	}
	return nil
}

func (m *Message) reaches(target *Message, seen map[*Message]bool) bool {
	if m == target {
		return true
	}
	if seen[m] {
		return false
	}
	seen[m] = true
	for _, v := range m.values {
		if v.kind == MessageKind && v.msg.reaches(target, seen) {
			return true
		}
	}
	for _, list := range m.lists {
		for _, v := range list {
			if v.kind == MessageKind && v.msg.reaches(target, seen) {
				return true
			}
		}
	}
	// lazy children can still be promoted by Mutable
	for _, child := range m.lazy {
		if child.reaches(target, seen) {
			return true
		}
	}
	return false
}

func (m *Message) store(fd *schema.FieldDescriptor, v Value) {
	m.values[fd.Number()] = v
	delete(m.lazy, fd.Number())
}

func (m *Message) set(fd *schema.FieldDescriptor, v any) error {
	if v == nil {
		m.ClearField(fd)
		return nil
	}

	if !fd.IsRepeated() {
		val, err := convert(fd, v)
		if err != nil {
			return err
		}
		if err := m.checkCycle(val); err != nil {
			return err
		}
		m.store(fd, val)
		return nil
	}

	list, err := convertList(fd, v)
	if err != nil {
		return err
	}
	if err := m.checkCycle(list...); err != nil {
		return err
	}
	if len(list) == 0 {
		delete(m.lists, fd.Number())
		return nil
	}
	m.lists[fd.Number()] = list
	return nil
}

// convertList converts every element of a slice. Nothing is returned unless
// all elements convert.
func convertList(fd *schema.FieldDescriptor, v any) ([]Value, error) {
	switch t := v.(type) {
	case []Value:
		out := make([]Value, len(t))
		for i, e := range t {
			if err := checkValue(fd, e); err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case []byte:
		if fd.Type() != schema.TypeBytes {
			break
		}
		// a single []byte is an element, not a list of uint8
		return nil, protoerr.Typef("repeated bytes field needs a list of []byte, got []byte")
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, protoerr.Typef("repeated field needs a slice, got %T", v)
	}

	out := make([]Value, rv.Len())
	for i := range out {
		val, err := convert(fd, rv.Index(i).Interface())
		if err != nil {
			return nil, protoerr.WithField(err, indexName(i))
		}
		out[i] = val
	}
	return out, nil
}

func indexName(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// convert checks a single Go value against fd's element type.
func convert(fd *schema.FieldDescriptor, v any) (Value, error) {
	if val, ok := v.(Value); ok {
		if err := checkValue(fd, val); err != nil {
			return Value{}, err
		}
		return val, nil
	}

	typ := fd.Type()
	switch {
	case typ.IsInteger():
		n, ok := integerOf(v)
		if !ok {
			return Value{}, protoerr.Typef("%s field cannot hold %T", typ, v)
		}
		return n.value(typ)
	case typ.IsFloat():
		f, ok := floatOf(v)
		if !ok {
			return Value{}, protoerr.Typef("%s field cannot hold %T", typ, v)
		}
		if typ == schema.TypeFloat {
			return ValueOfFloat32(float32(f)), nil
		}
		return ValueOfFloat64(f), nil
	}

	switch typ {
	case schema.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return Value{}, protoerr.Typef("bool field cannot hold %T", v)
		}
		return ValueOfBool(b), nil
	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return Value{}, protoerr.Typef("string field cannot hold %T", v)
		}
		return ValueOfString(s), nil
	case schema.TypeBytes:
		switch b := v.(type) {
		case []byte:
			return ValueOfBytes(append([]byte{}, b...)), nil
		case string:
			return ValueOfBytes([]byte(b)), nil
		}
		return Value{}, protoerr.Typef("bytes field cannot hold %T", v)
	case schema.TypeEnum:
		return enumValue(fd, v)
	case schema.TypeMessage:
		child, ok := v.(*Message)
		if !ok || child == nil {
			return Value{}, protoerr.Typef("message field cannot hold %T", v)
		}
		if child.desc != fd.Message() {
			return Value{}, protoerr.Typef("field needs a %s message, got %s", fd.TypeName(), child.desc.FullName())
		}
		return ValueOfMessage(child), nil
	}
	return Value{}, protoerr.Typef("unsupported field type %s", typ)
}

func enumValue(fd *schema.FieldDescriptor, v any) (Value, error) {
	ed := fd.Enum()
	if name, ok := v.(string); ok {
		ev, found := ed.ValueByName(name)
		if !found {
			return Value{}, protoerr.Argumentf("%s is not a value of enum %s", name, ed.FullName())
		}
		return ValueOfEnum(ev.Number), nil
	}

	n, ok := integerOf(v)
	if !ok {
		return Value{}, protoerr.Typef("enum field cannot hold %T", v)
	}
	if n.neg || n.u > math.MaxInt32 || !ed.Has(int32(n.u)) {
		return Value{}, protoerr.Argumentf("%s is not a value of enum %s", n, ed.FullName())
	}
	return ValueOfEnum(int32(n.u)), nil
}

// checkValue validates a typed Value against fd's element type.
func checkValue(fd *schema.FieldDescriptor, v Value) error {
	if want := kindOf(fd.Type()); v.kind != want {
		return protoerr.Typef("%s field cannot hold a %s value", fd.Type(), v.kind)
	}
	switch v.kind {
	case EnumKind:
		if !fd.Enum().Has(v.Enum()) {
			return protoerr.Argumentf("%d is not a value of enum %s", v.Enum(), fd.Enum().FullName())
		}
	case MessageKind:
		if v.msg == nil || v.msg.desc != fd.Message() {
			return protoerr.Typef("field needs a %s message", fd.TypeName())
		}
	}
	return nil
}

// integer is any Go integer: its magnitude and sign.
type integer struct {
	u   uint64 // magnitude for non-negative values, two's complement bits otherwise
	neg bool
}

func fromInteger[T constraints.Integer](v T) integer {
	if v < 0 {
		return integer{u: uint64(int64(v)), neg: true}
	}
	return integer{u: uint64(v)}
}

func (n integer) String() string {
	if n.neg {
		return strconv.FormatInt(int64(n.u), 10)
	}
	return strconv.FormatUint(n.u, 10)
}

func integerOf(v any) (integer, bool) {
	switch t := v.(type) {
	case int:
		return fromInteger(t), true
	case int8:
		return fromInteger(t), true
	case int16:
		return fromInteger(t), true
	case int32:
		return fromInteger(t), true
	case int64:
		return fromInteger(t), true
	case uint:
		return fromInteger(t), true
	case uint8:
		return fromInteger(t), true
	case uint16:
		return fromInteger(t), true
	case uint32:
		return fromInteger(t), true
	case uint64:
		return fromInteger(t), true
	case uintptr:
		return fromInteger(t), true
	}
	return integer{}, false
}

func floatOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}
	if n, ok := integerOf(v); ok {
		if n.neg {
			return float64(int64(n.u)), true
		}
		return float64(n.u), true
	}
	return 0, false
}

// inRange reports whether n fits in the integer type T.
func inRange[T constraints.Integer](n integer) bool {
	if n.neg {
		v := int64(n.u)
		t := T(v)
		return t < 0 && int64(t) == v
	}
	t := T(n.u)
	return t >= 0 && uint64(t) == n.u
}

func (n integer) value(typ schema.Type) (Value, error) {
	switch kindOf(typ) {
	case Int32Kind:
		if inRange[int32](n) {
			return ValueOfInt32(int32(n.u)), nil
		}
	case Int64Kind:
		if inRange[int64](n) {
			return ValueOfInt64(int64(n.u)), nil
		}
	case Uint32Kind:
		if inRange[uint32](n) {
			return ValueOfUint32(uint32(n.u)), nil
		}
	case Uint64Kind:
		if inRange[uint64](n) {
			return ValueOfUint64(n.u), nil
		}
	}
	return Value{}, protoerr.Argumentf("%s out of range for %s field", n, typ)
}
