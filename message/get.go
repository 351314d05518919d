package message

import (
	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

// Get returns the named field's value as a Go value (see Value.Interface).
// Unset singular fields read as their default; an unset message field reads
// as an empty child message that does not become present. Repeated fields
// return a []any copy of their elements.
func (m *Message) Get(name string) (any, error) {
	fd, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if fd.IsRepeated() {
		list := m.lists[fd.Number()]
		out := make([]any, len(list))
		for i, v := range list {
			out[i] = v.Interface()
		}
		return out, nil
	}
	return m.GetValue(fd).Interface(), nil
}

// GetNumber is Get addressing the field by number.
func (m *Message) GetNumber(n schema.FieldNumber) (any, error) {
	fd, err := m.fieldByNumber(n)
	if err != nil {
		return nil, err
	}
	return m.Get(fd.Name())
}

// GetAs returns the named field converted to T by type assertion, for
// example GetAs[string](m, "name") or GetAs[*Message](m, "child").
func GetAs[T any](m *Message, name string) (T, error) {
	var zero T
	v, err := m.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, protoerr.WithField(protoerr.Typef("field holds %T, not %T", v, zero), name)
	}
	return t, nil
}

// GetValue returns the value of a singular field, its default when unset.
func (m *Message) GetValue(fd *schema.FieldDescriptor) Value {
	if v, ok := m.values[fd.Number()]; ok {
		return v
	}
	if fd.Type() == schema.TypeMessage {
		return ValueOfMessage(m.lazyChild(fd))
	}
	return defaultValue(fd)
}

// List returns the elements of a repeated field. The slice must not be
// modified.
func (m *Message) List(fd *schema.FieldDescriptor) []Value {
	return m.lists[fd.Number()]
}

// Mutable returns the named message field for in-place modification, first
// assigning a new empty child when the field is unset. Unlike Get it makes the
// field present.
func (m *Message) Mutable(name string) (*Message, error) {
	fd, err := m.field(name)
	if err != nil {
		return nil, err
	}
	if fd.Type() != schema.TypeMessage || fd.IsRepeated() {
		return nil, protoerr.WithField(protoerr.Typef("field is not a singular message"), name)
	}
	if v, ok := m.values[fd.Number()]; ok {
		return v.msg, nil
	}
	child := m.lazyChild(fd)
	m.store(fd, ValueOfMessage(child))
	return child, nil
}

// lazyChild returns the cached empty child of an unset message field. The
// child is private to m, so changing it is never visible on other instances.
func (m *Message) lazyChild(fd *schema.FieldDescriptor) *Message {
	if child, ok := m.lazy[fd.Number()]; ok {
		return child
	}
	child := newMessage(fd.Message())
	if m.lazy == nil {
		m.lazy = make(map[schema.FieldNumber]*Message)
	}
	m.lazy[fd.Number()] = child
	return child
}

// defaultValue is the value an unset scalar or enum field reads as. Required
// fields read as the zero value of their type.
func defaultValue(fd *schema.FieldDescriptor) Value {
	v, ok := fd.Default()
	if !ok {
		v = fd.ZeroValue()
	}
	switch t := v.(type) {
	case int32:
		if fd.Type() == schema.TypeEnum {
			return ValueOfEnum(t)
		}
		return ValueOfInt32(t)
	case int64:
		return ValueOfInt64(t)
	case uint32:
		return ValueOfUint32(t)
	case uint64:
		return ValueOfUint64(t)
	case float32:
		return ValueOfFloat32(t)
	case float64:
		return ValueOfFloat64(t)
	case bool:
		return ValueOfBool(t)
	case string:
		return ValueOfString(t)
	case []byte:
		return ValueOfBytes(t)
	}
	return Value{}
}
