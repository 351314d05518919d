package message

import (
	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

// Message is an instance of a message type.
//
// Presence is tracked per field number and reflects explicit assignment only:
// reading an unset field returns its default, and reading an unset message
// field returns an empty child that is cached on the instance but is not
// present, not encoded and not compared.
type Message struct {
	desc *schema.MessageDescriptor

	values map[schema.FieldNumber]Value   // singular fields that are set
	lists  map[schema.FieldNumber][]Value // repeated fields with at least one element
	lazy   map[schema.FieldNumber]*Message

	unknown []byte
}

// New creates an instance of md and assigns the initial values through Set.
// md is sealed, so no fields can be added to it afterwards. An initial name
// that md does not define is a structural error.
func New(md *schema.MessageDescriptor, initial map[string]any) (*Message, error) {
	if md == nil {
		return nil, protoerr.Argumentf("nil message descriptor")
	}
	if err := seal(md); err != nil {
		return nil, err
	}

	m := newMessage(md)
	for name, v := range initial {
		if md.FieldByName(name) == nil {
			return nil, protoerr.Structuralf("message %s has no field %s", md.FullName(), name)
		}
		if err := m.Set(name, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Empty creates an instance of md with no fields set.
func Empty(md *schema.MessageDescriptor) (*Message, error) {
	return New(md, nil)
}

func newMessage(md *schema.MessageDescriptor) *Message {
	return &Message{
		desc:   md,
		values: make(map[schema.FieldNumber]Value),
		lists:  make(map[schema.FieldNumber][]Value),
	}
}

// seal freezes md the first time an instance is built from it. A descriptor
// that belongs to a file is frozen together with the rest of the file.
func seal(md *schema.MessageDescriptor) error {
	if md.Sealed() {
		return nil
	}
	if f := md.File(); f != nil {
		return f.Seal()
	}
	md.Seal()
	return nil
}

// Descriptor returns the message's descriptor.
func (m *Message) Descriptor() *schema.MessageDescriptor { return m.desc }

func (m *Message) field(name string) (*schema.FieldDescriptor, error) {
	fd := m.desc.FieldByName(name)
	if fd == nil {
		return nil, protoerr.Structuralf("message %s has no field %s", m.desc.FullName(), name)
	}
	return fd, nil
}

func (m *Message) fieldByNumber(n schema.FieldNumber) (*schema.FieldDescriptor, error) {
	fd := m.desc.FieldByNumber(n)
	if fd == nil {
		return nil, protoerr.Structuralf("message %s has no field number %d", m.desc.FullName(), n)
	}
	return fd, nil
}

// Has reports whether the named field has been explicitly set. A repeated
// field is set when it has at least one element.
func (m *Message) Has(name string) (bool, error) {
	fd, err := m.field(name)
	if err != nil {
		return false, err
	}
	return m.HasField(fd), nil
}

// HasNumber reports whether the field with number n is set. Unknown numbers
// report false.
func (m *Message) HasNumber(n schema.FieldNumber) bool {
	fd := m.desc.FieldByNumber(n)
	if fd == nil {
		return false
	}
	return m.HasField(fd)
}

// HasField reports whether fd is set.
func (m *Message) HasField(fd *schema.FieldDescriptor) bool {
	if fd.IsRepeated() {
		return len(m.lists[fd.Number()]) > 0
	}
	_, ok := m.values[fd.Number()]
	return ok
}

// Clear unsets the named field.
func (m *Message) Clear(name string) error {
	fd, err := m.field(name)
	if err != nil {
		return err
	}
	m.ClearField(fd)
	return nil
}

// ClearField unsets fd.
func (m *Message) ClearField(fd *schema.FieldDescriptor) {
	delete(m.values, fd.Number())
	delete(m.lists, fd.Number())
	delete(m.lazy, fd.Number())
}

// Reset unsets every field and drops retained unknown fields.
func (m *Message) Reset() {
	m.values = make(map[schema.FieldNumber]Value)
	m.lists = make(map[schema.FieldNumber][]Value)
	m.lazy = nil
	m.unknown = nil
}

// Len returns the number of elements of a repeated field, or 1 or 0 for a set
// or unset singular field.
func (m *Message) Len(name string) (int, error) {
	fd, err := m.field(name)
	if err != nil {
		return 0, err
	}
	if fd.IsRepeated() {
		return len(m.lists[fd.Number()]), nil
	}
	if _, ok := m.values[fd.Number()]; ok {
		return 1, nil
	}
	return 0, nil
}

// Range calls fn for every set field in ascending field number order, with
// the single value of a singular field or each element of a repeated field in
// turn. Range stops when fn returns false.
func (m *Message) Range(fn func(fd *schema.FieldDescriptor, v Value) bool) {
	for _, fd := range m.desc.FieldsByNumber() {
		if fd.IsRepeated() {
			for _, v := range m.lists[fd.Number()] {
				if !fn(fd, v) {
					return
				}
			}
			continue
		}
		if v, ok := m.values[fd.Number()]; ok {
			if !fn(fd, v) {
				return
			}
		}
	}
}

// Unknown returns the retained bytes of fields that were decoded but are not
// defined by the descriptor, tags included, in the order they were read.
func (m *Message) Unknown() []byte { return m.unknown }

// SetUnknown replaces the retained unknown field bytes.
func (m *Message) SetUnknown(raw []byte) {
	m.unknown = append([]byte(nil), raw...)
}

// DiscardUnknown drops retained unknown fields, recursively.
func (m *Message) DiscardUnknown() {
	m.unknown = nil
	for _, v := range m.values {
		if v.kind == MessageKind {
			v.msg.DiscardUnknown()
		}
	}
	for _, list := range m.lists {
		for _, v := range list {
			if v.kind == MessageKind {
				v.msg.DiscardUnknown()
			}
		}
	}
}
