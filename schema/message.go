package schema

import (
	"maps"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/anirudhraja/protokit/protoerr"
)

// ReservedRange is an inclusive range of reserved field numbers.
type ReservedRange struct {
	Start, End FieldNumber
}

// MessageDescriptor describes one message type: its fields, indexed by number
// and by name, and the types nested inside it.
//
// A descriptor is built once (DefineField, NewMessage, NewEnum, Reserve) and
// then sealed, either by File.Seal or by the first message instance created
// from it. After sealing it is read-only and safe for concurrent use.
type MessageDescriptor struct {
	file     *File
	index    int
	name     string
	fullName string
	parent   *MessageDescriptor

	fields   []*FieldDescriptor
	ordered  []*FieldDescriptor // fields sorted by number
	byNumber map[FieldNumber]*FieldDescriptor
	byName   map[string]*FieldDescriptor
	required []*FieldDescriptor

	messages []*MessageDescriptor
	enums    []*EnumDescriptor

	reservedRanges []ReservedRange
	reservedNames  map[string]struct{}

	sealed atomic.Bool
}

func (m *MessageDescriptor) Name() string               { return m.name }
func (m *MessageDescriptor) FullName() string           { return m.fullName }
func (m *MessageDescriptor) File() *File                { return m.file }
func (m *MessageDescriptor) Parent() *MessageDescriptor { return m.parent }
func (m *MessageDescriptor) Sealed() bool               { return m.sealed.Load() }

// Seal freezes the descriptor. Sealing is idempotent.
func (m *MessageDescriptor) Seal() {
	m.sealed.Store(true)
}

// Fields returns the fields in declaration order.
func (m *MessageDescriptor) Fields() []*FieldDescriptor {
	out := make([]*FieldDescriptor, len(m.fields))
	copy(out, m.fields)
	return out
}

// FieldsByNumber returns the fields in ascending field number order, the
// order they are encoded in. The slice must not be modified.
func (m *MessageDescriptor) FieldsByNumber() []*FieldDescriptor {
	return m.ordered
}

// NumFields returns the number of declared fields.
func (m *MessageDescriptor) NumFields() int { return len(m.fields) }

// FieldByNumber looks a field up by number. It returns nil if there is none.
func (m *MessageDescriptor) FieldByNumber(n FieldNumber) *FieldDescriptor {
	return m.byNumber[n]
}

// FieldByName looks a field up by name. It returns nil if there is none.
func (m *MessageDescriptor) FieldByName(name string) *FieldDescriptor {
	return m.byName[name]
}

// RequiredFields returns the required fields in declaration order.
func (m *MessageDescriptor) RequiredFields() []*FieldDescriptor {
	return m.required
}

// Messages returns the directly nested message types.
func (m *MessageDescriptor) Messages() []*MessageDescriptor { return m.messages }

// Enums returns the directly nested enum types.
func (m *MessageDescriptor) Enums() []*EnumDescriptor { return m.enums }

// ReservedRanges returns the reserved number ranges.
func (m *MessageDescriptor) ReservedRanges() []ReservedRange { return m.reservedRanges }

// IsReservedName reports whether name was reserved.
func (m *MessageDescriptor) IsReservedName(name string) bool {
	_, ok := m.reservedNames[name]
	return ok
}

// ReservedNames returns the reserved field names, sorted.
func (m *MessageDescriptor) ReservedNames() []string {
	return slices.Sorted(maps.Keys(m.reservedNames))
}

// IsReservedNumber reports whether n falls in a reserved range.
func (m *MessageDescriptor) IsReservedNumber(n FieldNumber) bool {
	for _, r := range m.reservedRanges {
		if n >= r.Start && n <= r.End {
			return true
		}
	}
	return false
}

// DefineField appends a field. It fails with a structural error when the
// number or name is already used or reserved, when the number is out of
// range, when options do not fit the type and label, or when the descriptor
// is sealed.
func (m *MessageDescriptor) DefineField(label Label, typ Type, name string, number FieldNumber, opts ...FieldOption) (*FieldDescriptor, error) {
	if m.sealed.Load() {
		return nil, protoerr.Structuralf("cannot define field %s: message %s is sealed", name, m.fullName)
	}

	f := &FieldDescriptor{
		containing: m,
		index:      len(m.fields),
		number:     number,
		name:       name,
		typ:        typ,
		label:      label,
		ref:        -1,
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := m.checkField(f); err != nil {
		return nil, protoerr.WithField(err, m.fullName)
	}

	m.file.linked = false
	m.fields = append(m.fields, f)
	i := sort.Search(len(m.ordered), func(i int) bool { return m.ordered[i].number > number })
	m.ordered = slices.Insert(m.ordered, i, f)
	m.byNumber[number] = f
	m.byName[name] = f
	if label == LabelRequired {
		m.required = append(m.required, f)
	}
	return f, nil
}

func (m *MessageDescriptor) checkField(f *FieldDescriptor) error {
	switch {
	case f.name == "":
		return protoerr.Structuralf("field %d has no name", f.number)
	case f.label < LabelOptional || f.label > LabelRepeated:
		return protoerr.Structuralf("field %s has an invalid label", f.name)
	case f.typ <= TypeInvalid || f.typ > TypeMessage:
		return protoerr.Structuralf("field %s has an invalid type", f.name)
	case !f.number.Valid():
		return protoerr.Structuralf("field %s: number %d out of range", f.name, f.number)
	case f.number >= FirstReservedNumber && f.number <= LastReservedNumber:
		return protoerr.Structuralf("field %s: numbers %d-%d are reserved for the runtime", f.name, FirstReservedNumber, LastReservedNumber)
	}

	if prev, ok := m.byNumber[f.number]; ok {
		return protoerr.Structuralf("field %s reuses number %d of field %s", f.name, f.number, prev.name)
	}
	if _, ok := m.byName[f.name]; ok {
		return protoerr.Structuralf("duplicate field name %s", f.name)
	}
	if m.IsReservedNumber(f.number) {
		return protoerr.Structuralf("field %s uses reserved number %d", f.name, f.number)
	}
	if m.IsReservedName(f.name) {
		return protoerr.Structuralf("field name %s is reserved", f.name)
	}

	if (f.typ == TypeMessage || f.typ == TypeEnum) && f.typeName == "" {
		return protoerr.Structuralf("field %s: %s fields need a type name", f.name, f.typ)
	}
	if f.typ.IsScalar() && f.typeName != "" {
		return protoerr.Structuralf("field %s: scalar fields take no type name", f.name)
	}
	if f.hasDefault && (f.label != LabelOptional || f.typ == TypeMessage) {
		return protoerr.Structuralf("field %s: only optional scalar and enum fields may have a default", f.name)
	}
	if f.packed && (f.label != LabelRepeated || !f.typ.IsPackable()) {
		return protoerr.Structuralf("field %s: packed applies only to repeated numeric fields", f.name)
	}
	return nil
}

// Reserve reserves the inclusive range start..end.
func (m *MessageDescriptor) Reserve(start, end FieldNumber) error {
	if m.sealed.Load() {
		return protoerr.Structuralf("message %s is sealed", m.fullName)
	}
	if start > end || !start.Valid() || !end.Valid() {
		return protoerr.Structuralf("message %s: invalid reserved range %d to %d", m.fullName, start, end)
	}
	for _, f := range m.fields {
		if f.number >= start && f.number <= end {
			return protoerr.Structuralf("message %s: field %s uses reserved number %d", m.fullName, f.name, f.number)
		}
	}
	m.reservedRanges = append(m.reservedRanges, ReservedRange{Start: start, End: end})
	return nil
}

// ReserveName reserves a field name.
func (m *MessageDescriptor) ReserveName(name string) error {
	if m.sealed.Load() {
		return protoerr.Structuralf("message %s is sealed", m.fullName)
	}
	if _, ok := m.byName[name]; ok {
		return protoerr.Structuralf("message %s: field name %s is reserved", m.fullName, name)
	}
	m.reservedNames[name] = struct{}{}
	return nil
}

// NewMessage declares a message type nested in m.
func (m *MessageDescriptor) NewMessage(name string) (*MessageDescriptor, error) {
	if m.sealed.Load() {
		return nil, protoerr.Structuralf("message %s is sealed", m.fullName)
	}
	nested, err := m.file.newMessage(m, name)
	if err != nil {
		return nil, err
	}
	m.messages = append(m.messages, nested)
	return nested, nil
}

// NewEnum declares an enum type nested in m.
func (m *MessageDescriptor) NewEnum(name string) (*EnumDescriptor, error) {
	if m.sealed.Load() {
		return nil, protoerr.Structuralf("message %s is sealed", m.fullName)
	}
	nested, err := m.file.newEnum(m, name)
	if err != nil {
		return nil, err
	}
	m.enums = append(m.enums, nested)
	return nested, nil
}
