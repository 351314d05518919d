package schema

import (
	"sync/atomic"

	"github.com/anirudhraja/protokit/protoerr"
)

// EnumValue represents an enum value
type EnumValue struct {
	Name   string // "ACTIVE"
	Number int32  // 1
}

// EnumDescriptor is an ordered mapping from symbolic names to non-negative
// integers.
type EnumDescriptor struct {
	file     *File
	index    int
	name     string
	fullName string
	parent   *MessageDescriptor

	values     []EnumValue
	byName     map[string]int
	byNumber   map[int32]int // first value declared with the number
	allowAlias bool

	sealed atomic.Bool
}

func (e *EnumDescriptor) Name() string               { return e.name }
func (e *EnumDescriptor) FullName() string           { return e.fullName }
func (e *EnumDescriptor) File() *File                { return e.file }
func (e *EnumDescriptor) Parent() *MessageDescriptor { return e.parent }
func (e *EnumDescriptor) AllowAlias() bool           { return e.allowAlias }
func (e *EnumDescriptor) Sealed() bool               { return e.sealed.Load() }

// Seal freezes the enum. Sealing is idempotent.
func (e *EnumDescriptor) Seal() {
	e.sealed.Store(true)
}

// Values returns the values in declaration order.
func (e *EnumDescriptor) Values() []EnumValue {
	out := make([]EnumValue, len(e.values))
	copy(out, e.values)
	return out
}

// Len returns the number of declared values.
func (e *EnumDescriptor) Len() int { return len(e.values) }

// ValueByName looks a value up by its symbolic name.
func (e *EnumDescriptor) ValueByName(name string) (EnumValue, bool) {
	i, ok := e.byName[name]
	if !ok {
		return EnumValue{}, false
	}
	return e.values[i], true
}

// ValueByNumber returns the first value declared with number n.
func (e *EnumDescriptor) ValueByNumber(n int32) (EnumValue, bool) {
	i, ok := e.byNumber[n]
	if !ok {
		return EnumValue{}, false
	}
	return e.values[i], true
}

// Has reports whether n is a defined value.
func (e *EnumDescriptor) Has(n int32) bool {
	_, ok := e.byNumber[n]
	return ok
}

// SetAllowAlias permits several names to share one number. It must be called
// before the aliases are added.
func (e *EnumDescriptor) SetAllowAlias(allow bool) error {
	if e.sealed.Load() {
		return protoerr.Structuralf("enum %s is sealed", e.fullName)
	}
	if !allow && len(e.byNumber) != len(e.values) {
		return protoerr.Structuralf("enum %s already contains aliases", e.fullName)
	}
	e.allowAlias = allow
	return nil
}

// AddValue appends a value to the enum.
func (e *EnumDescriptor) AddValue(name string, number int32) error {
	if e.sealed.Load() {
		return protoerr.Structuralf("cannot add value %s: enum %s is sealed", name, e.fullName)
	}
	if name == "" {
		return protoerr.Structuralf("enum %s: empty value name", e.fullName)
	}
	if number < 0 {
		return protoerr.Structuralf("enum %s: value %s has negative number %d", e.fullName, name, number)
	}
	if _, ok := e.byName[name]; ok {
		return protoerr.Structuralf("enum %s: duplicate value name %s", e.fullName, name)
	}
	if i, ok := e.byNumber[number]; ok && !e.allowAlias {
		return protoerr.Structuralf("enum %s: %s reuses number %d of %s (set allow_alias to permit this)",
			e.fullName, name, number, e.values[i].Name)
	}

	e.values = append(e.values, EnumValue{Name: name, Number: number})
	e.byName[name] = len(e.values) - 1
	if _, ok := e.byNumber[number]; !ok {
		e.byNumber[number] = len(e.values) - 1
	}
	return nil
}

func (e *EnumDescriptor) validate() error {
	if len(e.values) == 0 {
		return protoerr.Structuralf("enum %s must declare at least one value", e.fullName)
	}
	return nil
}
