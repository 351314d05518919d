package schema

import (
	"sync/atomic"

	"github.com/anirudhraja/protokit/protoerr"
)

// Resolver finds types that are defined outside a File. The registry
// implements it.
type Resolver interface {
	FindMessage(fullName string) *MessageDescriptor
	FindEnum(fullName string) *EnumDescriptor
}

// File is the arena for one compilation unit. It owns every message and enum
// descriptor declared in the unit, addressed by index and by fully qualified
// name. Field references are stored as (file, index) pairs and bound by Link,
// which allows forward, self and cyclic references without pointer cycles
// being built during declaration.
type File struct {
	name string
	pkg  string

	messages []*MessageDescriptor
	enums    []*EnumDescriptor

	// full name -> index into messages or enums
	messageIndex map[string]int
	enumIndex    map[string]int

	topMessages []*MessageDescriptor
	topEnums    []*EnumDescriptor

	linked bool
	sealed atomic.Bool
}

// NewFile creates an empty arena. pkg may be empty.
func NewFile(name, pkg string) *File {
	return &File{
		name:         name,
		pkg:          pkg,
		messageIndex: make(map[string]int),
		enumIndex:    make(map[string]int),
	}
}

func (f *File) Name() string    { return f.name }
func (f *File) Package() string { return f.pkg }
func (f *File) Sealed() bool    { return f.sealed.Load() }

// Messages returns the top-level message types in declaration order.
func (f *File) Messages() []*MessageDescriptor { return f.topMessages }

// Enums returns the top-level enum types in declaration order.
func (f *File) Enums() []*EnumDescriptor { return f.topEnums }

// AllMessages returns every message of the file, nested ones included, in
// declaration order.
func (f *File) AllMessages() []*MessageDescriptor {
	out := make([]*MessageDescriptor, len(f.messages))
	copy(out, f.messages)
	return out
}

// AllEnums returns every enum of the file, nested ones included.
func (f *File) AllEnums() []*EnumDescriptor {
	out := make([]*EnumDescriptor, len(f.enums))
	copy(out, f.enums)
	return out
}

// FindMessage looks up a message of this file by fully qualified name.
func (f *File) FindMessage(fullName string) *MessageDescriptor {
	if i, ok := f.messageIndex[fullName]; ok {
		return f.messages[i]
	}
	return nil
}

// FindEnum looks up an enum of this file by fully qualified name.
func (f *File) FindEnum(fullName string) *EnumDescriptor {
	if i, ok := f.enumIndex[fullName]; ok {
		return f.enums[i]
	}
	return nil
}

// NewMessage declares a top-level message type.
func (f *File) NewMessage(name string) (*MessageDescriptor, error) {
	m, err := f.newMessage(nil, name)
	if err != nil {
		return nil, err
	}
	f.topMessages = append(f.topMessages, m)
	return m, nil
}

// NewEnum declares a top-level enum type.
func (f *File) NewEnum(name string) (*EnumDescriptor, error) {
	e, err := f.newEnum(nil, name)
	if err != nil {
		return nil, err
	}
	f.topEnums = append(f.topEnums, e)
	return e, nil
}

func (f *File) qualify(parent *MessageDescriptor, name string) string {
	switch {
	case parent != nil:
		return parent.fullName + "." + name
	case f.pkg != "":
		return f.pkg + "." + name
	default:
		return name
	}
}

func (f *File) checkNewType(fullName string) error {
	if f.sealed.Load() {
		return protoerr.Structuralf("cannot declare %s: file %s is sealed", fullName, f.name)
	}
	if _, ok := f.messageIndex[fullName]; ok {
		return protoerr.Structuralf("duplicate type name %s", fullName)
	}
	if _, ok := f.enumIndex[fullName]; ok {
		return protoerr.Structuralf("duplicate type name %s", fullName)
	}
	return nil
}

func (f *File) newMessage(parent *MessageDescriptor, name string) (*MessageDescriptor, error) {
	if name == "" {
		return nil, protoerr.Structuralf("message with empty name")
	}
	fullName := f.qualify(parent, name)
	if err := f.checkNewType(fullName); err != nil {
		return nil, err
	}

	m := &MessageDescriptor{
		file:          f,
		index:         len(f.messages),
		name:          name,
		fullName:      fullName,
		parent:        parent,
		byNumber:      make(map[FieldNumber]*FieldDescriptor),
		byName:        make(map[string]*FieldDescriptor),
		reservedNames: make(map[string]struct{}),
	}
	f.messages = append(f.messages, m)
	f.messageIndex[fullName] = m.index
	return m, nil
}

func (f *File) newEnum(parent *MessageDescriptor, name string) (*EnumDescriptor, error) {
	if name == "" {
		return nil, protoerr.Structuralf("enum with empty name")
	}
	fullName := f.qualify(parent, name)
	if err := f.checkNewType(fullName); err != nil {
		return nil, err
	}

	e := &EnumDescriptor{
		file:     f,
		index:    len(f.enums),
		name:     name,
		fullName: fullName,
		parent:   parent,
		byName:   make(map[string]int),
		byNumber: make(map[int32]int),
	}
	f.enums = append(f.enums, e)
	f.enumIndex[fullName] = e.index
	return e, nil
}

// Link binds every message and enum field to its referenced type, looking in
// the file first and in r next (r may be nil), then parses explicit defaults
// against the resolved types. Link may be called more than once before Seal.
func (f *File) Link(r Resolver) error {
	if f.sealed.Load() {
		return protoerr.Structuralf("file %s is sealed", f.name)
	}

	for _, e := range f.enums {
		if err := e.validate(); err != nil {
			return err
		}
	}

	for _, m := range f.messages {
		for _, fd := range m.fields {
			if err := f.bind(fd, r); err != nil {
				return protoerr.WithField(err, m.fullName)
			}
		}
	}

	// Defaults of enum fields need the enum bound first.
	for _, m := range f.messages {
		for _, fd := range m.fields {
			if err := fd.resolveDefault(); err != nil {
				return protoerr.WithField(err, m.fullName)
			}
		}
	}

	f.linked = true
	return nil
}

func (f *File) bind(fd *FieldDescriptor, r Resolver) error {
	switch fd.typ {
	case TypeMessage:
		if m := f.FindMessage(fd.typeName); m != nil {
			fd.refFile, fd.ref = f, m.index
			return nil
		}
		if r != nil {
			if m := r.FindMessage(fd.typeName); m != nil {
				fd.refFile, fd.ref = m.file, m.index
				return nil
			}
		}
		if f.FindEnum(fd.typeName) != nil {
			return protoerr.Structuralf("field %s: %s is an enum, not a message", fd.name, fd.typeName)
		}
	case TypeEnum:
		if e := f.FindEnum(fd.typeName); e != nil {
			fd.refFile, fd.ref = f, e.index
			return nil
		}
		if r != nil {
			if e := r.FindEnum(fd.typeName); e != nil {
				fd.refFile, fd.ref = e.file, e.index
				return nil
			}
		}
		if f.FindMessage(fd.typeName) != nil {
			return protoerr.Structuralf("field %s: %s is a message, not an enum", fd.name, fd.typeName)
		}
	default:
		return nil
	}
	return protoerr.Structuralf("field %s: unknown type %s", fd.name, fd.typeName)
}

// Seal links the file if needed and freezes every descriptor in it.
func (f *File) Seal() error {
	if f.sealed.Load() {
		return nil
	}
	if !f.linked {
		if err := f.Link(nil); err != nil {
			return err
		}
	}
	for _, m := range f.messages {
		m.Seal()
	}
	for _, e := range f.enums {
		e.Seal()
	}
	f.sealed.Store(true)
	return nil
}
