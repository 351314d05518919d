package registry

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

// Registry stores the compiled message and enum descriptors by fully
// qualified name. We look them up when we need to build, parse or marshal a
// message.
//
// Reads are lock free: every update builds a new snapshot and publishes it
// with a single atomic swap, so readers see either all of a compiled file or
// none of it. Writers are serialized.
type Registry struct {
	snap atomic.Pointer[snapshot]
	mu   sync.Mutex

	rejectRedefinition bool
}

type snapshot struct {
	messages map[string]*schema.MessageDescriptor // fully qualified name -> message
	enums    map[string]*schema.EnumDescriptor    // fully qualified name -> enum
	files    map[string]*schema.File              // file name -> file
}

func (s *snapshot) clone() *snapshot {
	out := &snapshot{
		messages: make(map[string]*schema.MessageDescriptor, len(s.messages)),
		enums:    make(map[string]*schema.EnumDescriptor, len(s.enums)),
		files:    make(map[string]*schema.File, len(s.files)),
	}
	for k, v := range s.messages {
		out.messages[k] = v
	}
	for k, v := range s.enums {
		out.enums[k] = v
	}
	for k, v := range s.files {
		out.files[k] = v
	}
	return out
}

// Option configures a Registry.
type Option func(*Registry)

// WithRejectRedefinition makes registering a name that is already present a
// structural error. By default the new definition replaces the old one.
func WithRejectRedefinition() Option {
	return func(r *Registry) {
		r.rejectRedefinition = true
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(&snapshot{
		messages: map[string]*schema.MessageDescriptor{},
		enums:    map[string]*schema.EnumDescriptor{},
		files:    map[string]*schema.File{},
	})
	return r
}

// Register installs every message and enum of a sealed file. Either all of
// the file's types become visible or, on error, none of them do. Instances
// created from replaced descriptors keep using their old descriptors.
func (r *Registry) Register(file *schema.File) error {
	if file == nil {
		return protoerr.Argumentf("nil file")
	}
	if !file.Sealed() {
		return protoerr.Structuralf("file %s must be sealed before registration", file.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	next := cur.clone()

	for _, m := range file.AllMessages() {
		name := m.FullName()
		if err := r.checkRedefinition(cur, name); err != nil {
			return err
		}
		if _, ok := cur.messages[name]; ok {
			Logger().Debug("replacing message", zap.String("name", name), zap.String("file", file.Name()))
		}
		delete(next.enums, name)
		next.messages[name] = m
	}
	for _, e := range file.AllEnums() {
		name := e.FullName()
		if err := r.checkRedefinition(cur, name); err != nil {
			return err
		}
		if _, ok := cur.enums[name]; ok {
			Logger().Debug("replacing enum", zap.String("name", name), zap.String("file", file.Name()))
		}
		delete(next.messages, name)
		next.enums[name] = e
	}
	next.files[file.Name()] = file

	r.snap.Store(next)
	Logger().Debug("registered file",
		zap.String("file", file.Name()),
		zap.String("package", file.Package()),
		zap.Int("messages", len(file.AllMessages())),
		zap.Int("enums", len(file.AllEnums())),
	)
	return nil
}

func (r *Registry) checkRedefinition(cur *snapshot, name string) error {
	if !r.rejectRedefinition {
		return nil
	}
	_, isMsg := cur.messages[name]
	_, isEnum := cur.enums[name]
	if isMsg || isEnum {
		return protoerr.Structuralf("type %s is already registered", name)
	}
	return nil
}

// FindMessage returns the message registered under fullName, or nil. It
// implements schema.Resolver.
func (r *Registry) FindMessage(fullName string) *schema.MessageDescriptor {
	return r.snap.Load().messages[strings.TrimPrefix(fullName, ".")]
}

// FindEnum returns the enum registered under fullName, or nil. It implements
// schema.Resolver.
func (r *Registry) FindEnum(fullName string) *schema.EnumDescriptor {
	return r.snap.Load().enums[strings.TrimPrefix(fullName, ".")]
}

// File returns a registered file by name.
func (r *Registry) File(name string) *schema.File {
	return r.snap.Load().files[name]
}

// Message retrieves a message descriptor by name. A name that is not fully
// qualified matches when exactly one registered message ends with it.
func (r *Registry) Message(name string) (*schema.MessageDescriptor, error) {
	s := r.snap.Load()
	if msg, ok := s.messages[strings.TrimPrefix(name, ".")]; ok {
		return msg, nil
	}

	full, err := suffixMatch(name, s.messages)
	if err != nil {
		return nil, protoerr.Argumentf("message %s: %v", name, err)
	}
	return s.messages[full], nil
}

// Enum retrieves an enum descriptor by name with the same rules as Message.
func (r *Registry) Enum(name string) (*schema.EnumDescriptor, error) {
	s := r.snap.Load()
	if e, ok := s.enums[strings.TrimPrefix(name, ".")]; ok {
		return e, nil
	}

	full, err := suffixMatch(name, s.enums)
	if err != nil {
		return nil, protoerr.Argumentf("enum %s: %v", name, err)
	}
	return s.enums[full], nil
}

// Has reports whether a message or enum is registered under fullName.
func (r *Registry) Has(fullName string) bool {
	s := r.snap.Load()
	_, isMsg := s.messages[fullName]
	_, isEnum := s.enums[fullName]
	return isMsg || isEnum
}

// Resolve resolves a type reference written inside scope (the fully
// qualified name of the enclosing message or package) to the fully
// qualified name of a registered type.
func (r *Registry) Resolve(typeName, scope string) (string, error) {
	full, ok := ResolveName(typeName, scope, r.Has)
	if !ok {
		return "", protoerr.Structuralf("unable to resolve type name: %s", typeName)
	}
	return full, nil
}

// ListMessages returns all registered message names, sorted.
func (r *Registry) ListMessages() []string {
	return sortedKeys(r.snap.Load().messages)
}

// ListEnums returns all registered enum names, sorted.
func (r *Registry) ListEnums() []string {
	return sortedKeys(r.snap.Load().enums)
}

// Len returns the number of registered messages and enums.
func (r *Registry) Len() int {
	s := r.snap.Load()
	return len(s.messages) + len(s.enums)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
