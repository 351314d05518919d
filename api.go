package protokit

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/anirudhraja/protokit/compiler"
	"github.com/anirudhraja/protokit/message"
	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
)

// ===== SCHEMA-AWARE API =====

// Protokit bundles a registry and a compiler feeding it, and offers map and
// struct based encoding on top of dynamic messages.
type Protokit struct {
	registry *registry.Registry
	compiler *compiler.Compiler
}

// Option configures a Protokit.
type Option func(*settings)

type settings struct {
	registry     *registry.Registry
	compilerOpts []compiler.Option
}

// WithRegistry makes the instance use reg instead of a fresh registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *settings) { s.registry = reg }
}

// WithCompilerOptions passes options to the schema compiler.
func WithCompilerOptions(opts ...compiler.Option) Option {
	return func(s *settings) { s.compilerOpts = append(s.compilerOpts, opts...) }
}

// New creates a new Protokit instance
func New(opts ...Option) *Protokit {
	s := settings{}
	for _, o := range opts {
		o(&s)
	}
	if s.registry == nil {
		s.registry = registry.New()
	}
	return &Protokit{
		registry: s.registry,
		compiler: compiler.New(s.registry, s.compilerOpts...),
	}
}

// LoadSchema compiles schema source text and registers its types.
func (p *Protokit) LoadSchema(name, src string) (*schema.File, error) {
	return p.compiler.Compile(name, src)
}

// LoadSchemaFile compiles a .proto file, or every .proto file under a
// directory, and registers their types.
func (p *Protokit) LoadSchemaFile(path string) ([]*schema.File, error) {
	return p.compiler.CompilePath(path)
}

// NewMessage creates an instance of the named message type with the initial
// field values.
func (p *Protokit) NewMessage(messageType string, initial map[string]any) (*message.Message, error) {
	md, err := p.registry.Message(messageType)
	if err != nil {
		return nil, err
	}
	return message.New(md, initial)
}

// Parse decodes protobuf bytes into a map keyed by field name, with enums by
// value name and nested messages as maps.
func (p *Protokit) Parse(data []byte, messageType string) (map[string]any, error) {
	md, err := p.registry.Message(messageType)
	if err != nil {
		return nil, err
	}

	m, err := message.Unmarshal(md, data)
	if err != nil {
		return nil, errors.WithMessagef(err, "parse %s", messageType)
	}
	return m.ToMap(), nil
}

// Marshal encodes a map to protobuf bytes using schema information. The map
// takes the forms message.FromMap accepts.
func (p *Protokit) Marshal(data map[string]any, messageType string) ([]byte, error) {
	md, err := p.registry.Message(messageType)
	if err != nil {
		return nil, err
	}

	m, err := message.FromMap(md, data)
	if err != nil {
		return nil, errors.WithMessagef(err, "marshal %s", messageType)
	}
	return m.Marshal()
}

// Unmarshal decodes protobuf bytes of the named type into the struct v
// points to. Struct fields are matched to message fields by a `protokit`
// tag, then the name of a `json` tag, then the Go field name compared
// without underscores and ignoring case. Enums are stored as numbers.
func (p *Protokit) Unmarshal(data []byte, messageType string, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return protoerr.Argumentf("unmarshal target must be a pointer to struct, got %T", v)
	}

	md, err := p.registry.Message(messageType)
	if err != nil {
		return err
	}
	m, err := message.Unmarshal(md, data)
	if err != nil {
		return errors.WithMessagef(err, "unmarshal %s", messageType)
	}

	result := message.MapOptions{EnumNumbers: true}.ToMap(m)
	return mapToStruct(result, rv.Elem())
}

// mapToStruct maps parsed result to struct fields
func mapToStruct(data map[string]any, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		key, ok := lookupKey(data, field)
		if !ok {
			continue
		}
		if err := setFieldValue(fieldValue, data[key]); err != nil {
			return protoerr.WithField(err, key)
		}
	}
	return nil
}

// lookupKey finds the map key feeding a struct field.
func lookupKey(data map[string]any, field reflect.StructField) (string, bool) {
	for _, tag := range []string{"protokit", "json"} {
		if name, _, _ := strings.Cut(field.Tag.Get(tag), ","); name != "" && name != "-" {
			_, ok := data[name]
			return name, ok
		}
	}

	want := strings.ToLower(field.Name)
	for key := range data {
		if strings.ToLower(strings.ReplaceAll(key, "_", "")) == want {
			return key, true
		}
	}
	return "", false
}

// setFieldValue sets a struct field with type conversion
func setFieldValue(fieldValue reflect.Value, value any) error {
	if value == nil {
		return nil
	}

	switch t := value.(type) {
	case map[string]any:
		switch {
		case fieldValue.Kind() == reflect.Struct:
			return mapToStruct(t, fieldValue)
		case fieldValue.Kind() == reflect.Ptr && fieldValue.Type().Elem().Kind() == reflect.Struct:
			nv := reflect.New(fieldValue.Type().Elem())
			if err := mapToStruct(t, nv.Elem()); err != nil {
				return err
			}
			fieldValue.Set(nv)
			return nil
		}
	case []any:
		if fieldValue.Kind() == reflect.Slice {
			out := reflect.MakeSlice(fieldValue.Type(), len(t), len(t))
			for i, item := range t {
				if err := setFieldValue(out.Index(i), item); err != nil {
					return protoerr.WithField(err, "["+strconv.Itoa(i)+"]")
				}
			}
			fieldValue.Set(out)
			return nil
		}
	}

	sourceValue := reflect.ValueOf(value)
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	if convertible(sourceValue, fieldValue.Type()) {
		fieldValue.Set(sourceValue.Convert(fieldValue.Type()))
		return nil
	}

	return protoerr.Typef("cannot convert %T to %s", value, fieldValue.Type())
}

// convertible reports whether a value converts without changing meaning:
// numbers to numbers and strings to strings, but not numbers to strings.
func convertible(v reflect.Value, to reflect.Type) bool {
	if !v.Type().ConvertibleTo(to) {
		return false
	}
	from := v.Kind()
	if to.Kind() == reflect.String {
		return from == reflect.String
	}
	if from == reflect.String {
		return to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.Uint8
	}
	return true
}

// ===== REGISTRY ACCESS =====

func (p *Protokit) Registry() *registry.Registry { return p.registry }
func (p *Protokit) Compiler() *compiler.Compiler { return p.compiler }
func (p *Protokit) ListMessages() []string       { return p.registry.ListMessages() }
func (p *Protokit) ListEnums() []string          { return p.registry.ListEnums() }
