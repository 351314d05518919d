package message

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
)

// MapOptions configures conversion between messages and plain Go maps.
type MapOptions struct {
	// UseJSONNames keys ToMap output by lowerCamelCase JSON names. FromMap
	// always accepts both spellings.
	UseJSONNames bool
	// Base64Bytes renders bytes fields as base64 strings in ToMap and decodes
	// strings given for bytes fields in FromMap as base64.
	Base64Bytes bool
	// EnumNumbers renders enum fields as numbers instead of names.
	EnumNumbers bool
}

// ToMap converts the set fields of m into a map keyed by field name: enums
// by value name, messages as nested maps, repeated fields as []any.
func (m *Message) ToMap() map[string]any {
	return MapOptions{}.ToMap(m)
}

// ToMap converts m with the options.
func (o MapOptions) ToMap(m *Message) map[string]any {
	out := make(map[string]any, len(m.values)+len(m.lists))
	for _, fd := range m.desc.FieldsByNumber() {
		key := fd.Name()
		if o.UseJSONNames {
			key = toLowerCamel(key)
		}

		if fd.IsRepeated() {
			list := m.lists[fd.Number()]
			if len(list) == 0 {
				continue
			}
			items := make([]any, len(list))
			for i, v := range list {
				items[i] = o.plain(fd, v)
			}
			out[key] = items
			continue
		}
		if v, ok := m.values[fd.Number()]; ok {
			out[key] = o.plain(fd, v)
		}
	}
	return out
}

func (o MapOptions) plain(fd *schema.FieldDescriptor, v Value) any {
	switch v.kind {
	case EnumKind:
		if !o.EnumNumbers {
			if ev, ok := fd.Enum().ValueByNumber(v.Enum()); ok {
				return ev.Name
			}
		}
		return v.Enum()
	case MessageKind:
		return o.ToMap(v.msg)
	case BytesKind:
		if o.Base64Bytes {
			return base64.StdEncoding.EncodeToString(v.raw)
		}
		return append([]byte{}, v.raw...)
	}
	return v.Interface()
}

// FromMap builds an instance of md from a plain map, the inverse of ToMap.
// Besides what Set accepts it takes nested maps for message fields and the
// loose number forms produced by JSON and YAML decoders (integral float64,
// json.Number, decimal strings) for numeric fields.
func FromMap(md *schema.MessageDescriptor, data map[string]any) (*Message, error) {
	return MapOptions{}.FromMap(md, data)
}

// FromMap builds an instance of md with the options.
func (o MapOptions) FromMap(md *schema.MessageDescriptor, data map[string]any) (*Message, error) {
	m, err := Empty(md)
	if err != nil {
		return nil, err
	}
	if err := o.fill(m, data); err != nil {
		return nil, err
	}
	return m, nil
}

func (o MapOptions) fill(m *Message, data map[string]any) error {
	for key, raw := range data {
		fd := m.desc.FieldByName(key)
		if fd == nil {
			fd = fieldByJSONName(m.desc, key)
		}
		if fd == nil {
			return protoerr.Structuralf("message %s has no field %s", m.desc.FullName(), key)
		}

		if !fd.IsRepeated() {
			v, err := o.loose(fd, raw)
			if err != nil {
				return protoerr.WithField(err, fd.Name())
			}
			if err := m.set(fd, v); err != nil {
				return protoerr.WithField(err, fd.Name())
			}
			continue
		}

		items, ok := raw.([]any)
		if !ok {
			if err := m.set(fd, raw); err != nil {
				return protoerr.WithField(err, fd.Name())
			}
			continue
		}
		conv := make([]any, len(items))
		for i, item := range items {
			v, err := o.loose(fd, item)
			if err != nil {
				return protoerr.WithField(protoerr.WithField(err, indexName(i)), fd.Name())
			}
			conv[i] = v
		}
		if err := m.set(fd, conv); err != nil {
			return protoerr.WithField(err, fd.Name())
		}
	}
	return nil
}

// loose maps decoder-produced forms onto values Set accepts.
func (o MapOptions) loose(fd *schema.FieldDescriptor, v any) (any, error) {
	typ := fd.Type()
	switch {
	case typ == schema.TypeMessage:
		if nested, ok := v.(map[string]any); ok {
			child, err := Empty(fd.Message())
			if err != nil {
				return nil, err
			}
			if err := o.fill(child, nested); err != nil {
				return nil, err
			}
			return child, nil
		}
	case typ == schema.TypeBytes && o.Base64Bytes:
		if s, ok := v.(string); ok {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, protoerr.Argumentf("invalid base64: %v", err)
			}
			return b, nil
		}
	case typ == schema.TypeEnum:
		if _, isName := v.(string); isName {
			return v, nil
		}
		return coerceInteger(v)
	case typ.IsInteger():
		return coerceInteger(v)
	case typ.IsFloat():
		return coerceFloat(v)
	}
	return v, nil
}

// coerceInteger accepts integral floats, json.Number and decimal strings for
// integer fields. Other values pass through for Set to check.
func coerceInteger(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return nil, protoerr.Typef("non-integer numeric %v for integer field", t)
		}
		if t < 0 {
			return int64(t), nil
		}
		if t >= math.MaxUint64 {
			return nil, protoerr.Argumentf("%v out of range", t)
		}
		return uint64(t), nil
	case json.Number:
		return coerceInteger(string(t))
	case string:
		if iv, err := strconv.ParseInt(t, 10, 64); err == nil {
			return iv, nil
		}
		if uv, err := strconv.ParseUint(t, 10, 64); err == nil {
			return uv, nil
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return coerceInteger(f)
		}
	}
	return v, nil
}

func coerceFloat(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return coerceFloat(string(t))
	case string:
		switch t {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, protoerr.Typef("invalid number %q", t)
		}
		return f, nil
	}
	return v, nil
}

func fieldByJSONName(md *schema.MessageDescriptor, key string) *schema.FieldDescriptor {
	for _, fd := range md.Fields() {
		if toLowerCamel(fd.Name()) == key {
			return fd
		}
	}
	return nil
}

// MarshalJSON renders ToMap as JSON, with bytes as base64 and non-finite
// floats as the strings "NaN", "Infinity" and "-Infinity".
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonSafe(MapOptions{Base64Bytes: true}.ToMap(m)))
}

func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = jsonSafe(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = jsonSafe(e)
		}
		return t
	case float32:
		return jsonSafe(float64(t))
	case float64:
		switch {
		case math.IsNaN(t):
			return "NaN"
		case math.IsInf(t, 1):
			return "Infinity"
		case math.IsInf(t, -1):
			return "-Infinity"
		}
	}
	return v
}

// toLowerCamel converts snake_case to lowerCamelCase
func toLowerCamel(s string) string {
	if s == "" {
		return s
	}
	// Fast path: no underscore
	if !strings.Contains(s, "_") {
		// ensure lower first char
		if s[0] >= 'A' && s[0] <= 'Z' {
			return string(s[0]-'A'+'a') + s[1:]
		}
		return s
	}
	out := make([]byte, 0, len(s))
	upperNext := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upperNext = true
			continue
		}
		if len(out) == 0 {
			// first rune lowercased
			if c >= 'A' && c <= 'Z' {
				c = c - 'A' + 'a'
			}
			out = append(out, c)
			upperNext = false
			continue
		}
		if upperNext {
			if c >= 'a' && c <= 'z' {
				c = c - 'a' + 'A'
			}
			upperNext = false
		}
		out = append(out, c)
	}
	return string(out)
}
