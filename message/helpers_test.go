package message

import (
	"testing"

	"github.com/anirudhraja/protokit/compiler"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
)

const featurefulProto = `
package featureful;

message A {
  message Sub {
    optional string payload = 1;
    enum Payloads {
      P1 = 0;
      P2 = 1;
    }
    optional Payloads payload_type = 2;
    repeated int32 nums = 3 [packed = true];
    repeated int32 plain = 4;
  }

  repeated Sub sub1 = 1;
  optional Sub sub2 = 2;
  optional Sub sub3 = 3;
  optional int32 i2 = 4;
  repeated string tags = 5;
}

message ABitOfEverything {
  optional double double_field = 1;
  optional float float_field = 2;
  optional int32 int32_field = 3;
  optional int64 int64_field = 4;
  optional uint32 uint32_field = 5;
  optional uint64 uint64_field = 6;
  optional sint32 sint32_field = 7;
  optional sint64 sint64_field = 8;
  optional fixed32 fixed32_field = 9;
  optional fixed64 fixed64_field = 10;
  optional sfixed32 sfixed32_field = 11;
  optional sfixed64 sfixed64_field = 12;
  optional bool bool_field = 13;
  optional string string_field = 14 [default = "fourteen"];
  optional bytes bytes_field = 15;
}

message Wrapper {
  required string id = 1;
  optional Wrapper next = 2;
  repeated Wrapper children = 3;
}
`

// compile compiles src into a fresh registry.
func compile(t *testing.T, src string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	if _, err := compiler.New(reg).Compile("test.proto", src); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return reg
}

// compileInto compiles src into reg, replacing earlier definitions.
func compileInto(t *testing.T, reg *registry.Registry, src string) {
	t.Helper()
	if _, err := compiler.New(reg).Compile("test.proto", src); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
}

func lookup(t *testing.T, reg *registry.Registry, name string) *schema.MessageDescriptor {
	t.Helper()
	md, err := reg.Message(name)
	if err != nil {
		t.Fatalf("Message(%s): %v", name, err)
	}
	return md
}

func mustNew(t *testing.T, md *schema.MessageDescriptor, initial map[string]any) *Message {
	t.Helper()
	m, err := New(md, initial)
	if err != nil {
		t.Fatalf("New(%s): %v", md.FullName(), err)
	}
	return m
}

func mustMarshal(t *testing.T, m *Message) []byte {
	t.Helper()
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func mustGet(t *testing.T, m *Message, name string) any {
	t.Helper()
	v, err := m.Get(name)
	if err != nil {
		t.Fatalf("Get(%s): %v", name, err)
	}
	return v
}

func filledInBit(t *testing.T, md *schema.MessageDescriptor) *Message {
	t.Helper()
	return mustNew(t, md, map[string]any{
		"double_field":   1.0,
		"float_field":    float32(2.0),
		"int32_field":    3,
		"int64_field":    4,
		"uint32_field":   5,
		"uint64_field":   6,
		"sint32_field":   7,
		"sint64_field":   8,
		"fixed32_field":  9,
		"fixed64_field":  10,
		"sfixed32_field": 11,
		"sfixed64_field": 12,
		"bool_field":     true,
		"string_field":   "14",
		"bytes_field":    "15",
	})
}
