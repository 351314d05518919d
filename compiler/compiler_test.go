package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
)

const personProto = `
syntax = "proto2";
package test.people;

// A person, with a forward reference to Address.
message Person {
  required string name = 1;
  optional int32 id = 2 [default = 7];
  repeated string emails = 3;
  optional Address home = 4;
  optional Kind kind = 5 [default = ADMIN];
  repeated int32 scores = 6 [packed = true];
  optional Person best_friend = 7;
  reserved 10 to 12, 100;
  reserved "legacy";

  enum Kind {
    USER = 0;
    ADMIN = 1;
  }

  message Note {
    optional string text = 1;
  }
  repeated Note notes = 8;
}

message Address {
  optional string street = 1;
  optional .test.people.Person owner = 2;
  optional Person.Kind owner_kind = 3;
}

enum Status {
  option allow_alias = true;
  STARTED = 1;
  RUNNING = 1;
  DONE = 2;
}

service People {
  rpc Get(Person) returns (Person);
}
`

func TestCompile(t *testing.T) {
	reg := registry.New()
	c := New(reg)

	file, err := c.Compile("person.proto", personProto)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if file.Package() != "test.people" {
		t.Errorf("Package() = %q", file.Package())
	}
	if !file.Sealed() {
		t.Errorf("compiled file is not sealed")
	}

	person, err := reg.Message("test.people.Person")
	if err != nil {
		t.Fatalf("Person not registered: %v", err)
	}
	address, err := reg.Message("test.people.Address")
	if err != nil {
		t.Fatalf("Address not registered: %v", err)
	}
	kind, err := reg.Enum("test.people.Person.Kind")
	if err != nil {
		t.Fatalf("Person.Kind not registered: %v", err)
	}

	tests := []struct {
		field    string
		number   schema.FieldNumber
		label    schema.Label
		typ      schema.Type
		typeName string
	}{
		{"name", 1, schema.LabelRequired, schema.TypeString, ""},
		{"id", 2, schema.LabelOptional, schema.TypeInt32, ""},
		{"emails", 3, schema.LabelRepeated, schema.TypeString, ""},
		{"home", 4, schema.LabelOptional, schema.TypeMessage, "test.people.Address"},
		{"kind", 5, schema.LabelOptional, schema.TypeEnum, "test.people.Person.Kind"},
		{"scores", 6, schema.LabelRepeated, schema.TypeInt32, ""},
		{"best_friend", 7, schema.LabelOptional, schema.TypeMessage, "test.people.Person"},
		{"notes", 8, schema.LabelRepeated, schema.TypeMessage, "test.people.Person.Note"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			fd := person.FieldByName(tt.field)
			if fd == nil {
				t.Fatalf("field %s missing", tt.field)
			}
			if fd.Number() != tt.number || fd.Label() != tt.label || fd.Type() != tt.typ || fd.TypeName() != tt.typeName {
				t.Errorf("got (%d, %s, %s, %q), want (%d, %s, %s, %q)",
					fd.Number(), fd.Label(), fd.Type(), fd.TypeName(),
					tt.number, tt.label, tt.typ, tt.typeName)
			}
		})
	}

	if person.FieldByName("home").Message() != address {
		t.Errorf("forward reference not resolved")
	}
	if person.FieldByName("best_friend").Message() != person {
		t.Errorf("self reference not resolved")
	}
	if address.FieldByName("owner").Message() != person {
		t.Errorf("fully qualified reference not resolved")
	}
	if address.FieldByName("owner_kind").Enum() != kind {
		t.Errorf("nested enum reference not resolved")
	}
	if !person.FieldByName("scores").Packed() {
		t.Errorf("packed option lost")
	}
	if v, _ := person.FieldByName("id").Default(); v != int32(7) {
		t.Errorf("id default = %v, want 7", v)
	}
	if v, _ := person.FieldByName("kind").Default(); v != int32(1) {
		t.Errorf("kind default = %v, want 1", v)
	}
	if !person.IsReservedNumber(11) || !person.IsReservedNumber(100) || !person.IsReservedName("legacy") {
		t.Errorf("reserved statements lost")
	}
	if req := person.RequiredFields(); len(req) != 1 || req[0].Name() != "name" {
		t.Errorf("RequiredFields() = %v", req)
	}

	status, err := reg.Enum("test.people.Status")
	if err != nil {
		t.Fatal(err)
	}
	if !status.AllowAlias() || status.Len() != 3 {
		t.Errorf("alias enum compiled wrong: alias=%v len=%d", status.AllowAlias(), status.Len())
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", `message A { optional int32 = 1; }`},
		{"duplicate number", `message A { optional int32 a = 1; optional int32 b = 1; }`},
		{"duplicate name", `message A { optional int32 a = 1; optional int64 a = 2; }`},
		{"duplicate type", `message A {} message A {}`},
		{"unknown type", `message A { optional Missing m = 1; }`},
		{"reserved number", `message A { reserved 5; optional int32 a = 5; }`},
		{"reserved name", `message A { optional int32 a = 1; reserved "a"; }`},
		{"number zero", `message A { optional int32 a = 0; }`},
		{"runtime range", `message A { optional int32 a = 19500; }`},
		{"map field", `message A { map<string, int32> m = 1; }`},
		{"oneof", `message A { oneof o { int32 a = 1; } }`},
		{"invalid int default", `message A { optional int32 a = 1 [default = "x"]; }`},
		{"default on required", `message A { required int32 a = 1 [default = 1]; }`},
		{"default on repeated", `message A { repeated int32 a = 1 [default = 1]; }`},
		{"negative enum value", `enum E { A = -1; }`},
		{"duplicate enum number", `enum E { A = 0; B = 0; }`},
		{"empty enum", `enum E {}`},
		{"unknown enum default", `enum E { A = 0; } message M { optional E e = 1 [default = B]; }`},
		{"packed string", `message A { repeated string s = 1 [packed = true]; }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			_, err := New(reg).Compile("bad.proto", tt.src)
			if err == nil {
				t.Fatalf("Expected error")
			}
			if !errors.Is(err, protoerr.ErrStructural) {
				t.Errorf("Expected structural error, got %v", err)
			}
			if reg.Len() != 0 {
				t.Errorf("failed compile installed %v", reg.ListMessages())
			}
		})
	}
}

func TestCompile_MissingLabelIsOptional(t *testing.T) {
	reg := registry.New()
	if _, err := New(reg).Compile("a.proto", `message A { int32 a = 1; }`); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	m, _ := reg.Message("A")
	if m.FieldByName("a").Label() != schema.LabelOptional {
		t.Errorf("missing label compiled as %s", m.FieldByName("a").Label())
	}
}

func TestCompile_DefaultSyntax(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no syntax", "package p;\nmessage A { optional int32 a = 1; }"},
		{"line comment first", "// header\n// more\npackage p;\nmessage A { optional int32 a = 1; }"},
		{"block comment first", "/* header\n */\nmessage A { optional int32 a = 1; }"},
		{"explicit syntax", "// header\nsyntax = \"proto2\";\nmessage A { optional int32 a = 1; }"},
		{"explicit syntax no spaces", "syntax=\"proto2\";message A { optional int32 a = 1; }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New()
			if _, err := New(reg).Compile("a.proto", tt.src); err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if reg.Len() != 1 {
				t.Errorf("registry holds %v", reg.ListMessages())
			}
		})
	}

	t.Run("error line unchanged", func(t *testing.T) {
		_, err := New(nil).Compile("a.proto", "package p;\n\nmessage A { optional int32 = 1; }")
		if err == nil {
			t.Fatal("Expected error")
		}
		if !strings.Contains(err.Error(), ":3:") {
			t.Errorf("error does not point at line 3: %v", err)
		}
	})
}

func TestHasSyntax(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{`syntax = "proto2";`, true},
		{"\n\t syntax\n= \"proto2\";", true},
		{"// c\n/* d */ syntax = \"proto2\";", true},
		{"package p;", false},
		{"message syntax {}", false},
		{"syntaxes = 1;", false},
		{"// only a comment", false},
		{"/* unterminated", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := hasSyntax([]byte(tt.src)); got != tt.want {
			t.Errorf("hasSyntax(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompile_ResolvesAgainstRegistry(t *testing.T) {
	reg := registry.New()
	c := New(reg)
	if _, err := c.Compile("base.proto", `package base; message Money { optional int64 cents = 1; }`); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile("order.proto", `package shop; message Order { optional base.Money total = 1; }`); err != nil {
		t.Fatalf("cross-file reference failed: %v", err)
	}
	order, _ := reg.Message("shop.Order")
	money, _ := reg.Message("base.Money")
	if order.FieldByName("total").Message() != money {
		t.Errorf("reference bound to the wrong descriptor")
	}
}

func TestCompile_Recompile(t *testing.T) {
	reg := registry.New()
	c := New(reg)

	v1, err := c.Compile("v1.proto", `message M { optional int32 a = 1; }`)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.Compile("v2.proto", `message M { optional int32 a = 1; optional string b = 2; }`)
	if err != nil {
		t.Fatal(err)
	}

	cur, _ := reg.Message("M")
	if cur != v2.FindMessage("M") {
		t.Errorf("recompile did not replace M")
	}
	if v1.FindMessage("M").FieldByName("b") != nil {
		t.Errorf("old descriptor changed")
	}

	// a stale nested p.M.T must not shadow the new file's own p.T
	if _, err := c.Compile("a.proto", `package p; message M { message T { optional int32 x = 1; } optional T t = 1; }`); err != nil {
		t.Fatal(err)
	}
	next, err := c.Compile("a.proto", `package p; message T { optional string y = 1; } message M { optional T t = 1; }`)
	if err != nil {
		t.Fatal(err)
	}
	field := next.FindMessage("p.M").FieldByName("t")
	if field.TypeName() != "p.T" || field.Message() != next.FindMessage("p.T") {
		t.Errorf("field t resolved to %s, want this file's p.T", field.TypeName())
	}

	strict := New(registry.New(registry.WithRejectRedefinition()))
	if _, err := strict.Compile("v1.proto", `message M { optional int32 a = 1; }`); err != nil {
		t.Fatal(err)
	}
	if _, err := strict.Compile("v2.proto", `message M { optional int32 a = 1; }`); !errors.Is(err, protoerr.ErrStructural) {
		t.Errorf("Expected structural error, got %v", err)
	}
}

func TestCompileFile(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	protoFiles := map[string]string{
		filepath.Join(tmpDir, "file1.proto"): "package pkg1;\nmessage One { optional int32 a = 1; }",
		filepath.Join(subDir, "file2.proto"): "syntax = \"proto2\";\npackage pkg2;\nmessage Two { optional int32 a = 1; }",
		filepath.Join(tmpDir, "notproto.txt"): "not a proto file",
	}
	for path, content := range protoFiles {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("directory", func(t *testing.T) {
		reg := registry.New()
		files, err := New(reg).CompilePath(tmpDir)
		if err != nil {
			t.Fatalf("CompilePath failed: %v", err)
		}
		// Should have loaded 2 proto files, ignoring the .txt file
		if len(files) != 2 {
			t.Errorf("Expected 2 proto files, got %d", len(files))
		}
		if got := strings.Join(reg.ListMessages(), ","); got != "pkg1.One,pkg2.Two" {
			t.Errorf("ListMessages() = %s", got)
		}
	})

	t.Run("single file", func(t *testing.T) {
		file, err := New(nil).CompileFile(filepath.Join(subDir, "file2.proto"))
		if err != nil {
			t.Fatalf("CompileFile failed: %v", err)
		}
		if file.Name() != "file2.proto" {
			t.Errorf("Name() = %q", file.Name())
		}
	})

	t.Run("non proto file", func(t *testing.T) {
		if _, err := New(nil).CompileFile(filepath.Join(tmpDir, "notproto.txt")); err == nil {
			t.Error("Expected error for non-proto file")
		}
	})

	t.Run("non existent path", func(t *testing.T) {
		_, err := New(nil).CompilePath("/nonexistent/path")
		if err == nil || !strings.Contains(err.Error(), "path does not exist") {
			t.Errorf("Expected 'path does not exist' error, got: %v", err)
		}
	})
}
