package schema

import (
	"errors"
	"math"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/anirudhraja/protokit/protoerr"
)

func newTestFile(t *testing.T) (*File, *MessageDescriptor) {
	t.Helper()
	f := NewFile("test.proto", "demo")
	m, err := f.NewMessage("Person")
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return f, m
}

func TestDefineField(t *testing.T) {
	tests := []struct {
		name    string
		label   Label
		typ     Type
		field   string
		number  FieldNumber
		opts    []FieldOption
		wantErr bool
	}{
		{"optional int32", LabelOptional, TypeInt32, "a", 1, nil, false},
		{"repeated packed", LabelRepeated, TypeSint64, "b", 2, []FieldOption{WithPacked()}, false},
		{"required string", LabelRequired, TypeString, "c", 3, nil, false},
		{"message with type name", LabelOptional, TypeMessage, "d", 4, []FieldOption{WithTypeName(".demo.Person")}, false},
		{"default on optional", LabelOptional, TypeDouble, "e", 5, []FieldOption{WithDefault("1.5")}, false},
		{"max field number", LabelOptional, TypeBool, "f", 1<<29 - 1, nil, false},
		{"zero number", LabelOptional, TypeInt32, "g", 0, nil, true},
		{"too large number", LabelOptional, TypeInt32, "g", 1 << 29, nil, true},
		{"runtime reserved range", LabelOptional, TypeInt32, "g", 19000, nil, true},
		{"runtime reserved range end", LabelOptional, TypeInt32, "g", 19999, nil, true},
		{"empty name", LabelOptional, TypeInt32, "", 7, nil, true},
		{"message without type name", LabelOptional, TypeMessage, "g", 7, nil, true},
		{"enum without type name", LabelOptional, TypeEnum, "g", 7, nil, true},
		{"scalar with type name", LabelOptional, TypeInt32, "g", 7, []FieldOption{WithTypeName("demo.X")}, true},
		{"default on required", LabelRequired, TypeInt32, "g", 7, []FieldOption{WithDefault("1")}, true},
		{"default on repeated", LabelRepeated, TypeInt32, "g", 7, []FieldOption{WithDefault("1")}, true},
		{"default on message", LabelOptional, TypeMessage, "g", 7, []FieldOption{WithTypeName("demo.Person"), WithDefault("x")}, true},
		{"packed on singular", LabelOptional, TypeInt32, "g", 7, []FieldOption{WithPacked()}, true},
		{"packed string", LabelRepeated, TypeString, "g", 7, []FieldOption{WithPacked()}, true},
		{"invalid type", LabelOptional, TypeInvalid, "g", 7, nil, true},
		{"invalid label", Label(0), TypeInt32, "g", 7, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, m := newTestFile(t)
			fd, err := m.DefineField(tt.label, tt.typ, tt.field, tt.number, tt.opts...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got field %v", fd.Name())
				}
				if !errors.Is(err, protoerr.ErrStructural) {
					t.Errorf("expected structural error, got %v", err)
				}
				if m.NumFields() != 0 {
					t.Errorf("failed definition left %d fields behind", m.NumFields())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.FieldByNumber(tt.number) != fd || m.FieldByName(tt.field) != fd {
				t.Errorf("field not indexed by number and name")
			}
			if fd.Containing() != m {
				t.Errorf("Containing() = %v, want %v", fd.Containing(), m)
			}
		})
	}
}

func TestDefineField_Duplicates(t *testing.T) {
	_, m := newTestFile(t)
	if _, err := m.DefineField(LabelOptional, TypeInt32, "id", 1); err != nil {
		t.Fatalf("DefineField: %v", err)
	}

	if _, err := m.DefineField(LabelOptional, TypeString, "other", 1); !errors.Is(err, protoerr.ErrStructural) {
		t.Errorf("duplicate number: got %v, want structural error", err)
	}
	if _, err := m.DefineField(LabelOptional, TypeString, "id", 2); !errors.Is(err, protoerr.ErrStructural) {
		t.Errorf("duplicate name: got %v, want structural error", err)
	}
	if got := len(m.Fields()); got != 1 {
		t.Errorf("Fields() has %d entries, want 1", got)
	}
}

func TestMessageDescriptor_Reserved(t *testing.T) {
	_, m := newTestFile(t)
	if err := m.Reserve(5, 10); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := m.ReserveName("legacy"); err != nil {
		t.Fatalf("ReserveName: %v", err)
	}

	if _, err := m.DefineField(LabelOptional, TypeInt32, "x", 7); err == nil {
		t.Errorf("expected error for reserved number")
	}
	if _, err := m.DefineField(LabelOptional, TypeInt32, "legacy", 11); err == nil {
		t.Errorf("expected error for reserved name")
	}
	if _, err := m.DefineField(LabelOptional, TypeInt32, "ok", 11); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := m.Reserve(11, 12); err == nil {
		t.Errorf("expected error reserving a used number")
	}
	if err := m.Reserve(9, 3); err == nil {
		t.Errorf("expected error for inverted range")
	}
	if !m.IsReservedNumber(10) || m.IsReservedNumber(11) {
		t.Errorf("IsReservedNumber mismatch")
	}
}

func TestMessageDescriptor_Order(t *testing.T) {
	_, m := newTestFile(t)
	for _, def := range []struct {
		name string
		num  FieldNumber
	}{{"c", 30}, {"a", 1}, {"b", 7}} {
		if _, err := m.DefineField(LabelOptional, TypeInt32, def.name, def.num); err != nil {
			t.Fatalf("DefineField(%s): %v", def.name, err)
		}
	}
	for _, name := range []string{"zeta", "alpha"} {
		if err := m.ReserveName(name); err != nil {
			t.Fatalf("ReserveName(%s): %v", name, err)
		}
	}

	var declared, byNumber []string
	for _, fd := range m.Fields() {
		declared = append(declared, fd.Name())
	}
	for _, fd := range m.FieldsByNumber() {
		byNumber = append(byNumber, fd.Name())
	}
	if diff := pretty.Compare(declared, []string{"c", "a", "b"}); diff != "" {
		t.Errorf("Fields -got +want:\n%s", diff)
	}
	if diff := pretty.Compare(byNumber, []string{"a", "b", "c"}); diff != "" {
		t.Errorf("FieldsByNumber -got +want:\n%s", diff)
	}
	if diff := pretty.Compare(m.ReservedNames(), []string{"alpha", "zeta"}); diff != "" {
		t.Errorf("ReservedNames -got +want:\n%s", diff)
	}
}

func TestMessageDescriptor_Sealed(t *testing.T) {
	f, m := newTestFile(t)
	if _, err := m.DefineField(LabelOptional, TypeInt32, "id", 1); err != nil {
		t.Fatalf("DefineField: %v", err)
	}
	if err := f.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !m.Sealed() {
		t.Fatalf("message not sealed after file seal")
	}

	if _, err := m.DefineField(LabelOptional, TypeInt32, "late", 2); !errors.Is(err, protoerr.ErrStructural) {
		t.Errorf("DefineField after seal: got %v, want structural error", err)
	}
	if _, err := m.NewMessage("Inner"); err == nil {
		t.Errorf("NewMessage after seal: expected error")
	}
	if _, err := f.NewEnum("Late"); err == nil {
		t.Errorf("NewEnum after seal: expected error")
	}
	if m.FieldByName("late") != nil {
		t.Errorf("rejected field is visible")
	}
}

func TestEnumDescriptor(t *testing.T) {
	f := NewFile("e.proto", "")
	e, err := f.NewEnum("Kind")
	if err != nil {
		t.Fatalf("NewEnum: %v", err)
	}
	if e.FullName() != "Kind" {
		t.Errorf("FullName() = %q, want Kind", e.FullName())
	}

	for i, name := range []string{"A", "B", "C"} {
		if err := e.AddValue(name, int32(i)); err != nil {
			t.Fatalf("AddValue(%s): %v", name, err)
		}
	}

	tests := []struct {
		name   string
		value  string
		number int32
	}{
		{"duplicate name", "A", 7},
		{"duplicate number", "D", 1},
		{"negative", "E", -1},
		{"empty", "", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.AddValue(tt.value, tt.number); !errors.Is(err, protoerr.ErrStructural) {
				t.Errorf("AddValue(%q, %d) = %v, want structural error", tt.value, tt.number, err)
			}
		})
	}

	if v, ok := e.ValueByName("B"); !ok || v.Number != 1 {
		t.Errorf("ValueByName(B) = %v, %v", v, ok)
	}
	if v, ok := e.ValueByNumber(2); !ok || v.Name != "C" {
		t.Errorf("ValueByNumber(2) = %v, %v", v, ok)
	}
	if e.Has(3) {
		t.Errorf("Has(3) = true")
	}
	if e.Len() != 3 {
		t.Errorf("Len() = %d, want 3", e.Len())
	}
}

func TestEnumDescriptor_AllowAlias(t *testing.T) {
	f := NewFile("e.proto", "")
	e, _ := f.NewEnum("Status")
	if err := e.SetAllowAlias(true); err != nil {
		t.Fatalf("SetAllowAlias: %v", err)
	}
	if err := e.AddValue("STARTED", 1); err != nil {
		t.Fatal(err)
	}
	if err := e.AddValue("RUNNING", 1); err != nil {
		t.Fatalf("alias rejected: %v", err)
	}
	if v, _ := e.ValueByNumber(1); v.Name != "STARTED" {
		t.Errorf("ValueByNumber(1) = %s, want first declared name STARTED", v.Name)
	}
	if err := e.SetAllowAlias(false); err == nil {
		t.Errorf("disabling allow_alias with aliases present should fail")
	}
}

func TestFile_LinkReferences(t *testing.T) {
	f := NewFile("tree.proto", "demo")
	node, _ := f.NewMessage("Node")
	color, _ := f.NewEnum("Color")
	_ = color.AddValue("RED", 0)
	_ = color.AddValue("GREEN", 1)

	// self reference and a forward reference to a type declared below
	parent, err := node.DefineField(LabelOptional, TypeMessage, "parent", 1, WithTypeName("demo.Node"))
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := node.DefineField(LabelRepeated, TypeMessage, "leaves", 2, WithTypeName("demo.Leaf"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := node.DefineField(LabelOptional, TypeEnum, "color", 3, WithTypeName("demo.Color"), WithDefault("GREEN"))
	if err != nil {
		t.Fatal(err)
	}
	leafMsg, _ := f.NewMessage("Leaf")
	if _, err := leafMsg.DefineField(LabelOptional, TypeMessage, "back", 1, WithTypeName("demo.Node")); err != nil {
		t.Fatal(err)
	}

	if err := f.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if parent.Message() != node {
		t.Errorf("self reference not bound")
	}
	if leaf.Message() != leafMsg {
		t.Errorf("forward reference not bound")
	}
	if leafMsg.FieldByNumber(1).Message() != node {
		t.Errorf("cyclic reference not bound")
	}
	if c.Enum() != color {
		t.Errorf("enum reference not bound")
	}
	if v, ok := c.Default(); !ok || v != int32(1) {
		t.Errorf("enum default = %v, %v, want 1", v, ok)
	}
}

func TestFile_LinkErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(f *File)
	}{
		{"unknown type", func(f *File) {
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeMessage, "x", 1, WithTypeName("demo.Missing"))
		}},
		{"enum used as message", func(f *File) {
			e, _ := f.NewEnum("E")
			_ = e.AddValue("A", 0)
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeMessage, "x", 1, WithTypeName("demo.E"))
		}},
		{"message used as enum", func(f *File) {
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeEnum, "x", 1, WithTypeName("demo.M"))
		}},
		{"empty enum", func(f *File) {
			_, _ = f.NewEnum("E")
		}},
		{"bad int default", func(f *File) {
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeInt32, "x", 1, WithDefault("abc"))
		}},
		{"int32 default out of range", func(f *File) {
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeInt32, "x", 1, WithDefault("3000000000"))
		}},
		{"unknown enum default", func(f *File) {
			e, _ := f.NewEnum("E")
			_ = e.AddValue("A", 0)
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeEnum, "x", 1, WithTypeName("demo.E"), WithDefault("B"))
		}},
		{"bad bool default", func(f *File) {
			m, _ := f.NewMessage("M")
			_, _ = m.DefineField(LabelOptional, TypeBool, "x", 1, WithDefault("yes"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFile("bad.proto", "demo")
			tt.build(f)
			if err := f.Link(nil); !errors.Is(err, protoerr.ErrStructural) {
				t.Errorf("Link() = %v, want structural error", err)
			}
			if f.Sealed() {
				t.Errorf("file sealed after failed link")
			}
		})
	}
}

func TestFile_DuplicateTypes(t *testing.T) {
	f := NewFile("dup.proto", "demo")
	m, _ := f.NewMessage("A")
	if _, err := f.NewMessage("A"); err == nil {
		t.Errorf("duplicate message accepted")
	}
	if _, err := f.NewEnum("A"); err == nil {
		t.Errorf("enum with message name accepted")
	}
	inner, err := m.NewMessage("A")
	if err != nil {
		t.Fatalf("nested message with same short name: %v", err)
	}
	if inner.FullName() != "demo.A.A" {
		t.Errorf("FullName() = %q, want demo.A.A", inner.FullName())
	}
	if inner.Parent() != m {
		t.Errorf("Parent() mismatch")
	}
	if got := len(f.AllMessages()); got != 2 {
		t.Errorf("AllMessages() = %d, want 2", got)
	}
	if got := len(f.Messages()); got != 1 {
		t.Errorf("Messages() = %d, want 1", got)
	}
}

func TestFieldDescriptor_Default(t *testing.T) {
	f := NewFile("d.proto", "")
	m, _ := f.NewMessage("D")
	e, _ := f.NewEnum("E")
	_ = e.AddValue("FIRST", 3)
	_ = e.AddValue("SECOND", 4)

	def := func(label Label, typ Type, name string, num FieldNumber, opts ...FieldOption) *FieldDescriptor {
		fd, err := m.DefineField(label, typ, name, num, opts...)
		if err != nil {
			t.Fatalf("DefineField(%s): %v", name, err)
		}
		return fd
	}

	i32 := def(LabelOptional, TypeInt32, "i32", 1)
	u64 := def(LabelOptional, TypeUint64, "u64", 2, WithDefault("0x10"))
	str := def(LabelOptional, TypeString, "str", 3, WithDefault(`"hi\n"`))
	sq := def(LabelOptional, TypeBytes, "sq", 4, WithDefault(`'a"b'`))
	inf := def(LabelOptional, TypeDouble, "inf", 5, WithDefault("-inf"))
	flt := def(LabelOptional, TypeFloat, "flt", 6, WithDefault("2.5"))
	en := def(LabelOptional, TypeEnum, "en", 7, WithTypeName("E"))
	req := def(LabelRequired, TypeInt32, "req", 8)
	rep := def(LabelRepeated, TypeInt32, "rep", 9)
	msg := def(LabelOptional, TypeMessage, "msg", 10, WithTypeName("D"))
	b := def(LabelOptional, TypeBool, "b", 11, WithDefault("true"))

	if err := f.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tests := []struct {
		name   string
		fd     *FieldDescriptor
		want   any
		wantOK bool
	}{
		{"zero int32", i32, int32(0), true},
		{"hex uint64", u64, uint64(16), true},
		{"escaped string", str, "hi\n", true},
		{"single quoted bytes", sq, []byte(`a"b`), true},
		{"float32", flt, float32(2.5), true},
		{"enum first value", en, int32(3), true},
		{"bool", b, true, true},
		{"required has none", req, nil, false},
		{"repeated has none", rep, nil, false},
		{"message has none", msg, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fd.Default()
			if ok != tt.wantOK {
				t.Fatalf("Default() ok = %v, want %v", ok, tt.wantOK)
			}
			if gb, isBytes := got.([]byte); isBytes {
				if string(gb) != string(tt.want.([]byte)) {
					t.Errorf("Default() = %q, want %q", gb, tt.want)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Default() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if v, _ := inf.Default(); !math.IsInf(v.(float64), -1) {
		t.Errorf("-inf default = %v", v)
	}
	if !str.HasDefault() || i32.HasDefault() {
		t.Errorf("HasDefault mismatch")
	}
}

func TestTypeHelpers(t *testing.T) {
	if typ, ok := ParseScalarType("sfixed64"); !ok || typ != TypeSfixed64 {
		t.Errorf("ParseScalarType(sfixed64) = %v, %v", typ, ok)
	}
	if _, ok := ParseScalarType("Person"); ok {
		t.Errorf("ParseScalarType(Person) should fail")
	}
	if l, ok := ParseLabel("repeated"); !ok || l != LabelRepeated {
		t.Errorf("ParseLabel(repeated) = %v, %v", l, ok)
	}
	if TypeString.IsPackable() || !TypeEnum.IsPackable() {
		t.Errorf("IsPackable mismatch")
	}
	if TypeEnum.IsScalar() || !TypeBool.IsScalar() {
		t.Errorf("IsScalar mismatch")
	}
}
