package message

import (
	"errors"
	"math"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/kylelemons/godebug/pretty"

	"github.com/anirudhraja/protokit/protoerr"
)

func TestToMap(t *testing.T) {
	reg := compile(t, featurefulProto)
	aDesc := lookup(t, reg, "featureful.A")
	subDesc := lookup(t, reg, "featureful.A.Sub")

	a := mustNew(t, aDesc, map[string]any{
		"sub1": []*Message{mustNew(t, subDesc, map[string]any{"payload": "x", "payload_type": 1})},
		"sub2": mustNew(t, subDesc, map[string]any{"nums": []int{1, 2}}),
		"i2":   7,
	})

	want := map[string]any{
		"sub1": []any{map[string]any{"payload": "x", "payload_type": "P2"}},
		"sub2": map[string]any{"nums": []any{int32(1), int32(2)}},
		"i2":   int32(7),
	}
	if diff := pretty.Compare(a.ToMap(), want); diff != "" {
		t.Errorf("ToMap() -got +want:\n%s", diff)
	}

	camel := MapOptions{UseJSONNames: true, EnumNumbers: true}.ToMap(a)
	wantCamel := map[string]any{
		"sub1": []any{map[string]any{"payload": "x", "payloadType": int32(1)}},
		"sub2": map[string]any{"nums": []any{int32(1), int32(2)}},
		"i2":   int32(7),
	}
	if diff := pretty.Compare(camel, wantCamel); diff != "" {
		t.Errorf("ToMap(json names) -got +want:\n%s", diff)
	}
}

func TestFromMap(t *testing.T) {
	reg := compile(t, featurefulProto)
	aDesc := lookup(t, reg, "featureful.A")

	in := map[string]any{
		"sub1": []any{
			map[string]any{"payload": "x", "payloadType": "P2"},
			map[string]any{"nums": []any{float64(1), json.Number("2"), "3"}},
		},
		"sub2": map[string]any{},
		"i2":   float64(-4),
	}

	a, err := FromMap(aDesc, in)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	want := map[string]any{
		"sub1": []any{
			map[string]any{"payload": "x", "payload_type": "P2"},
			map[string]any{"nums": []any{int32(1), int32(2), int32(3)}},
		},
		"sub2": map[string]any{},
		"i2":   int32(-4),
	}
	if diff := pretty.Compare(a.ToMap(), want); diff != "" {
		t.Errorf("FromMap -got +want:\n%s", diff)
	}
	if has, _ := a.Has("sub2"); !has {
		t.Errorf("empty nested map did not make sub2 present")
	}
}

func TestFromMap_Errors(t *testing.T) {
	reg := compile(t, featurefulProto)
	aDesc := lookup(t, reg, "featureful.A")
	bitDesc := lookup(t, reg, "featureful.ABitOfEverything")

	tests := []struct {
		name string
		md   string
		in   map[string]any
		want error
		path []string
	}{
		{
			name: "unknown key",
			in:   map[string]any{"nope": 1},
			want: protoerr.ErrStructural,
		},
		{
			name: "fractional integer",
			in:   map[string]any{"i2": 1.5},
			want: protoerr.ErrType,
			path: []string{"i2"},
		},
		{
			name: "nested bad enum",
			in:   map[string]any{"sub2": map[string]any{"payload_type": "P7"}},
			want: protoerr.ErrArgument,
			path: []string{"sub2", "payload_type"},
		},
		{
			name: "bad list element",
			in:   map[string]any{"tags": []any{"a", 2}},
			want: protoerr.ErrType,
			path: []string{"tags", "[1]"},
		},
		{
			name: "int32 overflow",
			in:   map[string]any{"i2": float64(1 << 40)},
			want: protoerr.ErrArgument,
			path: []string{"i2"},
		},
		{
			name: "bad float string",
			md:   "bit",
			in:   map[string]any{"double_field": "lots"},
			want: protoerr.ErrType,
			path: []string{"double_field"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := aDesc
			if tt.md == "bit" {
				md = bitDesc
			}
			_, err := FromMap(md, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("FromMap = %v, want %v", err, tt.want)
			}
			if tt.path == nil {
				return
			}
			var pe *protoerr.Error
			if !errors.As(err, &pe) {
				t.Fatalf("error is %T", err)
			}
			if diff := pretty.Compare(pe.Path, tt.path); diff != "" {
				t.Errorf("path -got +want:\n%s", diff)
			}
		})
	}
}

func TestFromMap_Base64(t *testing.T) {
	reg := compile(t, featurefulProto)
	md := lookup(t, reg, "featureful.ABitOfEverything")
	opts := MapOptions{Base64Bytes: true}

	m, err := opts.FromMap(md, map[string]any{"bytes_field": "AAEC"})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if diff := pretty.Compare(mustGet(t, m, "bytes_field"), []byte{0, 1, 2}); diff != "" {
		t.Errorf("bytes_field -got +want:\n%s", diff)
	}
	if got := opts.ToMap(m)["bytes_field"]; got != "AAEC" {
		t.Errorf("ToMap bytes_field = %v", got)
	}

	if _, err := opts.FromMap(md, map[string]any{"bytes_field": "!!"}); !errors.Is(err, protoerr.ErrArgument) {
		t.Errorf("invalid base64 = %v, want argument error", err)
	}
}

func TestMarshalJSON(t *testing.T) {
	reg := compile(t, featurefulProto)
	md := lookup(t, reg, "featureful.ABitOfEverything")
	m := mustNew(t, md, map[string]any{
		"double_field": math.Inf(-1),
		"float_field":  float32(math.NaN()),
		"int32_field":  3,
		"string_field": "s",
		"bytes_field":  []byte{0xff},
	})

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", data, err)
	}
	want := map[string]any{
		"double_field": "-Infinity",
		"float_field":  "NaN",
		"int32_field":  float64(3),
		"string_field": "s",
		"bytes_field":  "/w==",
	}
	if diff := pretty.Compare(got, want); diff != "" {
		t.Errorf("MarshalJSON -got +want:\n%s", diff)
	}

	back, err := MapOptions{Base64Bytes: true}.FromMap(md, got)
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if v := mustGet(t, back, "double_field"); !math.IsInf(v.(float64), -1) {
		t.Errorf("double_field = %v", v)
	}
	if v := mustGet(t, back, "float_field"); !math.IsNaN(float64(v.(float32))) {
		t.Errorf("float_field = %v", v)
	}
}

func TestToLowerCamel(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"name":         "name",
		"Name":         "name",
		"payload_type": "payloadType",
		"a_b_c":        "aBC",
		"_leading":     "leading",
		"field_1":      "field1",
	}
	for in, want := range tests {
		if got := toLowerCamel(in); got != want {
			t.Errorf("toLowerCamel(%q) = %q, want %q", in, got, want)
		}
	}
}
