package interop

import (
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/anirudhraja/protokit/message"
	"github.com/anirudhraja/protokit/registry"
	"github.com/anirudhraja/protokit/schema"
)

type benchFixture struct {
	md      *schema.MessageDescriptor
	dynDesc protoreflect.MessageDescriptor
	payload []byte
}

func newBenchFixture(b *testing.B) benchFixture {
	b.Helper()
	reg := registry.New()
	file := compileFile(b, reg, "everything.proto", everythingProto)
	md, err := reg.Message("interop.test.Everything")
	if err != nil {
		b.Fatal(err)
	}
	fd, err := FileDescriptor(file)
	if err != nil {
		b.Fatal(err)
	}
	payload, err := everything(b, md).Marshal()
	if err != nil {
		b.Fatal(err)
	}
	return benchFixture{md: md, dynDesc: fd.Messages().ByName("Everything"), payload: payload}
}

// ===== DECODE =====

func BenchmarkUnmarshal_Protokit(b *testing.B) {
	fx := newBenchFixture(b)
	b.ReportMetric(float64(len(fx.payload)), "payload_bytes")
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := message.Unmarshal(fx.md, fx.payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshal_DynamicPB(b *testing.B) {
	fx := newBenchFixture(b)
	b.ReportMetric(float64(len(fx.payload)), "payload_bytes")
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m := dynamicpb.NewMessage(fx.dynDesc)
		if err := proto.Unmarshal(fx.payload, m); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseToMap_Protokit(b *testing.B) {
	fx := newBenchFixture(b)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m, err := message.Unmarshal(fx.md, fx.payload)
		if err != nil {
			b.Fatal(err)
		}
		_ = m.ToMap()
	}
}

// ===== ENCODE =====

func BenchmarkMarshal_Protokit(b *testing.B) {
	fx := newBenchFixture(b)
	m, err := message.Unmarshal(fx.md, fx.payload)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := m.Marshal(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMarshal_DynamicPB(b *testing.B) {
	fx := newBenchFixture(b)
	m := dynamicpb.NewMessage(fx.dynDesc)
	if err := proto.Unmarshal(fx.payload, m); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := proto.Marshal(m); err != nil {
			b.Fatal(err)
		}
	}
}
