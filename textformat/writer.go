package textformat

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/anirudhraja/protokit/message"
	"github.com/anirudhraja/protokit/schema"
)

const indentUnit = "  "

type writer struct {
	w   *bufio.Writer
	err error
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriter(w)}
}

func (w *writer) message(m *message.Message, depth int) error {
	w.fields(m, depth)
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func (w *writer) fields(m *message.Message, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	m.Range(func(fd *schema.FieldDescriptor, v message.Value) bool {
		if fd.Type() == schema.TypeMessage {
			w.write(indent, fd.Name(), " {\n")
			w.fields(v.Message(), depth+1)
			w.write(indent, "}\n")
		} else {
			w.write(indent, fd.Name(), ": ", formatValue(fd, v), "\n")
		}
		return w.err == nil
	})
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = w.w.WriteString(p)
	}
}

// formatValue renders a scalar or enum value.
func formatValue(fd *schema.FieldDescriptor, v message.Value) string {
	switch v.Kind() {
	case message.EnumKind:
		if ev, ok := fd.Enum().ValueByNumber(v.Enum()); ok {
			return ev.Name
		}
		return strconv.FormatInt(int64(v.Enum()), 10)
	case message.StringKind:
		return strconv.Quote(v.String())
	case message.BytesKind:
		return quoteBytes(v.Bytes())
	case message.Float32Kind:
		return formatFloat(v.Float(), 32)
	case message.Float64Kind:
		return formatFloat(v.Float(), 64)
	}
	return v.String()
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// quoteBytes quotes b keeping printable ASCII and escaping everything else
// byte by byte, so the text round trips through strconv.Unquote unchanged.
func quoteBytes(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) + 2)
	sb.WriteByte('"')
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c >= 0x20 && c < utf8.RuneSelf && c != 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0xf])
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

const hexDigits = "0123456789abcdef"
