package message

import (
	"bytes"
)

// Equal reports whether a and b are instances of the same descriptor with the
// same set fields holding equal values, recursively, and the same retained
// unknown bytes. Field declaration order and lazily created children play no
// part.
func Equal(a, b *Message) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.desc != b.desc {
		return false
	}
	if len(a.values) != len(b.values) || len(a.lists) != len(b.lists) {
		return false
	}

	for n, av := range a.values {
		bv, ok := b.values[n]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	for n, al := range a.lists {
		bl, ok := b.lists[n]
		if !ok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !al[i].Equal(bl[i]) {
				return false
			}
		}
	}
	return bytes.Equal(a.unknown, b.unknown)
}

// Equal reports whether m and o are equal as defined by the package-level
// Equal.
func (m *Message) Equal(o *Message) bool { return Equal(m, o) }

// Clone returns a deep copy of m. Lazily created children are not copied.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := newMessage(m.desc)
	for n, v := range m.values {
		out.values[n] = cloneValue(v)
	}
	for n, list := range m.lists {
		cp := make([]Value, len(list))
		for i, v := range list {
			cp[i] = cloneValue(v)
		}
		out.lists[n] = cp
	}
	if m.unknown != nil {
		out.unknown = append([]byte(nil), m.unknown...)
	}
	return out
}

func cloneValue(v Value) Value {
	switch v.kind {
	case BytesKind:
		return ValueOfBytes(append([]byte{}, v.raw...))
	case MessageKind:
		return ValueOfMessage(v.msg.Clone())
	}
	return v
}
