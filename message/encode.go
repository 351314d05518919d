package message

import (
	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
	"github.com/anirudhraja/protokit/wire"
)

// Marshal encodes the message: every set field in ascending field number
// order, one tag and value per repeated element (or a single packed record
// for packed fields), followed by the retained unknown fields verbatim. A
// message with nothing set encodes to zero bytes. A missing required field,
// at any depth, is an encode error naming its path.
func (m *Message) Marshal() ([]byte, error) {
	return MarshalOptions{AllowPartial: CurrentConfig().AllowPartial}.Marshal(m)
}

// Marshal encodes m with the options.
func (o MarshalOptions) Marshal(m *Message) ([]byte, error) {
	if !o.AllowPartial {
		if err := m.checkRequired(protoerr.KindEncode); err != nil {
			return nil, err
		}
	}
	e := wire.NewEncoder()
	m.encode(e)
	return e.Bytes(), nil
}

// IsInitialized reports whether every required field is set, recursively.
func (m *Message) IsInitialized() bool {
	return m.checkRequired(protoerr.KindEncode) == nil
}

// CheckInitialized returns an encode error naming the first missing required
// field, or nil.
func (m *Message) CheckInitialized() error {
	return m.checkRequired(protoerr.KindEncode)
}

func (m *Message) checkRequired(kind protoerr.Kind) error {
	for _, fd := range m.desc.RequiredFields() {
		if !m.HasField(fd) {
			return &protoerr.Error{
				Kind:   kind,
				Path:   []string{fd.Name()},
				Detail: "missing required field of " + m.desc.FullName(),
			}
		}
	}

	for _, fd := range m.desc.FieldsByNumber() {
		if fd.Type() != schema.TypeMessage {
			continue
		}
		if fd.IsRepeated() {
			for i, v := range m.lists[fd.Number()] {
				if err := v.msg.checkRequired(kind); err != nil {
					return protoerr.WithField(protoerr.WithField(err, indexName(i)), fd.Name())
				}
			}
			continue
		}
		if v, ok := m.values[fd.Number()]; ok {
			if err := v.msg.checkRequired(kind); err != nil {
				return protoerr.WithField(err, fd.Name())
			}
		}
	}
	return nil
}

func (m *Message) encode(e *wire.Encoder) {
	for _, fd := range m.desc.FieldsByNumber() {
		if !fd.IsRepeated() {
			if v, ok := m.values[fd.Number()]; ok {
				e.EncodeTag(fd.Number(), fd.Type().WireType())
				encodeValue(e, fd.Type(), v)
			}
			continue
		}

		list := m.lists[fd.Number()]
		if len(list) == 0 {
			continue
		}
		if fd.Packed() {
			packed := wire.NewEncoder()
			for _, v := range list {
				encodeValue(packed, fd.Type(), v)
			}
			e.EncodeTag(fd.Number(), wire.WireBytes)
			e.EncodeBytes(packed.Bytes())
			continue
		}
		for _, v := range list {
			e.EncodeTag(fd.Number(), fd.Type().WireType())
			encodeValue(e, fd.Type(), v)
		}
	}
	e.EncodeRaw(m.unknown)
}

// encodeValue writes the value without its tag.
func encodeValue(e *wire.Encoder, typ schema.Type, v Value) {
	switch typ {
	case schema.TypeInt32, schema.TypeInt64, schema.TypeEnum:
		e.EncodeInt64(v.Int())
	case schema.TypeUint32, schema.TypeUint64:
		e.EncodeVarint(v.Uint())
	case schema.TypeSint32:
		e.EncodeSint32(int32(v.Int()))
	case schema.TypeSint64:
		e.EncodeSint64(v.Int())
	case schema.TypeBool:
		e.EncodeBool(v.Bool())
	case schema.TypeFixed32:
		e.EncodeFixed32(uint32(v.Uint()))
	case schema.TypeFixed64:
		e.EncodeFixed64(v.Uint())
	case schema.TypeSfixed32:
		e.EncodeFixed32(uint32(int32(v.Int())))
	case schema.TypeSfixed64:
		e.EncodeFixed64(uint64(v.Int()))
	case schema.TypeFloat:
		e.EncodeFloat32(float32(v.Float()))
	case schema.TypeDouble:
		e.EncodeFloat64(v.Float())
	case schema.TypeString:
		e.EncodeString(v.String())
	case schema.TypeBytes:
		e.EncodeBytes(v.Bytes())
	case schema.TypeMessage:
		child := wire.NewEncoder()
		v.Message().encode(child)
		e.EncodeBytes(child.Bytes())
	}
}
