package message

import (
	"math"

	"github.com/anirudhraja/protokit/protoerr"
	"github.com/anirudhraja/protokit/schema"
	"github.com/anirudhraja/protokit/wire"
)

// Unmarshal decodes data as an instance of md.
func Unmarshal(md *schema.MessageDescriptor, data []byte) (*Message, error) {
	return defaultUnmarshalOptions().Unmarshal(md, data)
}

// Merge decodes data into m. Singular fields present in data overwrite m's
// values, repeated fields are appended to and unknown fields are added to
// the retained ones.
func (m *Message) Merge(data []byte) error {
	o := defaultUnmarshalOptions()
	o.Merge = true
	return o.UnmarshalInto(m, data)
}

// Unmarshal decodes data as an instance of md with the options.
func (o UnmarshalOptions) Unmarshal(md *schema.MessageDescriptor, data []byte) (*Message, error) {
	m, err := Empty(md)
	if err != nil {
		return nil, err
	}
	if err := o.UnmarshalInto(m, data); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalInto decodes data into m, resetting m first unless o.Merge is
// set. Fields are read until the buffer is exhausted. A field whose wire
// type does not match its declared type, an enum number the enum does not
// define, malformed bytes and, unless AllowPartial, a missing required field
// are decode errors. On error m may hold a partial result.
func (o UnmarshalOptions) UnmarshalInto(m *Message, data []byte) error {
	if !o.Merge {
		m.Reset()
	}
	if err := o.decode(m, data, 0); err != nil {
		return err
	}
	if !o.AllowPartial {
		return m.checkRequired(protoerr.KindDecode)
	}
	return nil
}

func (o UnmarshalOptions) decode(m *Message, data []byte, depth int) error {
	if depth >= o.maxDepth() {
		return protoerr.Decodef("exceeded maximum nesting depth %d", o.maxDepth())
	}

	d := wire.NewDecoder(data)
	for !d.EOF() {
		start := d.Pos()
		num, wt, err := d.DecodeTag()
		if err != nil {
			return err
		}

		fd := m.desc.FieldByNumber(num)
		if fd == nil {
			if _, err := d.SkipValue(wt); err != nil {
				return err
			}
			if !o.DiscardUnknown {
				m.unknown = append(m.unknown, d.Since(start)...)
			}
			continue
		}

		if err := o.decodeField(m, fd, wt, d, depth); err != nil {
			return protoerr.WithField(err, fd.Name())
		}
	}
	return nil
}

func (o UnmarshalOptions) decodeField(m *Message, fd *schema.FieldDescriptor, wt wire.WireType, d *wire.Decoder, depth int) error {
	want := fd.Type().WireType()

	if wt != want {
		// Packed records are accepted for every repeated packable field.
		if fd.IsRepeated() && fd.Type().IsPackable() && wt == wire.WireBytes {
			return o.decodePacked(m, fd, d)
		}
		return protoerr.Decodef("wire type %s does not match %s field", wt, fd.Type())
	}

	v, err := o.decodeValue(fd, d, depth)
	if err != nil {
		return err
	}
	if fd.IsRepeated() {
		m.lists[fd.Number()] = append(m.lists[fd.Number()], v)
	} else {
		m.store(fd, v)
	}
	return nil
}

func (o UnmarshalOptions) decodePacked(m *Message, fd *schema.FieldDescriptor, d *wire.Decoder) error {
	raw, err := d.DecodeRawBytes()
	if err != nil {
		return err
	}
	pd := wire.NewDecoder(raw)
	list := m.lists[fd.Number()]
	for !pd.EOF() {
		v, err := o.decodeValue(fd, pd, 0)
		if err != nil {
			return err
		}
		list = append(list, v)
	}
	if len(list) > 0 {
		m.lists[fd.Number()] = list
	}
	return nil
}

// decodeValue reads one value of fd's type.
func (o UnmarshalOptions) decodeValue(fd *schema.FieldDescriptor, d *wire.Decoder, depth int) (Value, error) {
	switch fd.Type() {
	case schema.TypeInt32:
		v, err := d.DecodeVarint()
		return ValueOfInt32(int32(v)), err
	case schema.TypeInt64:
		v, err := d.DecodeVarint()
		return ValueOfInt64(int64(v)), err
	case schema.TypeUint32:
		v, err := d.DecodeVarint()
		return ValueOfUint32(uint32(v)), err
	case schema.TypeUint64:
		v, err := d.DecodeVarint()
		return ValueOfUint64(v), err
	case schema.TypeSint32:
		v, err := d.DecodeSint32()
		return ValueOfInt32(v), err
	case schema.TypeSint64:
		v, err := d.DecodeSint64()
		return ValueOfInt64(v), err
	case schema.TypeBool:
		v, err := d.DecodeVarint()
		return ValueOfBool(v != 0), err
	case schema.TypeFixed32:
		v, err := d.DecodeFixed32()
		return ValueOfUint32(v), err
	case schema.TypeFixed64:
		v, err := d.DecodeFixed64()
		return ValueOfUint64(v), err
	case schema.TypeSfixed32:
		v, err := d.DecodeFixed32()
		return ValueOfInt32(int32(v)), err
	case schema.TypeSfixed64:
		v, err := d.DecodeFixed64()
		return ValueOfInt64(int64(v)), err
	case schema.TypeFloat:
		v, err := d.DecodeFloat32()
		return ValueOfFloat32(v), err
	case schema.TypeDouble:
		v, err := d.DecodeFloat64()
		return ValueOfFloat64(v), err
	case schema.TypeString:
		v, err := d.DecodeString()
		return ValueOfString(v), err
	case schema.TypeBytes:
		v, err := d.DecodeBytes()
		return ValueOfBytes(v), err
	case schema.TypeEnum:
		v, err := d.DecodeVarint()
		if err != nil {
			return Value{}, err
		}
		if v > math.MaxInt32 {
			return Value{}, protoerr.Decodef("%d is not a value of enum %s", v, fd.Enum().FullName())
		}
		n := int32(v)
		if !fd.Enum().Has(n) {
			return Value{}, protoerr.Decodef("%d is not a value of enum %s", n, fd.Enum().FullName())
		}
		return ValueOfEnum(n), nil
	case schema.TypeMessage:
		raw, err := d.DecodeRawBytes()
		if err != nil {
			return Value{}, err
		}
		child := newMessage(fd.Message())
		if err := o.decode(child, raw, depth+1); err != nil {
			return Value{}, err
		}
		return ValueOfMessage(child), nil
	}
	return Value{}, protoerr.Decodef("unsupported field type %s", fd.Type())
}
