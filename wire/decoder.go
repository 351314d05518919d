package wire

// Decoder reads wire-format values from a byte slice. It never modifies the
// slice; DecodeRawBytes and SkipField return sub-slices of it.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a new wire format decoder
func NewDecoder(data []byte) *Decoder {
	return &Decoder{buf: data}
}

// EOF reports whether the whole buffer has been consumed.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Pos returns the current read offset.
func (d *Decoder) Pos() int {
	return d.pos
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// DecodeTag reads a tag and validates both halves of it.
func (d *Decoder) DecodeTag() (FieldNumber, WireType, error) {
	v, err := d.DecodeVarint()
	if err != nil {
		return 0, 0, err
	}

	if v>>3 > uint64(MaxFieldNumber) {
		return 0, 0, decodeErr(ErrInvalidFieldNumber, "reading tag")
	}
	num, wt := ParseTag(Tag(v))
	if num < MinFieldNumber {
		return 0, 0, decodeErr(ErrInvalidFieldNumber, "reading tag")
	}
	if !wt.Valid() {
		return 0, 0, decodeErr(ErrInvalidWireType, "reading tag")
	}
	return num, wt, nil
}

// SkipValue consumes one value of the given wire type and returns the bytes
// it occupied.
func (d *Decoder) SkipValue(wt WireType) ([]byte, error) {
	start := d.pos

	switch wt {
	case WireVarint:
		if _, err := d.DecodeVarint(); err != nil {
			return nil, err
		}
	case WireFixed64:
		if d.pos+8 > len(d.buf) {
			return nil, decodeErr(ErrTruncated, "skipping fixed64")
		}
		d.pos += 8
	case WireBytes:
		if _, err := d.DecodeRawBytes(); err != nil {
			return nil, err
		}
	case WireFixed32:
		if d.pos+4 > len(d.buf) {
			return nil, decodeErr(ErrTruncated, "skipping fixed32")
		}
		d.pos += 4
	default:
		return nil, decodeErr(ErrInvalidWireType, "skipping value")
	}

	return d.buf[start:d.pos:d.pos], nil
}

// DecodeField reads one complete field without interpreting it. The Raw slice
// covers the tag and the value, so appending it to an encoder reproduces the
// field byte for byte.
func (d *Decoder) DecodeField() (RawField, error) {
	start := d.pos

	num, wt, err := d.DecodeTag()
	if err != nil {
		return RawField{}, err
	}
	if _, err := d.SkipValue(wt); err != nil {
		return RawField{}, err
	}

	return RawField{
		Number:   num,
		WireType: wt,
		Raw:      d.buf[start:d.pos:d.pos],
	}, nil
}

// Since returns the bytes consumed from offset start up to the current
// position.
func (d *Decoder) Since(start int) []byte {
	return d.buf[start:d.pos:d.pos]
}
