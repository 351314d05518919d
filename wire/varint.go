package wire

import (
	"io"
)

// maxVarintLen is the longest encoding of a 64-bit value.
const maxVarintLen = 10

// AppendVarint appends v as a base-128 varint to b.
func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// ConsumeVarint parses a varint from the start of b and returns the value and
// the number of bytes read.
func ConsumeVarint(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint

	for i := 0; i < maxVarintLen; i++ {
		if i >= len(b) {
			return 0, 0, decodeErr(ErrTruncated, "reading varint")
		}

		c := b[i]
		// The tenth byte may only carry the single remaining bit.
		if i == maxVarintLen-1 && c > 1 {
			return 0, 0, decodeErr(ErrVarintOverflow, "reading varint")
		}

		result |= uint64(c&0x7F) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}

	return 0, 0, decodeErr(ErrVarintTooLong, "reading varint")
}

// ReadVarint reads one varint from a byte stream.
func ReadVarint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint

	for i := 0; i < maxVarintLen; i++ {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = ErrTruncated
			}
			return 0, decodeErr(err, "reading varint")
		}
		if i == maxVarintLen-1 && c > 1 {
			return 0, decodeErr(ErrVarintOverflow, "reading varint")
		}

		result |= uint64(c&0x7F) << shift
		if c&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}

	return 0, decodeErr(ErrVarintTooLong, "reading varint")
}

// DECODER METHODS

// DecodeVarint decodes a varint from the current position
func (d *Decoder) DecodeVarint() (uint64, error) {
	// Single-byte fast path; most tags and small values land here.
	if d.pos < len(d.buf) && d.buf[d.pos] < 0x80 {
		v := uint64(d.buf[d.pos])
		d.pos++
		return v, nil
	}

	v, n, err := ConsumeVarint(d.buf[d.pos:])
	if err != nil {
		return 0, err
	}
	d.pos += n
	return v, nil
}

// DecodeSint32 decodes a zigzag-encoded signed varint as int32
func (d *Decoder) DecodeSint32() (int32, error) {
	v, err := d.DecodeVarint()
	if err != nil {
		return 0, err
	}
	return DecodeZigZag32(v), nil
}

// DecodeSint64 decodes a zigzag-encoded signed varint as int64
func (d *Decoder) DecodeSint64() (int64, error) {
	v, err := d.DecodeVarint()
	if err != nil {
		return 0, err
	}
	return DecodeZigZag64(v), nil
}

// ENCODER METHODS

// EncodeVarint encodes a uint64 as varint
func (e *Encoder) EncodeVarint(v uint64) {
	e.buf = AppendVarint(e.buf, v)
}

// EncodeInt64 encodes a signed value as a plain varint. Negative values take
// ten bytes, int32 included (sign extension).
func (e *Encoder) EncodeInt64(v int64) {
	e.buf = AppendVarint(e.buf, uint64(v))
}

// EncodeSint32 encodes a signed int32 with zigzag encoding
func (e *Encoder) EncodeSint32(v int32) {
	e.buf = AppendVarint(e.buf, EncodeZigZag32(v))
}

// EncodeSint64 encodes a signed int64 with zigzag encoding
func (e *Encoder) EncodeSint64(v int64) {
	e.buf = AppendVarint(e.buf, EncodeZigZag64(v))
}

// EncodeBool encodes a bool as varint
func (e *Encoder) EncodeBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// UTILITY FUNCTIONS

// DecodeZigZag32 decodes a zigzag-encoded 32-bit integer
func DecodeZigZag32(encoded uint64) int32 {
	return int32((uint32(encoded) >> 1) ^ uint32(-int32(encoded&1)))
}

// DecodeZigZag64 decodes a zigzag-encoded 64-bit integer
func DecodeZigZag64(encoded uint64) int64 {
	return int64((encoded >> 1) ^ uint64(-int64(encoded&1)))
}

// EncodeZigZag32 encodes a signed 32-bit integer using zigzag encoding
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32(v>>31))
}

// EncodeZigZag64 encodes a signed 64-bit integer using zigzag encoding
func EncodeZigZag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// VarintSize returns the number of bytes needed to encode the given varint
func VarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}
