package wire

// Encoder appends wire-format values to a growing buffer. The zero value is
// ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new wire format encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// NewEncoderSize creates an encoder with capacity preallocated.
func NewEncoderSize(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the encoder buffer
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// EncodeTag writes the varint tag for a field.
func (e *Encoder) EncodeTag(num FieldNumber, wt WireType) {
	e.buf = AppendVarint(e.buf, uint64(MakeTag(num, wt)))
}

// EncodeRaw appends already-encoded bytes verbatim.
func (e *Encoder) EncodeRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// SizeTag returns the encoded size of the tag for num.
func SizeTag(num FieldNumber) int {
	return VarintSize(uint64(MakeTag(num, 0)))
}
