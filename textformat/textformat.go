// Package textformat renders message instances in a human readable text form
// and parses that form back.
//
// The form is one field per line:
//
//	id: 12
//	name: "bob"
//	kind: KIND_A
//	child {
//	  payload: "x"
//	}
//
// Repeated fields repeat their line, nested messages are brace blocks, strings
// and bytes are double quoted with Go escapes and enums are written by name.
// Lines starting with # or // are comments.
package textformat

import (
	"bytes"
	"io"

	"github.com/anirudhraja/protokit/message"
	"github.com/anirudhraja/protokit/protoerr"
)

// Marshal renders the set fields of m in field number order. Unknown fields
// are not rendered.
func Marshal(m *message.Message) (string, error) {
	var b bytes.Buffer
	if err := MarshalWriter(m, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MarshalWriter renders m to w.
func MarshalWriter(m *message.Message, w io.Writer) error {
	if m == nil {
		return protoerr.Argumentf("cannot marshal a nil message")
	}
	return newWriter(w).message(m, 0)
}

// unmarshalOptions provides options for reading text into messages.
type unmarshalOptions struct {
	ignoreUnknown bool
}

// UnmarshalOption provides options for Unmarshal.
type UnmarshalOption func(unmarshalOptions) unmarshalOptions

// WithIgnoreUnknown skips fields the message does not define, including any
// nested block they open, instead of failing.
func WithIgnoreUnknown() UnmarshalOption {
	return func(u unmarshalOptions) unmarshalOptions {
		u.ignoreUnknown = true
		return u
	}
}

// Unmarshal parses text into m. Fields already set in m are kept unless the
// text sets them again; a repeated field's lines are appended. Values go
// through message.Message Set and Append, so their type and range errors are
// returned as is. Malformed text and, unless WithIgnoreUnknown, unknown field
// names are structural errors carrying the line number.
func Unmarshal(text string, m *message.Message, options ...UnmarshalOption) error {
	if m == nil {
		return protoerr.Argumentf("cannot unmarshal into a nil message")
	}
	opts := unmarshalOptions{}
	for _, o := range options {
		opts = o(opts)
	}
	return parse(text, m, opts)
}

// UnmarshalReader reads all of r and parses it into m.
func UnmarshalReader(r io.Reader, m *message.Message, options ...UnmarshalOption) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	return Unmarshal(buf.String(), m, options...)
}
