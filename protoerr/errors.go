package protoerr

import (
	"fmt"
	"strings"
)

// Kind categorizes the error.
type Kind string

const (
	KindStructural Kind = "structural"
	KindType       Kind = "type"
	KindArgument   Kind = "argument"
	KindEncode     Kind = "encode"
	KindDecode     Kind = "decode"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrStructural = &Error{Kind: KindStructural}
	ErrType       = &Error{Kind: KindType}
	ErrArgument   = &Error{Kind: KindArgument}
	ErrEncode     = &Error{Kind: KindEncode}
	ErrDecode     = &Error{Kind: KindDecode}
)

// Error is the structured error used throughout the module.
type Error struct {
	Kind   Kind
	Path   []string // e.g. ["order", "items", "sku"]
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Kind))
	b.WriteString(" error")

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func newf(kind Kind, format string, args ...any) *Error {
	if len(args) == 0 {
		return &Error{Kind: kind, Detail: format}
	}
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Structuralf creates a structural error.
func Structuralf(format string, args ...any) *Error { return newf(KindStructural, format, args...) }

// Typef creates a type error.
func Typef(format string, args ...any) *Error { return newf(KindType, format, args...) }

// Argumentf creates an argument error.
func Argumentf(format string, args ...any) *Error { return newf(KindArgument, format, args...) }

// Encodef creates an encode error.
func Encodef(format string, args ...any) *Error { return newf(KindEncode, format, args...) }

// Decodef creates a decode error.
func Decodef(format string, args ...any) *Error { return newf(KindDecode, format, args...) }

// Wrap attaches kind and detail to cause. A cause that already is an *Error of
// the same kind is returned unchanged so paths are not duplicated.
func Wrap(kind Kind, cause error, detail string) error {
	if cause == nil {
		return nil
	}
	if pe, ok := cause.(*Error); ok && pe.Kind == kind {
		return pe
	}
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// WithField prefixes the error path with a field name. Non-*Error values are
// returned unchanged.
func WithField(err error, field string) error {
	if err == nil {
		return nil
	}

	pe, ok := err.(*Error)
	if !ok {
		return err
	}

	return &Error{
		Kind:   pe.Kind,
		Path:   append([]string{field}, pe.Path...),
		Detail: pe.Detail,
		Cause:  pe.Cause,
	}
}
