// Package protoerr provides the structured error type shared by the codec, the
// descriptor model, the message runtime and the schema compiler.
//
// Errors are categorized by Kind:
//
//	KindStructural  schema-definition problems (duplicates, unknown types, sealed descriptors, syntax)
//	KindType        a value whose Go type does not fit the field's declared type
//	KindArgument    a value of the right type but outside the allowed set (enum values, integer range)
//	KindEncode      a message that cannot be serialized (missing required fields)
//	KindDecode      malformed wire bytes or a payload that violates the schema
//
// Every Kind has a sentinel, so callers can branch with errors.Is:
//
//	if errors.Is(err, protoerr.ErrDecode) { ... }
//
// and recover the field path with errors.As:
//
//	var pe *protoerr.Error
//	if errors.As(err, &pe) {
//		fmt.Println(strings.Join(pe.Path, "."))
//	}
package protoerr
