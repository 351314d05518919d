// Package compiler turns proto2 schema text into sealed descriptors and
// installs them in a registry.
//
// Parsing is delegated to go-protoparser. Building is done in two passes over
// the parse tree: the first declares every message and enum so that forward
// and self references resolve, the second defines fields, reserved ranges and
// defaults. A compilation either installs every type of the file or none.
//
//	reg := registry.New()
//	c := compiler.New(reg)
//	file, err := c.Compile("person.proto", src)
package compiler
