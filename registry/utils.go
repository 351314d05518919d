package registry

import (
	"errors"
	"strings"
)

/*
ResolveName returns the fully qualified name a type reference points to,
following protobuf scoping: a leading dot means the name is already fully
qualified; otherwise the innermost scope is tried first, then each enclosing
scope up to the package, and finally the name as written.
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func ResolveName(typeName, scope string, exists func(string) bool) (string, bool) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, exists)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, scope, exists); ok {
		return result, true
	}
	//  the entity may be referenced from the root, e.g. via its package name
	if exists(typeName) {
		return typeName, true
	}
	return "", false
}

// splitNameAndCheck splits the scope and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, scope string, exists func(string) bool) (string, bool) {
	if scope == "" {
		return "", false
	}
	scopeSplit := strings.Split(scope, ".")

	for len(scopeSplit) > 0 && scopeSplit[0] != "" {
		entityName := strings.Join(scopeSplit, ".") + "." + typeName
		if exists(entityName) {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		scopeSplit = scopeSplit[:len(scopeSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, exists func(string) bool) (string, bool) {
	typeName = strings.TrimPrefix(typeName, ".")
	if exists(typeName) {
		return typeName, true
	}
	return "", false
}

var (
	errNotFound  = errors.New("not found")
	errAmbiguous = errors.New("ambiguous name")
)

// suffixMatch finds the single key equal to name or ending with "."+name.
func suffixMatch[V any](name string, entries map[string]V) (string, error) {
	var match string
	for fullName := range entries {
		if fullName == name || strings.HasSuffix(fullName, "."+name) {
			if match != "" {
				return "", errAmbiguous
			}
			match = fullName
		}
	}
	if match == "" {
		return "", errNotFound
	}
	return match, nil
}
