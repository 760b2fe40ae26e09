package manifest

import (
	"fmt"
	"strings"
	"unicode"
)

// reservedNamespaces lists global names the runtime binds itself. None of
// them may be the root segment of a project namespace.
var reservedNamespaces = map[string]bool{
	"this":  true,
	"null":  true,
	"true":  true,
	"false": true,
}

// IsReservedNamespace reports whether the root segment of name is a name
// the runtime binds itself. Only the root segment is checked: "app:null"
// is fine because the root is "app".
func IsReservedNamespace(name string) bool {
	parts := SplitNamespace(name)
	return len(parts) > 0 && reservedNamespaces[parts[0]]
}

// SplitNamespace splits a qualified namespace name on ':' or '.'.
func SplitNamespace(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool { return r == ':' || r == '.' })
}

// CheckNamespace validates a qualified namespace name such as "app:model".
func CheckNamespace(name string) error {
	parts := SplitNamespace(name)
	if len(parts) == 0 {
		return fmt.Errorf("empty namespace %q", name)
	}
	if strings.HasPrefix(name, ":") || strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ":") || strings.HasSuffix(name, ".") ||
		strings.Contains(name, "::") || strings.Contains(name, "..") {
		return fmt.Errorf("namespace %q has an empty segment", name)
	}
	for _, p := range parts {
		if !isIdentifier(p) {
			return fmt.Errorf("namespace segment %q is not an identifier", p)
		}
	}
	if IsReservedNamespace(name) {
		return fmt.Errorf("namespace %q uses reserved name %q", name, parts[0])
	}
	return nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}
