// Package httpheader validates HTTP header field names referenced from
// configuration, so typos fail at startup instead of producing silently
// empty values per request.
package httpheader

import (
	"fmt"
	"strings"
)

// ValidateName checks that name is a legal header field name token.
func ValidateName(rawName string) error {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return fmt.Errorf("header name must not be empty")
	}
	if rawName != name {
		return fmt.Errorf("header %q has leading or trailing whitespace", rawName)
	}
	if !validFieldName(name) {
		return fmt.Errorf("header %q has invalid field name", name)
	}
	return nil
}

func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isTokenByte(name[i]) {
			return false
		}
	}
	return true
}

func isTokenByte(b byte) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	if b >= 'a' && b <= 'z' {
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	default:
		return false
	}
}
