// Package normalize holds input normalization helpers applied before
// anything is persisted. Stores call these so every write path agrees on
// the canonical form.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Title trims surrounding whitespace but preserves case.
func Title(s string) string {
	return strings.TrimSpace(s)
}
