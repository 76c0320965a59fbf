// Package normalize holds small canonicalization helpers applied before
// anything is persisted or compared.
package normalize

import "strings"

// Email lowercases and trims an email address. Email uniqueness and all
// email lookups operate on this form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name collapses surrounding whitespace on a display name.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Code uppercases and trims an invitation code so lookups are forgiving
// about how the guardian typed it.
func Code(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
