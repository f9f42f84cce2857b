package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Username normalizes a username the same way so lookups stay
// case-insensitive regardless of how the caller typed it.
func Username(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
