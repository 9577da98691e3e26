package normalize

import "strings"

// NormalizeMethod trims and uppercases an HTTP method token.
// Returns "" if nothing is left.
func NormalizeMethod(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
