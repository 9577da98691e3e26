package normalize

import (
	"regexp"
	"strings"
)

var headerSeparators = regexp.MustCompile(`[\s\-]+`)

// NormalizeHeader lowercases and trims a column name, drops surrounding
// quotes and a byte order mark, and folds runs of spaces and dashes into a
// single underscore. "Client IP" and "c-ip" become "client_ip" and "c_ip".
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	s = strings.ToLower(strings.TrimSpace(s))
	return headerSeparators.ReplaceAllString(s, "_")
}
