package utils

import "strings"

// NormalizeKey derives a canonical identifier-safe key from a display string.
// The result is lowercase; any run of characters outside [a-z0-9] collapses to
// a single hyphen; leading and trailing hyphens are stripped. Empty input
// yields an empty key. The same rule is used to dedupe authors and categories
// by name, so it must stay stable.
func NormalizeKey(name string) string {
	t := strings.ToLower(name)
	var b strings.Builder
	lastDash := false
	for _, r := range t {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else {
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
