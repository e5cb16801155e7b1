package journal

import (
	"strings"
	"unicode"
)

// SanitizeFilename makes a model signature safe to use as a directory name.
// Colons become dashes, spaces become underscores, and characters that are
// reserved on common filesystems or are control characters are dropped.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == ':':
			b.WriteByte('-')
		case r == ' ':
			b.WriteByte('_')
		case r == '/' || r == '\\':
			b.WriteByte('_')
		case strings.ContainsRune(`"<>|*?`, r):
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "_"
	}
	return out
}
