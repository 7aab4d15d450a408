package taxonomy

import "strings"

// Slugify converts a display name or path segment into its canonical slug
// form: lower-case, alphanumeric runs joined by single hyphens, no leading
// or trailing hyphens. The same function is used for normalizing incoming
// path segments and for deriving fallback slugs from procedure names, so
// both sides of a comparison always agree.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))

	lastHyphen := true // suppress a leading hyphen
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
