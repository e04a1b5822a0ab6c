package ingest

import "strings"

// slug normalizes a display name into an identifier segment: lowercased,
// runs of non-alphanumerics collapsed to single underscores. No truncation,
// so distinct names never collapse onto the same identifier.
func slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// deriveAccountID builds a deterministic identifier for nodes the source did
// not assign one. Scoping by the enclosing category keeps same-named items in
// different categories distinct, and re-ingesting the same source always
// yields the same identifier.
func deriveAccountID(category, name string) string {
	c := slug(category)
	n := slug(name)
	if c == "" {
		return n
	}
	return c + ":" + n
}
