package pantry

import "strings"

// NormalizedKey is the matching form of an item name. It is never shown to
// users and never stored as an item's identity.
type NormalizedKey string

// Normalize lowercases name, trims it, collapses internal whitespace and
// applies naive English depluralization: a trailing "ies" becomes "y",
// otherwise a single trailing "s" is dropped.
//
// An "s" that follows another "s" or a space is kept ("glass", "vitamin s"),
// and a lone "s" is kept. Without those exceptions Normalize would not be
// idempotent ("bass" -> "bas" -> "ba").
func Normalize(name string) NormalizedKey {
	s := strings.Join(strings.Fields(strings.ToLower(name)), " ")

	switch {
	case strings.HasSuffix(s, "ies"):
		s = strings.TrimSuffix(s, "ies") + "y"
	case len(s) >= 2 && s[len(s)-1] == 's':
		if prev := s[len(s)-2]; prev != 's' && prev != ' ' {
			s = s[:len(s)-1]
		}
	}

	return NormalizedKey(s)
}
