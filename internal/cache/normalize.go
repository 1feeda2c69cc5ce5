package cache

import (
	"strings"
	"unicode"
)

// Normalize turns a free-form place string into a cache key: lower case, letters and
// digits only, words separated by single spaces. Normalize(Normalize(p)) == Normalize(p).
func Normalize(place string) string {
	var b strings.Builder
	b.Grow(len(place))

	for _, r := range strings.ToLower(place) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
