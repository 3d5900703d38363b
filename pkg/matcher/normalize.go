package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var honorific = regexp.MustCompile(`^(mr|ms|mrs|miss|dr|sir)\.?\s+`)

// Normalize reduces a name to lowercase ASCII letters separated by single
// spaces, with accents folded and one leading honorific removed.
func Normalize(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r == ' ', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	s := strings.TrimSpace(b.String())
	s = honorific.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

// FirstLast returns the first and last tokens of a normalized name.
func FirstLast(normalized string) (first, last string) {
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return "", ""
	}
	return tokens[0], tokens[len(tokens)-1]
}
