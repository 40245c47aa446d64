package holder

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Holder is the person a certificate is issued to. Names are provider-supplied
// free text; all derived identifiers go through transliteration first so
// diacritics never change an initial.
type Holder struct {
	FirstName string
	LastName  string
	BirthDate Birthdate
}

// FirstNameInitial returns the first A-Z character of the transliterated
// uppercase first name, empty when there is none.
func (h Holder) FirstNameInitial() string {
	return initial(h.FirstName)
}

// LastNameInitial returns the first A-Z character of the transliterated
// uppercase last name. Leading quote infixes such as 's- and 't are skipped,
// so 's-Gravenhage yields G.
func (h Holder) LastNameInitial() string {
	return initial(h.LastName)
}

// EUNormalizedGivenName is the ICAO-style given name for European
// certificates: transliterated ASCII uppercase with spaces replaced by <.
func (h Holder) EUNormalizedGivenName() string {
	return euNormalize(h.FirstName)
}

// EUNormalizedFamilyName is the ICAO-style family name for European certificates.
func (h Holder) EUNormalizedFamilyName() string {
	return euNormalize(h.LastName)
}

// replacements covers letters that NFD decomposition does not reduce to ASCII.
var replacements = strings.NewReplacer(
	"Ø", "O", "ø", "o",
	"Æ", "AE", "æ", "ae",
	"ß", "SS",
	"Đ", "D", "đ", "d",
	"Ð", "D", "ð", "d",
	"Þ", "TH", "þ", "th",
	"Ł", "L", "ł", "l",
	"Œ", "OE", "œ", "oe",
	"Ĳ", "IJ", "ĳ", "ij",
)

var markStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// transliterate reduces a name to ASCII uppercase. Characters that survive
// neither decomposition nor the replacement table are dropped, except for the
// apostrophe and separators which the initial rules need.
func transliterate(s string) string {
	s = replacements.Replace(s)
	stripped, _, err := transform.String(markStripper, s)
	if err == nil {
		s = stripped
	}
	s = strings.ToUpper(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r == '\'' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func initial(name string) string {
	s := transliterate(name)
	// A leading 'x- or 'x infix ('s-Gravenhage, 't Hoen) is not the name proper.
	if strings.HasPrefix(s, "'") {
		if i := strings.IndexAny(s, "- "); i >= 0 {
			s = s[i+1:]
		}
	}
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return string(r)
		}
	}
	return ""
}

func euNormalize(name string) string {
	s := transliterate(name)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('<')
		}
	}
	return b.String()
}
