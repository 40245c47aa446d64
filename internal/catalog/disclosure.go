package catalog

import "strings"

// Disclosure letters: V = first name initial, F = last name initial,
// M = birth month, D = birth day.
const (
	discloseFirstInitial = "V"
	discloseLastInitial  = "F"
	discloseBirthMonth   = "M"
	discloseBirthDay     = "D"
)

// Disclosed describes which identifying attributes may appear on a domestic
// credential for one holder.
type Disclosed struct {
	FirstInitial bool
	LastInitial  bool
	BirthMonth   bool
	BirthDay     bool
}

// AllowedDisclosure looks up the strike policy for an initials pair. The
// policy suppresses uniquely identifying attribute combinations; an initials
// pair that is absent from the allow-list discloses nothing.
func (c *Catalog) AllowedDisclosure(firstInitial, lastInitial string) Disclosed {
	letters, ok := c.Disclosure[firstInitial+lastInitial]
	if !ok {
		return Disclosed{}
	}
	return Disclosed{
		FirstInitial: strings.Contains(letters, discloseFirstInitial),
		LastInitial:  strings.Contains(letters, discloseLastInitial),
		BirthMonth:   strings.Contains(letters, discloseBirthMonth),
		BirthDay:     strings.Contains(letters, discloseBirthDay),
	}
}
