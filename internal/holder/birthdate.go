package holder

import (
	"fmt"
	"regexp"
	"strconv"
)

// SentinelYear marks holders upgraded from the v2 provider protocol, which
// carries no birth year. Events with this year are excluded from European
// issuance.
const SentinelYear = 1883

// Birthdate is a partial ISO date: always a year, optionally a month and a
// day. Unknown components are zero. Providers may redact either component
// independently, so a known day with an unknown month is representable.
type Birthdate struct {
	Year  int
	Month int
	Day   int
}

var birthdatePattern = regexp.MustCompile(`^(\d{4})-(\d{2}|XX)-(\d{2}|XX)$`)

// ParseBirthdate accepts YYYY-MM-DD, YYYY-XX-DD, YYYY-MM-XX and YYYY-XX-XX.
// Any other shape is a format error.
func ParseBirthdate(s string) (Birthdate, error) {
	m := birthdatePattern.FindStringSubmatch(s)
	if m == nil {
		return Birthdate{}, fmt.Errorf("invalid birthdate %q: want YYYY-MM-DD with optional XX parts", s)
	}

	year, _ := strconv.Atoi(m[1])
	if year < 1900 || year > 2099 {
		return Birthdate{}, fmt.Errorf("invalid birthdate %q: year out of range", s)
	}
	bd := Birthdate{Year: year}

	if m[2] != "XX" {
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Birthdate{}, fmt.Errorf("invalid birthdate %q: month out of range", s)
		}
		bd.Month = month
	}
	if m[3] != "XX" {
		day, _ := strconv.Atoi(m[3])
		if day < 1 || day > 31 {
			return Birthdate{}, fmt.Errorf("invalid birthdate %q: day out of range", s)
		}
		bd.Day = day
	}
	return bd, nil
}

// IsSentinel reports whether the birthdate carries the v2-upgrade sentinel year.
func (b Birthdate) IsSentinel() bool {
	return b.Year == SentinelYear
}

// String renders the normalized form with XX placeholders for unknown parts.
func (b Birthdate) String() string {
	month, day := "XX", "XX"
	if b.Month != 0 {
		month = fmt.Sprintf("%02d", b.Month)
	}
	if b.Day != 0 {
		day = fmt.Sprintf("%02d", b.Day)
	}
	return fmt.Sprintf("%04d-%s-%s", b.Year, month, day)
}

// EUFormat renders the dob field of a European certificate: the full date when
// month and day are known, otherwise just the year.
func (b Birthdate) EUFormat() string {
	if b.Month != 0 && b.Day != 0 {
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
	}
	return fmt.Sprintf("%04d", b.Year)
}

// MonthString returns the month as a numeric string, empty when unknown.
// Domestic signer attributes use this form directly.
func (b Birthdate) MonthString() string {
	if b.Month == 0 {
		return ""
	}
	return strconv.Itoa(b.Month)
}

// DayString returns the day as a numeric string, empty when unknown.
func (b Birthdate) DayString() string {
	if b.Day == 0 {
		return ""
	}
	return strconv.Itoa(b.Day)
}

// Equal is structural equality on the (year, month, day) triple.
func (b Birthdate) Equal(other Birthdate) bool {
	return b == other
}
