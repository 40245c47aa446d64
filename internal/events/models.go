// Package events models provider-supplied vaccination, test and recovery
// events and their ingest from signed provider payloads.
package events

import (
	"sort"
	"time"

	"certo/internal/holder"
)

// Type tags the event variant.
type Type string

const (
	TypeVaccination  Type = "vaccination"
	TypeNegativeTest Type = "negativetest"
	TypePositiveTest Type = "positivetest"
	TypeRecovery     Type = "recovery"
)

// Day is a calendar date with day precision, marshalled as YYYY-MM-DD.
type Day struct {
	time.Time
}

const dayFormat = "2006-01-02"

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dayFormat) + `"`), nil
}

func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := time.Parse(dayFormat, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// NewDay builds a Day from year, month, day in UTC.
func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Vaccination is one administered dose.
type Vaccination struct {
	Date         Day    `json:"date"`
	HPKCode      string `json:"hpkCode,omitempty"`
	Type         string `json:"type,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	DoseNumber   int    `json:"doseNumber,omitempty"`
	TotalDoses   int    `json:"totalDoses,omitempty"`

	CompletedByMedicalStatement  bool `json:"completedByMedicalStatement,omitempty"`
	CompletedByPersonalStatement bool `json:"completedByPersonalStatement,omitempty"`

	Country string `json:"country,omitempty"`
}

// TestResult covers both negative and positive tests; the variant pointer on
// the event decides which result field is meaningful.
type TestResult struct {
	SampleDate     time.Time `json:"sampleDate"`
	ResultDate     time.Time `json:"resultDate"`
	NegativeResult bool      `json:"negativeResult,omitempty"`
	PositiveResult bool      `json:"positiveResult,omitempty"`
	Facility       string    `json:"facility"`
	Type           string    `json:"type"`
	Name           string    `json:"name"`
	Manufacturer   string    `json:"manufacturer"`
	Country        string    `json:"country,omitempty"`
}

// Recovery is a certified recovery window.
type Recovery struct {
	SampleDate Day    `json:"sampleDate"`
	ValidFrom  Day    `json:"validFrom"`
	ValidUntil Day    `json:"validUntil"`
	Country    string `json:"country,omitempty"`
}

// Event is the tagged union of provider events. Exactly one variant pointer
// is populated, matching Type. Holder and Provider are attached during ingest
// and never travel on the provider wire format.
type Event struct {
	Type       Type   `json:"type"`
	Unique     string `json:"unique"`
	IsSpecimen bool   `json:"isSpecimen"`

	Vaccination *Vaccination `json:"vaccination,omitempty"`
	Negative    *TestResult  `json:"negativetest,omitempty"`
	Positive    *TestResult  `json:"positivetest,omitempty"`
	Recovery    *Recovery    `json:"recovery,omitempty"`

	Holder   holder.Holder `json:"-"`
	Provider string        `json:"-"`
}

// Valid reports whether the variant payload matches the type tag.
func (e Event) Valid() bool {
	switch e.Type {
	case TypeVaccination:
		return e.Vaccination != nil
	case TypeNegativeTest:
		return e.Negative != nil
	case TypePositiveTest:
		return e.Positive != nil
	case TypeRecovery:
		return e.Recovery != nil
	}
	return false
}

// AnchorDate is the date that orders and deduplicates events of a variant:
// the vaccination date or the sample date.
func (e Event) AnchorDate() time.Time {
	switch e.Type {
	case TypeVaccination:
		return e.Vaccination.Date.Time
	case TypeNegativeTest:
		return e.Negative.SampleDate
	case TypePositiveTest:
		return e.Positive.SampleDate
	case TypeRecovery:
		return e.Recovery.SampleDate.Time
	}
	return time.Time{}
}

// Events is a holder's combined event list.
type Events []Event

// Vaccinations returns the vaccination subsequence sorted by date ascending.
func (evs Events) Vaccinations() Events { return evs.OfType(TypeVaccination) }

// NegativeTests returns the negative test subsequence sorted by sample date ascending.
func (evs Events) NegativeTests() Events { return evs.OfType(TypeNegativeTest) }

// PositiveTests returns the positive test subsequence sorted by sample date ascending.
func (evs Events) PositiveTests() Events { return evs.OfType(TypePositiveTest) }

// Recoveries returns the recovery subsequence sorted by sample date ascending.
func (evs Events) Recoveries() Events { return evs.OfType(TypeRecovery) }

// OfType returns the subsequence of one variant sorted by anchor date ascending.
func (evs Events) OfType(t Type) Events {
	var out Events
	for _, e := range evs {
		if e.Type == t {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnchorDate().Before(out[j].AnchorDate())
	})
	return out
}
