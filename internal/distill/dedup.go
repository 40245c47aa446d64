package distill

import (
	"time"

	"certo/internal/events"
)

// deduplicate merges events of the same variant whose anchor dates fall
// within the margin and whose distinguishing attributes do not conflict.
// Merging keeps the earliest anchor date and fills empty fields from the
// other side. Cross-variant pairs are never compared.
func (p *Pipeline) deduplicate(evs events.Events) events.Events {
	var out events.Events
	for _, e := range evs {
		merged := false
		for i := range out {
			if out[i].Type != e.Type {
				continue
			}
			if !p.mergeEquivalent(out[i], e) {
				continue
			}
			out[i] = mergeEvents(out[i], e)
			merged = true
			break
		}
		if !merged {
			out = append(out, e)
		}
	}
	return out
}

func (p *Pipeline) mergeEquivalent(a, b events.Event) bool {
	if !withinMargin(a.AnchorDate(), b.AnchorDate(), p.marginDays) {
		return false
	}
	switch a.Type {
	case events.TypeVaccination:
		return vaccinationAttrsAgree(a.Vaccination, b.Vaccination)
	case events.TypeNegativeTest:
		return testAttrsEqual(a.Negative, b.Negative)
	case events.TypePositiveTest:
		return testAttrsEqual(a.Positive, b.Positive)
	case events.TypeRecovery:
		r1, r2 := a.Recovery, b.Recovery
		return r1.ValidFrom.Equal(r2.ValidFrom.Time) &&
			r1.ValidUntil.Equal(r2.ValidUntil.Time) &&
			r1.Country == r2.Country
	}
	return false
}

func withinMargin(a, b time.Time, marginDays int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(marginDays)*24*time.Hour
}

// vaccinationAttrsAgree: an attribute pair conflicts only when both sides are
// set and differ; an empty side always agrees.
func vaccinationAttrsAgree(a, b *events.Vaccination) bool {
	agree := func(x, y string) bool {
		return x == "" || y == "" || x == y
	}
	return agree(a.HPKCode, b.HPKCode) &&
		agree(a.Type, b.Type) &&
		agree(a.Manufacturer, b.Manufacturer) &&
		agree(a.Brand, b.Brand)
}

func testAttrsEqual(a, b *events.TestResult) bool {
	return a.Facility == b.Facility &&
		a.Type == b.Type &&
		a.Name == b.Name &&
		a.Manufacturer == b.Manufacturer &&
		a.Country == b.Country
}

func mergeEvents(a, b events.Event) events.Event {
	// The merged event keeps the identity of the earliest anchor date.
	first, second := a, b
	if b.AnchorDate().Before(a.AnchorDate()) {
		first, second = b, a
	}

	switch first.Type {
	case events.TypeVaccination:
		v := *first.Vaccination
		o := second.Vaccination
		if v.HPKCode == "" {
			v.HPKCode = o.HPKCode
		}
		if v.Type == "" {
			v.Type = o.Type
		}
		if v.Brand == "" {
			v.Brand = o.Brand
		}
		if v.Manufacturer == "" {
			v.Manufacturer = o.Manufacturer
		}
		if v.Country == "" {
			v.Country = o.Country
		}
		v.CompletedByMedicalStatement = v.CompletedByMedicalStatement || o.CompletedByMedicalStatement
		v.CompletedByPersonalStatement = v.CompletedByPersonalStatement || o.CompletedByPersonalStatement
		v.DoseNumber = maxDose(v.DoseNumber, o.DoseNumber)
		v.TotalDoses = minTotal(v.TotalDoses, o.TotalDoses)
		first.Vaccination = &v
	default:
		// Tests and recoveries only merge when their distinguishing
		// attributes match exactly, so the earliest event already carries
		// everything the merge could contribute.
	}
	return first
}

// maxDose floors the merged dose number at 1.
func maxDose(a, b int) int {
	m := a
	if b > m {
		m = b
	}
	if m < 1 {
		m = 1
	}
	return m
}

// minTotal takes the smaller known total and caps it at 2; an unset side
// defers to the other.
func minTotal(a, b int) int {
	m := a
	switch {
	case m == 0:
		m = b
	case b != 0 && b < m:
		m = b
	}
	if m > 2 {
		m = 2
	}
	return m
}
