package events

import (
	"certo/internal/holder"
	dErrors "certo/pkg/domain-errors"
)

// fingerprint is the identity tuple every provider result must agree on.
type fingerprint struct {
	birthMonth   int
	birthDay     int
	firstInitial string
	lastInitial  string
}

func fingerprintOf(h holder.Holder) fingerprint {
	return fingerprint{
		birthMonth:   h.BirthDate.Month,
		birthDay:     h.BirthDate.Day,
		firstInitial: h.FirstNameInitial(),
		lastInitial:  h.LastNameInitial(),
	}
}

// Merge combines multi-provider results into one event list for a single
// holder. It enforces the single-holder invariant and applies the specimen
// policy: a submission that is specimen throughout is kept whole (production
// smoke tests), otherwise specimen events are dropped.
func Merge(results []ProviderResult) (Events, error) {
	if len(results) == 0 {
		return nil, nil
	}

	want := fingerprintOf(results[0].Holder)
	for _, r := range results[1:] {
		if fingerprintOf(r.Holder) != want {
			return nil, dErrors.New(dErrors.CodeMixedHolders, "provider results identify different holders")
		}
	}

	var merged Events
	for _, r := range results {
		merged = append(merged, r.Events...)
	}

	return dropSpecimens(merged), nil
}

func dropSpecimens(evs Events) Events {
	allSpecimen := len(evs) > 0
	for _, e := range evs {
		if !e.IsSpecimen {
			allSpecimen = false
			break
		}
	}
	if allSpecimen {
		return evs
	}

	kept := evs[:0]
	for _, e := range evs {
		if !e.IsSpecimen {
			kept = append(kept, e)
		}
	}
	return kept
}
