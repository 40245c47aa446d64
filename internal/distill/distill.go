// Package distill reduces an arbitrary multi-provider event set to the
// canonical set certificates are issued from. The pipeline is deterministic,
// idempotent on its own output, and only ever shrinks the event set; bad
// individual events are filtered with a warning, never an error.
package distill

import (
	"context"
	"log/slog"
	"time"

	"certo/internal/catalog"
	"certo/internal/events"
)

// Pipeline applies the distillation stages in order. It is safe for
// concurrent use; the catalog is immutable after startup.
type Pipeline struct {
	catalog    *catalog.Catalog
	logger     *slog.Logger
	marginDays int
}

// New builds a pipeline. marginDays is the deduplication margin: the maximum
// distance between anchor dates of two events that may still merge.
func New(cat *catalog.Catalog, logger *slog.Logger, marginDays int) *Pipeline {
	return &Pipeline{catalog: cat, logger: logger, marginDays: marginDays}
}

// Distill runs the pipeline for domestic issuance.
func (p *Pipeline) Distill(ctx context.Context, evs events.Events, now time.Time) events.Events {
	return p.run(ctx, evs, now, false)
}

// DistillForEurope runs the pipeline with the additional European rule:
// negative tests of v2-upgraded holders (sentinel birth year) are ineligible.
func (p *Pipeline) DistillForEurope(ctx context.Context, evs events.Events, now time.Time) events.Events {
	return p.run(ctx, evs, now, true)
}

func (p *Pipeline) run(ctx context.Context, evs events.Events, now time.Time, forEurope bool) events.Events {
	evs = p.filterEligible(ctx, evs, forEurope)
	evs = p.enrichFromHPK(ctx, evs)
	evs = p.completeDoses(ctx, evs)
	evs = p.deduplicate(evs)
	evs = p.dropFutureDated(ctx, evs, now)
	evs = p.selectRelevantVaccination(ctx, evs)
	evs = p.keepMostRecentPerVariant(evs)
	evs = p.promoteVaccinationOnPositive(evs)
	return evs
}

// filterEligible drops events that cannot be issued: vaccinations outside the
// product allow-lists, tests with disallowed types, and unknown shapes.
func (p *Pipeline) filterEligible(ctx context.Context, evs events.Events, forEurope bool) events.Events {
	var out events.Events
	for _, e := range evs {
		switch e.Type {
		case events.TypeVaccination:
			v := e.Vaccination
			if !p.catalog.HPKEligible(v.HPKCode) &&
				!p.catalog.ManufacturerEligible(v.Manufacturer) &&
				!p.catalog.MedicinalProductEligible(v.Brand) {
				p.warn(ctx, e, "vaccination outside product allow-lists")
				continue
			}
		case events.TypeNegativeTest:
			if !p.catalog.TestTypeEligible(e.Negative.Type) {
				p.warn(ctx, e, "negative test type not allowed")
				continue
			}
			if forEurope && e.Holder.BirthDate.IsSentinel() {
				// v2-upgraded tests never become European certificates.
				continue
			}
		case events.TypePositiveTest:
			if !p.catalog.TestTypeEligible(e.Positive.Type) {
				p.warn(ctx, e, "positive test type not allowed")
				continue
			}
		case events.TypeRecovery:
			// Recoveries are always eligible.
		default:
			p.warn(ctx, e, "unknown event type")
			continue
		}
		out = append(out, e)
	}
	return out
}

// enrichFromHPK fills empty vaccine type, brand and manufacturer fields from
// the HPK code tables.
func (p *Pipeline) enrichFromHPK(ctx context.Context, evs events.Events) events.Events {
	out := make(events.Events, 0, len(evs))
	for _, e := range evs {
		if e.Type == events.TypeVaccination && e.Vaccination.HPKCode != "" {
			mapping, ok := p.catalog.LookupHPK(e.Vaccination.HPKCode)
			if !ok {
				p.warn(ctx, e, "unknown hpk code")
			} else {
				v := *e.Vaccination
				if v.Type == "" {
					v.Type = mapping.VP
				}
				if v.Brand == "" {
					v.Brand = mapping.MP
				}
				if v.Manufacturer == "" {
					v.Manufacturer = mapping.MA
				}
				e.Vaccination = &v
			}
		}
		out = append(out, e)
	}
	return out
}

// completeDoses defaults the dose number, looks up the total dose requirement
// per medicinal product, and honors completion statements.
func (p *Pipeline) completeDoses(ctx context.Context, evs events.Events) events.Events {
	out := make(events.Events, 0, len(evs))
	for _, e := range evs {
		if e.Type != events.TypeVaccination {
			out = append(out, e)
			continue
		}

		v := *e.Vaccination
		if v.DoseNumber == 0 {
			v.DoseNumber = 1
		}
		if v.TotalDoses == 0 {
			brand := v.Brand
			if brand == "" {
				if mapping, ok := p.catalog.LookupHPK(v.HPKCode); ok {
					brand = mapping.MP
				}
			}
			if required := p.catalog.RequiredDosesFor(brand); required > 0 {
				v.TotalDoses = required
			} else {
				p.warn(ctx, e, "cannot determine total doses")
			}
		}
		if v.CompletedByMedicalStatement || v.CompletedByPersonalStatement {
			v.DoseNumber = 1
			v.TotalDoses = 1
		}
		e.Vaccination = &v
		out = append(out, e)
	}
	return out
}

// dropFutureDated removes vaccinations and negative tests dated after today.
// Positive tests and recoveries may legitimately be future-dated.
func (p *Pipeline) dropFutureDated(ctx context.Context, evs events.Events, now time.Time) events.Events {
	today := dateOnly(now)
	var out events.Events
	for _, e := range evs {
		switch e.Type {
		case events.TypeVaccination:
			if dateOnly(e.Vaccination.Date.Time).After(today) {
				p.warn(ctx, e, "vaccination is future-dated")
				continue
			}
		case events.TypeNegativeTest:
			if dateOnly(e.Negative.SampleDate).After(today) {
				p.warn(ctx, e, "negative test is future-dated")
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// selectRelevantVaccination reduces the vaccination set to at most one event.
func (p *Pipeline) selectRelevantVaccination(ctx context.Context, evs events.Events) events.Events {
	vaccs := evs.Vaccinations()
	if len(vaccs) <= 1 {
		return evs
	}

	chosen, found := pickCompleted(vaccs)
	if !found {
		chosen, found = pickCompletedBucket(vaccs)
	}
	if !found {
		chosen = vaccs[len(vaccs)-1]
		p.warn(ctx, chosen, "no completed vaccination, keeping most recent")
	}

	var out events.Events
	inserted := false
	for _, e := range evs {
		if e.Type != events.TypeVaccination {
			out = append(out, e)
			continue
		}
		if !inserted && e.Unique == chosen.Unique && e.AnchorDate().Equal(chosen.AnchorDate()) {
			out = append(out, chosen)
			inserted = true
		}
	}
	return out
}

// pickCompleted returns the most recent vaccination whose dose number reached
// its total.
func pickCompleted(sorted events.Events) (events.Event, bool) {
	for i := len(sorted) - 1; i >= 0; i-- {
		v := sorted[i].Vaccination
		if v.TotalDoses > 0 && v.DoseNumber >= v.TotalDoses {
			return sorted[i], true
		}
	}
	return events.Event{}, false
}

// pickCompletedBucket groups vaccinations by their total dose requirement and
// declares a bucket completed once it holds at least that many events. The
// emitted event is the bucket's most recent member with its dose number set to
// the requirement, so a pair of 1/2 doses becomes the completing 2/2.
func pickCompletedBucket(sorted events.Events) (events.Event, bool) {
	buckets := make(map[int]events.Events)
	for _, e := range sorted {
		if td := e.Vaccination.TotalDoses; td > 0 {
			buckets[td] = append(buckets[td], e)
		}
	}

	var best events.Event
	found := false
	for required, bucket := range buckets {
		if len(bucket) < required {
			continue
		}
		candidate := bucket[len(bucket)-1]
		v := *candidate.Vaccination
		v.DoseNumber = required
		candidate.Vaccination = &v
		if !found || candidate.AnchorDate().After(best.AnchorDate()) {
			best = candidate
			found = true
		}
	}
	return best, found
}

// keepMostRecentPerVariant reduces tests and recoveries to their most recent
// event each.
func (p *Pipeline) keepMostRecentPerVariant(evs events.Events) events.Events {
	out := evs
	for _, t := range []events.Type{events.TypeNegativeTest, events.TypePositiveTest, events.TypeRecovery} {
		out = keepLatest(out, t)
	}
	return out
}

func keepLatest(evs events.Events, t events.Type) events.Events {
	sorted := evs.OfType(t)
	if len(sorted) <= 1 {
		return evs
	}
	latest := sorted[len(sorted)-1]

	var out events.Events
	inserted := false
	for _, e := range evs {
		if e.Type != t {
			out = append(out, e)
			continue
		}
		if !inserted && e.Unique == latest.Unique && e.AnchorDate().Equal(latest.AnchorDate()) {
			out = append(out, latest)
			inserted = true
		}
	}
	return out
}

// promoteVaccinationOnPositive treats a vaccination that coexists with a
// positive test as a completing dose: infection plus one dose is a full
// schedule.
func (p *Pipeline) promoteVaccinationOnPositive(evs events.Events) events.Events {
	if len(evs.PositiveTests()) == 0 {
		return evs
	}
	vaccs := evs.Vaccinations()
	if len(vaccs) == 0 {
		return evs
	}
	promoted := vaccs[len(vaccs)-1]
	v := *promoted.Vaccination
	v.DoseNumber = 1
	v.TotalDoses = 1
	promoted.Vaccination = &v

	var out events.Events
	inserted := false
	for _, e := range evs {
		if e.Type != events.TypeVaccination {
			out = append(out, e)
			continue
		}
		if !inserted && e.Unique == promoted.Unique && e.AnchorDate().Equal(promoted.AnchorDate()) {
			out = append(out, promoted)
			inserted = true
		}
	}
	return out
}

func (p *Pipeline) warn(ctx context.Context, e events.Event, msg string) {
	if p.logger == nil {
		return
	}
	p.logger.WarnContext(ctx, msg,
		"provider", e.Provider,
		"unique", e.Unique,
		"type", e.Type,
	)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
