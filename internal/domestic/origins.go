// Package domestic lays out the short-lived strip credentials that compose a
// domestic greencard: rich origins per event, contiguous validity blocks, and
// randomized-overlap strip emission over each block.
package domestic

import (
	"sort"
	"time"

	"certo/internal/events"
	"certo/internal/holder"
)

// Validity fixes the per-variant validity windows of rich origins.
type Validity struct {
	VaccinationDays          int
	PositiveTestRecoveryDays int
	PositiveTestValidityDays int
	NegativeTestHours        int
}

// RichOrigin is one event translated to domestic validity times, all floored
// to the hour.
type RichOrigin struct {
	Holder         holder.Holder
	Type           events.Type
	EventTime      time.Time
	ValidFrom      time.Time
	ExpirationTime time.Time
	IsSpecimen     bool
}

// BuildRichOrigins translates each event into its domestic validity window.
func BuildRichOrigins(evs events.Events, v Validity) []RichOrigin {
	origins := make([]RichOrigin, 0, len(evs))
	for _, e := range evs {
		o := RichOrigin{Holder: e.Holder, Type: e.Type, IsSpecimen: e.IsSpecimen}
		switch e.Type {
		case events.TypeVaccination:
			o.EventTime = floorHour(e.Vaccination.Date.Time)
			o.ValidFrom = o.EventTime
			o.ExpirationTime = o.EventTime.AddDate(0, 0, v.VaccinationDays)
		case events.TypeRecovery:
			o.EventTime = floorHour(e.Recovery.SampleDate.Time)
			o.ValidFrom = floorHour(e.Recovery.ValidFrom.Time)
			o.ExpirationTime = floorHour(e.Recovery.ValidUntil.Time)
		case events.TypePositiveTest:
			o.EventTime = floorHour(e.Positive.SampleDate)
			o.ValidFrom = o.EventTime.AddDate(0, 0, v.PositiveTestRecoveryDays)
			o.ExpirationTime = o.ValidFrom.AddDate(0, 0, v.PositiveTestValidityDays)
		case events.TypeNegativeTest:
			o.EventTime = floorHour(e.Negative.SampleDate)
			o.ValidFrom = o.EventTime
			o.ExpirationTime = o.EventTime.Add(time.Duration(v.NegativeTestHours) * time.Hour)
		default:
			continue
		}
		origins = append(origins, o)
	}
	return origins
}

// Block is a maximal run of time-connected origins: sorted by validFrom, each
// successive origin starts no later than the running expiration.
type Block struct {
	Origins        []RichOrigin
	ValidFrom      time.Time
	ExpirationTime time.Time
}

// GroupContiguous sorts origins by validFrom and splits them into contiguous
// blocks, extending each block's expiration to the maximum seen.
func GroupContiguous(origins []RichOrigin) []Block {
	if len(origins) == 0 {
		return nil
	}

	sorted := make([]RichOrigin, len(origins))
	copy(sorted, origins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ValidFrom.Before(sorted[j].ValidFrom)
	})

	var blocks []Block
	current := Block{
		Origins:        []RichOrigin{sorted[0]},
		ValidFrom:      sorted[0].ValidFrom,
		ExpirationTime: sorted[0].ExpirationTime,
	}
	for _, o := range sorted[1:] {
		if o.ValidFrom.After(current.ExpirationTime) {
			blocks = append(blocks, current)
			current = Block{
				Origins:        []RichOrigin{o},
				ValidFrom:      o.ValidFrom,
				ExpirationTime: o.ExpirationTime,
			}
			continue
		}
		current.Origins = append(current.Origins, o)
		if o.ExpirationTime.After(current.ExpirationTime) {
			current.ExpirationTime = o.ExpirationTime
		}
	}
	blocks = append(blocks, current)
	return blocks
}

func floorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
