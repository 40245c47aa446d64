package eusign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"certo/internal/events"
	"certo/internal/uci"
)

// Key usage values understood by the European signer. Positive tests are
// certified as recoveries and negative tests as test certificates.
const (
	KeyUsageVaccination = "vaccination"
	KeyUsageTest        = "test"
	KeyUsageRecovery    = "recovery"
)

// SpecimenExpiration is the sentinel expiration stamped on specimen
// certificates so foreign verifiers reject them as long expired.
var SpecimenExpiration = time.Date(1970, 1, 1, 0, 0, 42, 0, time.UTC)

const defaultCountry = "NLD"

// Config fixes the issuer metadata and validity window of built messages.
type Config struct {
	ExpirationDays int
	Issuer         string
	Country        string

	// Recovery window applied when a positive test is remapped to a
	// recovery certificate, mirroring the domestic windows.
	PositiveTestRecoveryDays int
	PositiveTestValidityDays int
}

// Builder turns distilled events into signing requests, one per event. Each
// request gets a fresh UCI which is also reported to the caller for logging.
type Builder struct {
	cfg    Config
	logger *slog.Logger
}

// NewBuilder constructs a builder.
func NewBuilder(cfg Config, logger *slog.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// Build produces one message per event, in event order.
func (b *Builder) Build(ctx context.Context, evs events.Events, now time.Time) ([]Message, error) {
	messages := make([]Message, 0, len(evs))
	for _, e := range evs {
		msg, err := b.build(ctx, e, now)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (b *Builder) build(ctx context.Context, e events.Event, now time.Time) (Message, error) {
	ci, err := uci.New()
	if err != nil {
		return Message{}, err
	}

	expiration := now.Add(time.Duration(b.cfg.ExpirationDays) * 24 * time.Hour).Truncate(time.Second)
	if e.IsSpecimen {
		expiration = SpecimenExpiration
	}

	dgc := SigningRequest{
		Ver: SchemaVersion,
		Nam: Name{
			FN:  e.Holder.LastName,
			FNT: e.Holder.EUNormalizedFamilyName(),
			GN:  e.Holder.FirstName,
			GNT: e.Holder.EUNormalizedGivenName(),
		},
		DOB: e.Holder.BirthDate.EUFormat(),
	}

	var keyUsage string
	var anchor time.Time

	switch e.Type {
	case events.TypeVaccination:
		keyUsage = KeyUsageVaccination
		v := e.Vaccination
		anchor = v.Date.Time
		dgc.V = []VaccinationEntry{{
			TG: DiseaseTargeted,
			VP: v.Type,
			MP: v.Brand,
			MA: v.Manufacturer,
			DN: v.DoseNumber,
			SD: v.TotalDoses,
			DT: v.Date.Format("2006-01-02"),
			CO: b.country(v.Country),
			IS: b.cfg.Issuer,
			CI: ci,
		}}
	case events.TypeNegativeTest:
		keyUsage = KeyUsageTest
		t := e.Negative
		anchor = t.SampleDate
		dgc.T = []TestEntry{{
			TG: DiseaseTargeted,
			TT: t.Type,
			NM: t.Name,
			MA: t.Manufacturer,
			SC: t.SampleDate,
			DR: t.ResultDate,
			TR: t.NegativeResult,
			TC: t.Facility,
			CO: b.country(t.Country),
			IS: b.cfg.Issuer,
			CI: ci,
		}}
	case events.TypePositiveTest:
		keyUsage = KeyUsageRecovery
		t := e.Positive
		anchor = t.SampleDate
		validFrom := t.SampleDate.AddDate(0, 0, b.cfg.PositiveTestRecoveryDays)
		validUntil := validFrom.AddDate(0, 0, b.cfg.PositiveTestValidityDays)
		dgc.R = []RecoveryEntry{{
			TG: DiseaseTargeted,
			FR: t.SampleDate.Format("2006-01-02"),
			DF: validFrom.Format("2006-01-02"),
			DU: validUntil.Format("2006-01-02"),
			CO: b.country(t.Country),
			IS: b.cfg.Issuer,
			CI: ci,
		}}
	case events.TypeRecovery:
		keyUsage = KeyUsageRecovery
		r := e.Recovery
		anchor = r.SampleDate.Time
		dgc.R = []RecoveryEntry{{
			TG: DiseaseTargeted,
			FR: r.SampleDate.Format("2006-01-02"),
			DF: r.ValidFrom.Format("2006-01-02"),
			DU: r.ValidUntil.Format("2006-01-02"),
			CO: b.country(r.Country),
			IS: b.cfg.Issuer,
			CI: ci,
		}}
	default:
		return Message{}, fmt.Errorf("cannot build european message for event type %q", e.Type)
	}

	if b.logger != nil {
		b.logger.InfoContext(ctx, "uci issued",
			"provider", e.Provider,
			"unique", e.Unique,
			"uci", ci,
		)
	}

	return Message{
		ToSigner: ToSigner{
			KeyUsage:       keyUsage,
			ExpirationTime: expiration,
			DGC:            dgc,
		},
		Origin: Origin{
			Type:           keyUsage,
			EventTime:      anchor,
			ValidFrom:      anchor,
			ExpirationTime: expiration,
		},
		Provider: e.Provider,
		Unique:   e.Unique,
		UCI:      ci,
	}, nil
}

func (b *Builder) country(eventCountry string) string {
	if eventCountry != "" {
		return eventCountry
	}
	if b.cfg.Country != "" {
		return b.cfg.Country
	}
	return defaultCountry
}
