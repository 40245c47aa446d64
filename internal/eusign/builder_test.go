package eusign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certo/internal/events"
	"certo/internal/holder"
	"certo/internal/uci"
)

// =============================================================================
// European Builder Test Suite
// =============================================================================

type BuilderSuite struct {
	suite.Suite
	builder *Builder
	now     time.Time
	holder  holder.Holder
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) SetupTest() {
	s.builder = NewBuilder(Config{
		ExpirationDays:           180,
		Issuer:                   "Ministry of Health Welfare and Sport",
		Country:                  "NL",
		PositiveTestRecoveryDays: 11,
		PositiveTestValidityDays: 180,
	}, nil)
	s.now = time.Date(2021, time.June, 1, 10, 30, 0, 0, time.UTC)
	s.holder = holder.Holder{
		FirstName: "Bob",
		LastName:  "Bouwer",
		BirthDate: holder.Birthdate{Year: 1960, Month: 1, Day: 12},
	}
}

func (s *BuilderSuite) event(t events.Type, mut func(*events.Event)) events.Event {
	e := events.Event{Type: t, Unique: "u-1", Holder: s.holder, Provider: "XXX"}
	if mut != nil {
		mut(&e)
	}
	return e
}

func (s *BuilderSuite) TestVaccinationMessage() {
	e := s.event(events.TypeVaccination, func(e *events.Event) {
		e.Vaccination = &events.Vaccination{
			Date:         events.NewDay(2021, time.February, 18),
			Type:         "1119349007",
			Brand:        "EU/1/20/1528",
			Manufacturer: "ORG-100030215",
			DoseNumber:   2,
			TotalDoses:   2,
		}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{e}, s.now)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)

	m := msgs[0]
	s.Equal(KeyUsageVaccination, m.ToSigner.KeyUsage)
	s.Equal("vaccination", m.Origin.Type)
	s.Equal(s.now.AddDate(0, 0, 180).Truncate(time.Second), m.ToSigner.ExpirationTime)

	dgc := m.ToSigner.DGC
	s.Equal(SchemaVersion, dgc.Ver)
	s.Equal("Bouwer", dgc.Nam.FN)
	s.Equal("BOUWER", dgc.Nam.FNT)
	s.Equal("1960-01-12", dgc.DOB)

	s.Require().Len(dgc.V, 1)
	v := dgc.V[0]
	s.Equal(DiseaseTargeted, v.TG)
	s.Equal("EU/1/20/1528", v.MP)
	s.Equal(2, v.DN)
	s.Equal(2, v.SD)
	s.Equal("2021-02-18", v.DT)
	s.Equal("NL", v.CO)
	s.True(uci.Verify(v.CI))
	s.Equal(m.UCI, v.CI)
	s.Empty(dgc.T)
	s.Empty(dgc.R)
}

func (s *BuilderSuite) TestNegativeTestMessage() {
	sample := time.Date(2021, time.May, 27, 19, 23, 0, 0, time.UTC)
	e := s.event(events.TypeNegativeTest, func(e *events.Event) {
		e.Negative = &events.TestResult{
			SampleDate:     sample,
			ResultDate:     sample,
			NegativeResult: true,
			Facility:       "GGD",
			Type:           "LP6464-4",
			Name:           "test",
			Manufacturer:   "1232",
		}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{e}, s.now)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)

	m := msgs[0]
	s.Equal(KeyUsageTest, m.ToSigner.KeyUsage)
	s.Require().Len(m.ToSigner.DGC.T, 1)
	t := m.ToSigner.DGC.T[0]
	s.Equal("LP6464-4", t.TT)
	s.Equal(sample, t.SC)
	s.True(t.TR)
	s.Equal("GGD", t.TC)
}

func (s *BuilderSuite) TestPositiveTestBecomesRecovery() {
	sample := time.Date(2021, time.April, 1, 9, 0, 0, 0, time.UTC)
	e := s.event(events.TypePositiveTest, func(e *events.Event) {
		e.Positive = &events.TestResult{
			SampleDate:     sample,
			ResultDate:     sample,
			PositiveResult: true,
			Facility:       "GGD",
			Type:           "LP6464-4",
			Name:           "test",
			Manufacturer:   "1232",
		}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{e}, s.now)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)

	m := msgs[0]
	s.Equal(KeyUsageRecovery, m.ToSigner.KeyUsage)
	s.Require().Len(m.ToSigner.DGC.R, 1)
	r := m.ToSigner.DGC.R[0]
	s.Equal("2021-04-01", r.FR)
	s.Equal("2021-04-12", r.DF)
	s.Equal("2021-10-09", r.DU)
	s.Empty(m.ToSigner.DGC.T)
}

func (s *BuilderSuite) TestRecoveryMessage() {
	e := s.event(events.TypeRecovery, func(e *events.Event) {
		e.Recovery = &events.Recovery{
			SampleDate: events.NewDay(2021, time.January, 1),
			ValidFrom:  events.NewDay(2021, time.January, 12),
			ValidUntil: events.NewDay(2021, time.July, 1),
			Country:    "BE",
		}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{e}, s.now)
	s.Require().NoError(err)
	r := msgs[0].ToSigner.DGC.R[0]
	s.Equal("2021-01-01", r.FR)
	s.Equal("2021-01-12", r.DF)
	s.Equal("2021-07-01", r.DU)
	s.Equal("BE", r.CO)
}

func (s *BuilderSuite) TestSpecimenExpiration() {
	e := s.event(events.TypeVaccination, func(e *events.Event) {
		e.IsSpecimen = true
		e.Vaccination = &events.Vaccination{Date: events.NewDay(2021, time.February, 18), DoseNumber: 1, TotalDoses: 1}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{e}, s.now)
	s.Require().NoError(err)
	s.Equal(SpecimenExpiration, msgs[0].ToSigner.ExpirationTime)
	s.Equal(time.Date(1970, 1, 1, 0, 0, 42, 0, time.UTC), msgs[0].ToSigner.ExpirationTime)
}

func (s *BuilderSuite) TestSentinelBirthYearDOB() {
	h := s.holder
	h.BirthDate = holder.Birthdate{Year: 1960, Month: 1}
	e := s.event(events.TypeVaccination, func(e *events.Event) {
		e.Holder = h
		e.Vaccination = &events.Vaccination{Date: events.NewDay(2021, time.February, 18)}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{e}, s.now)
	s.Require().NoError(err)
	s.Equal("1960", msgs[0].ToSigner.DGC.DOB)
}

func (s *BuilderSuite) TestMessagesFollowEventOrder() {
	first := s.event(events.TypeVaccination, func(e *events.Event) {
		e.Unique = "first"
		e.Vaccination = &events.Vaccination{Date: events.NewDay(2021, time.February, 18)}
	})
	second := s.event(events.TypeRecovery, func(e *events.Event) {
		e.Unique = "second"
		e.Recovery = &events.Recovery{
			SampleDate: events.NewDay(2021, time.January, 1),
			ValidFrom:  events.NewDay(2021, time.January, 12),
			ValidUntil: events.NewDay(2021, time.July, 1),
		}
	})

	msgs, err := s.builder.Build(context.Background(), events.Events{first, second}, s.now)
	s.Require().NoError(err)
	s.Require().Len(msgs, 2)
	s.Equal("first", msgs[0].Unique)
	s.Equal("second", msgs[1].Unique)
	s.NotEqual(msgs[0].UCI, msgs[1].UCI)
}
