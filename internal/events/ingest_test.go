package events

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certo/internal/holder"
)

// =============================================================================
// Ingest Test Suite
// =============================================================================

type IngestSuite struct {
	suite.Suite
}

func TestIngestSuite(t *testing.T) {
	suite.Run(t, new(IngestSuite))
}

func blob(payload string) SignedBlob {
	return SignedBlob{
		Signature: "c2lnbmF0dXJl",
		Payload:   base64.StdEncoding.EncodeToString([]byte(payload)),
	}
}

const v3Payload = `{
	"protocolVersion": "3.0",
	"providerIdentifier": "XXX",
	"status": "complete",
	"holder": {"firstName": "Bob", "lastName": "Bouwer", "birthDate": "1960-01-12"},
	"events": [
		{
			"type": "vaccination",
			"unique": "v-1",
			"vaccination": {"date": "2021-05-01", "hpkCode": "2924528", "doseNumber": 1, "totalDoses": 2}
		}
	]
}`

func (s *IngestSuite) TestDecodeV3() {
	s.Run("well-formed payload", func() {
		results, details := Decode([]SignedBlob{blob(v3Payload)})
		s.Require().Empty(details)
		s.Require().Len(results, 1)

		r := results[0]
		s.Equal("XXX", r.ProviderIdentifier)
		s.Equal("complete", r.Status)
		s.Equal("Bob", r.Holder.FirstName)
		s.Equal(holder.Birthdate{Year: 1960, Month: 1, Day: 12}, r.Holder.BirthDate)

		s.Require().Len(r.Events, 1)
		e := r.Events[0]
		s.Equal(TypeVaccination, e.Type)
		s.Equal("v-1", e.Unique)
		s.Equal("XXX", e.Provider)
		s.Equal("Bob", e.Holder.FirstName)
		s.Equal(NewDay(2021, time.May, 1), e.Vaccination.Date)
	})

	s.Run("invalid base64", func() {
		_, details := Decode([]SignedBlob{{Payload: "%%%"}})
		s.Require().Len(details, 1)
		s.Equal([]string{"events", "0", "payload"}, details[0].Loc)
	})

	s.Run("unsupported protocol version", func() {
		_, details := Decode([]SignedBlob{blob(`{"protocolVersion": "1.0"}`)})
		s.Require().Len(details, 1)
		s.Equal([]string{"events", "0", "payload", "protocolVersion"}, details[0].Loc)
		s.Contains(details[0].Msg, "1.0")
	})

	s.Run("bad birthdate is reported with its loc", func() {
		payload := `{
			"protocolVersion": "3.0",
			"providerIdentifier": "XXX",
			"holder": {"firstName": "Bob", "lastName": "Bouwer", "birthDate": "12-01-1960"},
			"events": []
		}`
		_, details := Decode([]SignedBlob{blob(payload)})
		s.Require().Len(details, 1)
		s.Equal([]string{"events", "0", "payload", "holder", "birthDate"}, details[0].Loc)
	})

	s.Run("variant mismatch is rejected per event", func() {
		payload := `{
			"protocolVersion": "3.0",
			"providerIdentifier": "XXX",
			"holder": {"firstName": "Bob", "lastName": "Bouwer", "birthDate": "1960-01-12"},
			"events": [{"type": "vaccination", "unique": "v-1", "recovery": {"sampleDate": "2021-01-01", "validFrom": "2021-01-12", "validUntil": "2021-07-01"}}]
		}`
		_, details := Decode([]SignedBlob{blob(payload)})
		s.Require().Len(details, 1)
		s.Equal([]string{"events", "0", "payload", "events", "0"}, details[0].Loc)
	})

	s.Run("details accumulate across blobs", func() {
		_, details := Decode([]SignedBlob{
			{Payload: "%%%"},
			blob(`{"protocolVersion": "9.9"}`),
		})
		s.Len(details, 2)
		s.Equal("0", details[0].Loc[1])
		s.Equal("1", details[1].Loc[1])
	})
}

const v2Payload = `{
	"protocolVersion": "2.0",
	"providerIdentifier": "ZZZ",
	"status": "complete",
	"result": {
		"unique": "n-7",
		"sampleDate": "2021-05-27T19:23:00Z",
		"testType": "antigen",
		"negativeResult": true,
		"isSpecimen": false,
		"holder": {"firstNameInitial": "B", "lastNameInitial": "B", "birthDay": "12", "birthMonth": "1"}
	}
}`

func (s *IngestSuite) TestDecodeV2Upgrade() {
	s.Run("upgrades to a single negative test", func() {
		results, details := Decode([]SignedBlob{blob(v2Payload)})
		s.Require().Empty(details)
		s.Require().Len(results, 1)

		r := results[0]
		s.Require().Len(r.Events, 1)
		e := r.Events[0]
		s.Equal(TypeNegativeTest, e.Type)
		s.Equal("n-7", e.Unique)
		s.Equal("LP217198-3", e.Negative.Type)
		s.True(e.Negative.NegativeResult)
		s.Equal(e.Negative.SampleDate, e.Negative.ResultDate)
		s.Equal("not available", e.Negative.Facility)
		s.Equal("not available", e.Negative.Name)
		s.Equal("not available", e.Negative.Manufacturer)
	})

	s.Run("holder carries the sentinel year", func() {
		results, _ := Decode([]SignedBlob{blob(v2Payload)})
		h := results[0].Holder
		s.True(h.BirthDate.IsSentinel())
		s.Equal(1, h.BirthDate.Month)
		s.Equal(12, h.BirthDate.Day)
		s.Equal("B", h.FirstNameInitial())
		s.Equal("B", h.LastNameInitial())
	})

	s.Run("test type mapping", func() {
		for wire, want := range map[string]string{
			"antigen":   "LP217198-3",
			"pcr":       "LP6464-4",
			"pcr-lamp":  "LP6464-4",
			"breathalyzer": "unknown",
		} {
			payload := `{
				"protocolVersion": "2.0",
				"providerIdentifier": "ZZZ",
				"result": {"unique": "n-1", "sampleDate": "2021-05-27T19:23:00Z", "testType": "` + wire + `", "negativeResult": true, "holder": {"firstNameInitial": "B", "lastNameInitial": "B", "birthDay": "12", "birthMonth": "1"}}
			}`
			results, details := Decode([]SignedBlob{blob(payload)})
			s.Require().Empty(details, wire)
			s.Equal(want, results[0].Events[0].Negative.Type, wire)
		}
	})

	s.Run("invalid birth parts are rejected", func() {
		payload := `{
			"protocolVersion": "2.0",
			"providerIdentifier": "ZZZ",
			"result": {"unique": "n-1", "sampleDate": "2021-05-27T19:23:00Z", "testType": "pcr", "negativeResult": true, "holder": {"firstNameInitial": "B", "lastNameInitial": "B", "birthDay": "32", "birthMonth": "1"}}
		}`
		_, details := Decode([]SignedBlob{blob(payload)})
		s.Require().Len(details, 1)
		s.Equal([]string{"events", "0", "payload", "result", "holder"}, details[0].Loc)
	})

	s.Run("empty birth parts stay unknown", func() {
		payload := `{
			"protocolVersion": "2.0",
			"providerIdentifier": "ZZZ",
			"result": {"unique": "n-1", "sampleDate": "2021-05-27T19:23:00Z", "testType": "pcr", "negativeResult": true, "holder": {"firstNameInitial": "B", "lastNameInitial": "B", "birthDay": "", "birthMonth": ""}}
		}`
		results, details := Decode([]SignedBlob{blob(payload)})
		s.Require().Empty(details)
		bd := results[0].Holder.BirthDate
		s.Zero(bd.Month)
		s.Zero(bd.Day)
	})
}
