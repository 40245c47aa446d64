package events

import (
	"encoding/json"
	"strconv"
	"time"

	"certo/internal/holder"
	dErrors "certo/pkg/domain-errors"
)

// The v2 protocol predates the event model: it carries a single negative test
// with initials-only holder identification and no birth year. Payloads are
// upgraded to v3 shape on ingest; the sentinel birth year keeps them out of
// European issuance.

type wireHolderV2 struct {
	FirstNameInitial string `json:"firstNameInitial"`
	LastNameInitial  string `json:"lastNameInitial"`
	BirthDay         string `json:"birthDay"`
	BirthMonth       string `json:"birthMonth"`
}

type resultV2 struct {
	Unique         string       `json:"unique"`
	SampleDate     time.Time    `json:"sampleDate"`
	TestType       string       `json:"testType"`
	NegativeResult bool         `json:"negativeResult"`
	IsSpecimen     bool         `json:"isSpecimen"`
	Holder         wireHolderV2 `json:"holder"`
}

type payloadV2 struct {
	ProtocolVersion    string   `json:"protocolVersion"`
	ProviderIdentifier string   `json:"providerIdentifier"`
	Status             string   `json:"status"`
	Result             resultV2 `json:"result"`
}

// v2TestTypes maps the free-form v2 test type names onto LOINC codes used by
// the v3 protocol.
var v2TestTypes = map[string]string{
	"antigen":  "LP217198-3",
	"pcr":      "LP6464-4",
	"pcr-lamp": "LP6464-4",
}

const notAvailable = "not available"

func decodeV2(raw []byte, loc []string) (ProviderResult, []dErrors.Detail) {
	var p payloadV2
	if err := json.Unmarshal(raw, &p); err != nil {
		return ProviderResult{}, []dErrors.Detail{{
			Loc: loc, Msg: "malformed v2 payload", Type: "value_error.json",
		}}
	}

	h, err := upgradeHolderV2(p.Result.Holder)
	if err != nil {
		return ProviderResult{}, []dErrors.Detail{{
			Loc: append(loc, "result", "holder"), Msg: err.Error(), Type: "value_error.holder",
		}}
	}

	testType, ok := v2TestTypes[p.Result.TestType]
	if !ok {
		testType = "unknown"
	}

	event := Event{
		Type:       TypeNegativeTest,
		Unique:     p.Result.Unique,
		IsSpecimen: p.Result.IsSpecimen,
		Negative: &TestResult{
			SampleDate:     p.Result.SampleDate,
			ResultDate:     p.Result.SampleDate,
			NegativeResult: p.Result.NegativeResult,
			Facility:       notAvailable,
			Type:           testType,
			Name:           notAvailable,
			Manufacturer:   notAvailable,
		},
		Holder:   h,
		Provider: p.ProviderIdentifier,
	}

	return ProviderResult{
		ProviderIdentifier: p.ProviderIdentifier,
		Status:             p.Status,
		Holder:             h,
		Events:             []Event{event},
	}, nil
}

// upgradeHolderV2 builds a sentinel-year holder from the initials-only v2
// identification. The initials are kept verbatim as single-letter names so the
// derived initials match what the v2 provider attested.
func upgradeHolderV2(w wireHolderV2) (holder.Holder, error) {
	bd := holder.Birthdate{Year: holder.SentinelYear}
	if w.BirthMonth != "" {
		month, err := strconv.Atoi(w.BirthMonth)
		if err != nil || month < 1 || month > 12 {
			return holder.Holder{}, errInvalidV2BirthPart("birthMonth", w.BirthMonth)
		}
		bd.Month = month
	}
	if w.BirthDay != "" {
		day, err := strconv.Atoi(w.BirthDay)
		if err != nil || day < 1 || day > 31 {
			return holder.Holder{}, errInvalidV2BirthPart("birthDay", w.BirthDay)
		}
		bd.Day = day
	}
	return holder.Holder{
		FirstName: w.FirstNameInitial,
		LastName:  w.LastNameInitial,
		BirthDate: bd,
	}, nil
}

type v2BirthPartError struct {
	field, value string
}

func (e v2BirthPartError) Error() string {
	return "invalid " + e.field + " " + strconv.Quote(e.value)
}

func errInvalidV2BirthPart(field, value string) error {
	return v2BirthPartError{field: field, value: value}
}

func parseHolder(w wireHolderV3) (holder.Holder, error) {
	bd, err := holder.ParseBirthdate(w.BirthDate)
	if err != nil {
		return holder.Holder{}, err
	}
	return holder.Holder{
		FirstName: w.FirstName,
		LastName:  w.LastName,
		BirthDate: bd,
	}, nil
}
