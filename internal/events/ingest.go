package events

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"certo/internal/holder"
	dErrors "certo/pkg/domain-errors"
)

// SignedBlob is one CMS-signed provider payload as submitted by the app.
// Signature verification happens upstream; here the payload is opaque base64.
type SignedBlob struct {
	Signature string `json:"signature"`
	Payload   string `json:"payload"`
}

// ProviderResult is one decoded provider payload: the holder it describes and
// the events the provider knows about.
type ProviderResult struct {
	ProviderIdentifier string
	Status             string
	Holder             holder.Holder
	Events             []Event
}

type wireHolderV3 struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
}

type payloadV3 struct {
	ProtocolVersion    string       `json:"protocolVersion"`
	ProviderIdentifier string       `json:"providerIdentifier"`
	Status             string       `json:"status"`
	Holder             wireHolderV3 `json:"holder"`
	Events             []Event      `json:"events"`
}

type protocolProbe struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// Decode base64-decodes and parses every blob. It returns the decoded
// provider results and the accumulated validation details; a non-empty detail
// list fails the whole request at the transport layer.
func Decode(blobs []SignedBlob) ([]ProviderResult, []dErrors.Detail) {
	var results []ProviderResult
	var details []dErrors.Detail

	for i, blob := range blobs {
		loc := []string{"events", strconv.Itoa(i), "payload"}

		raw, err := base64.StdEncoding.DecodeString(blob.Payload)
		if err != nil {
			details = append(details, dErrors.Detail{
				Loc: loc, Msg: "payload is not valid base64", Type: "value_error.base64",
			})
			continue
		}

		var probe protocolProbe
		if err := json.Unmarshal(raw, &probe); err != nil {
			details = append(details, dErrors.Detail{
				Loc: loc, Msg: "payload is not valid JSON", Type: "value_error.json",
			})
			continue
		}

		switch probe.ProtocolVersion {
		case "3.0":
			result, ds := decodeV3(raw, loc)
			if len(ds) > 0 {
				details = append(details, ds...)
				continue
			}
			results = append(results, result)
		case "2.0":
			result, ds := decodeV2(raw, loc)
			if len(ds) > 0 {
				details = append(details, ds...)
				continue
			}
			results = append(results, result)
		default:
			details = append(details, dErrors.Detail{
				Loc:  append(loc, "protocolVersion"),
				Msg:  "unsupported protocol version " + strconv.Quote(probe.ProtocolVersion),
				Type: "value_error.unprocessable",
			})
		}
	}

	return results, details
}

func decodeV3(raw []byte, loc []string) (ProviderResult, []dErrors.Detail) {
	var p payloadV3
	if err := json.Unmarshal(raw, &p); err != nil {
		return ProviderResult{}, []dErrors.Detail{{
			Loc: loc, Msg: "malformed v3 payload", Type: "value_error.json",
		}}
	}

	h, err := parseHolder(p.Holder)
	if err != nil {
		return ProviderResult{}, []dErrors.Detail{{
			Loc: append(loc, "holder", "birthDate"), Msg: err.Error(), Type: "value_error.date",
		}}
	}

	var details []dErrors.Detail
	for j, e := range p.Events {
		if !e.Valid() {
			details = append(details, dErrors.Detail{
				Loc:  append(loc, "events", strconv.Itoa(j)),
				Msg:  "event payload does not match its type",
				Type: "value_error.event",
			})
		}
	}
	if len(details) > 0 {
		return ProviderResult{}, details
	}

	for j := range p.Events {
		p.Events[j].Holder = h
		p.Events[j].Provider = p.ProviderIdentifier
	}

	return ProviderResult{
		ProviderIdentifier: p.ProviderIdentifier,
		Status:             p.Status,
		Holder:             h,
		Events:             p.Events,
	}, nil
}
