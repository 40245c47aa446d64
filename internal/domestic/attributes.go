package domestic

import (
	"strconv"
	"time"

	"certo/internal/catalog"
	"certo/internal/holder"
)

// ProofKind is the issuance channel encoded into the attributes.
type ProofKind string

const (
	ProofApp        ProofKind = "APP"
	ProofPaperShort ProofKind = "PAPER_SHORT"
	ProofPaperLong  ProofKind = "PAPER_LONG"
)

// Attributes is the flat string map the domestic signer commits into a strip.
// Identity fields are struck to "" when the disclosure policy for the holder's
// initial pair withholds them.
type Attributes struct {
	IsSpecimen       string `json:"isSpecimen"`
	IsPaperProof     string `json:"isPaperProof"`
	ValidFrom        string `json:"validFrom"`
	ValidForHours    string `json:"validForHours"`
	FirstNameInitial string `json:"firstNameInitial"`
	LastNameInitial  string `json:"lastNameInitial"`
	BirthDay         string `json:"birthDay"`
	BirthMonth       string `json:"birthMonth"`
}

// BuildAttributes fills one strip's attribute set for the given holder.
func BuildAttributes(s Strip, h holder.Holder, kind ProofKind, c *catalog.Catalog) Attributes {
	first := h.FirstNameInitial()
	last := h.LastNameInitial()
	disclosed := c.AllowedDisclosure(first, last)

	a := Attributes{
		IsSpecimen:    "0",
		IsPaperProof:  string(kind),
		ValidFrom:     strconv.FormatInt(s.ValidFrom.Unix(), 10),
		ValidForHours: strconv.Itoa(s.ValidForHours),
	}
	if s.IsSpecimen {
		a.IsSpecimen = "1"
	}
	if disclosed.FirstInitial {
		a.FirstNameInitial = first
	}
	if disclosed.LastInitial {
		a.LastNameInitial = last
	}
	if disclosed.BirthMonth {
		a.BirthMonth = h.BirthDate.MonthString()
	}
	if disclosed.BirthDay {
		a.BirthDay = h.BirthDate.DayString()
	}
	return a
}

// OriginResponse is the origin summary echoed back to the caller alongside
// the issued credentials.
type OriginResponse struct {
	Type           string    `json:"type"`
	EventTime      time.Time `json:"eventTime"`
	ExpirationTime time.Time `json:"expirationTime"`
	ValidFrom      time.Time `json:"validFrom"`
}

// OriginResponses flattens rich origins for the issuance response.
func OriginResponses(origins []RichOrigin) []OriginResponse {
	out := make([]OriginResponse, 0, len(origins))
	for _, o := range origins {
		out = append(out, OriginResponse{
			Type:           string(o.Type),
			EventTime:      o.EventTime,
			ExpirationTime: o.ExpirationTime,
			ValidFrom:      o.ValidFrom,
		})
	}
	return out
}
