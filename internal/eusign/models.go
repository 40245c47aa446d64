// Package eusign builds the per-event signing requests for the European
// certificate signer.
package eusign

import "time"

// Disease agent targeted: COVID-19, constant across all certificate kinds.
const DiseaseTargeted = "840539006"

// DGC schema version emitted in every signing request.
const SchemaVersion = "1.3.0"

// Name carries both the free-text and the ICAO-transliterated holder names.
type Name struct {
	FN  string `json:"fn"`
	FNT string `json:"fnt"`
	GN  string `json:"gn"`
	GNT string `json:"gnt"`
}

// VaccinationEntry is the v branch of a DGC.
type VaccinationEntry struct {
	TG string `json:"tg"`
	VP string `json:"vp"`
	MP string `json:"mp"`
	MA string `json:"ma"`
	DN int    `json:"dn"`
	SD int    `json:"sd"`
	DT string `json:"dt"`
	CO string `json:"co"`
	IS string `json:"is"`
	CI string `json:"ci"`
}

// TestEntry is the t branch of a DGC.
type TestEntry struct {
	TG string    `json:"tg"`
	TT string    `json:"tt"`
	NM string    `json:"nm,omitempty"`
	MA string    `json:"ma,omitempty"`
	SC time.Time `json:"sc"`
	DR time.Time `json:"dr"`
	TR bool      `json:"tr"`
	TC string    `json:"tc,omitempty"`
	CO string    `json:"co"`
	IS string    `json:"is"`
	CI string    `json:"ci"`
}

// RecoveryEntry is the r branch of a DGC.
type RecoveryEntry struct {
	TG string `json:"tg"`
	FR string `json:"fr"`
	DF string `json:"df"`
	DU string `json:"du"`
	CO string `json:"co"`
	IS string `json:"is"`
	CI string `json:"ci"`
}

// SigningRequest is the DGC payload; exactly one of V, T, R is populated.
type SigningRequest struct {
	Ver string             `json:"ver"`
	Nam Name               `json:"nam"`
	DOB string             `json:"dob"`
	V   []VaccinationEntry `json:"v,omitempty"`
	T   []TestEntry        `json:"t,omitempty"`
	R   []RecoveryEntry    `json:"r,omitempty"`
}

// ToSigner is the envelope sent to the European signer service.
type ToSigner struct {
	KeyUsage       string         `json:"keyUsage"`
	ExpirationTime time.Time      `json:"expirationTime"`
	DGC            SigningRequest `json:"dgc"`
}

// Origin describes the issued certificate's validity to the app.
type Origin struct {
	Type           string    `json:"type"`
	EventTime      time.Time `json:"eventTime"`
	ExpirationTime time.Time `json:"expirationTime"`
	ValidFrom      time.Time `json:"validFrom"`
}

// Message pairs one signing request with its origin descriptor and the
// provider event identity used for the UCI log.
type Message struct {
	ToSigner ToSigner
	Origin   Origin
	Provider string
	Unique   string
	UCI      string
}
