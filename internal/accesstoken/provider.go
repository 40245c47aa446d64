package accesstoken

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Provider is one event provider the app may fetch events from. The HMAC key
// both derives the identity hash and signs the provider-scoped tokens.
type Provider struct {
	Identifier string `json:"identifier"`
	UnomiURL   string `json:"unomi_url"`
	EventURL   string `json:"event_url"`
	Key        []byte `json:"-"`

	// KeyB64 is the wire form of Key in the providers file.
	KeyB64 string `json:"key"`
}

// LoadProviders reads the provider registry from a JSON file.
func LoadProviders(path string) ([]Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}
	var providers []Provider
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	for i := range providers {
		key, err := base64.StdEncoding.DecodeString(providers[i].KeyB64)
		if err != nil {
			return nil, fmt.Errorf("provider %s: decode key: %w", providers[i].Identifier, err)
		}
		if len(key) == 0 {
			return nil, fmt.Errorf("provider %s: empty key", providers[i].Identifier)
		}
		providers[i].Key = key
	}
	return providers, nil
}
