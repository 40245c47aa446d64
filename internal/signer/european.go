package signer

import (
	"context"
	"encoding/json"
	"fmt"

	"certo/internal/eusign"
)

// EuropeanClient signs one DGC per call against the European signer.
type EuropeanClient struct {
	client *Client
	url    string
}

func NewEuropeanClient(client *Client, url string) *EuropeanClient {
	return &EuropeanClient{client: client, url: url}
}

type europeanResponse struct {
	Credential string `json:"credential"`
}

// Sign submits one message and returns the HC1 credential string.
func (e *EuropeanClient) Sign(ctx context.Context, msg eusign.ToSigner) (string, error) {
	raw, err := e.client.PostJSON(ctx, "european", e.url, msg)
	if err != nil {
		return "", err
	}
	var resp europeanResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode european response: %w", err)
	}
	return resp.Credential, nil
}
