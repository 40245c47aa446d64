package signer

import (
	"context"
	"encoding/json"
	"fmt"

	"certo/internal/domestic"
)

// PrepareIssueResponse is the domestic signer's prepare payload. Raw keeps the
// exact bytes so the app receives the message unaltered.
type PrepareIssueResponse struct {
	IssuerPkID       string `json:"issuerPkId"`
	IssuerNonce      string `json:"issuerNonce"`
	CredentialAmount int    `json:"credentialAmount"`
	Raw              []byte `json:"-"`
}

// DomesticClient issues strip credentials against the domestic signer.
type DomesticClient struct {
	client     *Client
	prepareURL string
	signURL    string
	paperURL   string
}

func NewDomesticClient(client *Client, prepareURL, signURL, paperURL string) *DomesticClient {
	return &DomesticClient{
		client:     client,
		prepareURL: prepareURL,
		signURL:    signURL,
		paperURL:   paperURL,
	}
}

// PrepareIssue requests issuance material for the given credential amount.
func (d *DomesticClient) PrepareIssue(ctx context.Context, credentialAmount int) (*PrepareIssueResponse, error) {
	raw, err := d.client.PostJSON(ctx, "domestic-prepare", d.prepareURL, map[string]int{
		"credentialAmount": credentialAmount,
	})
	if err != nil {
		return nil, err
	}
	var resp PrepareIssueResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode prepare-issue response: %w", err)
	}
	resp.Raw = raw
	return &resp, nil
}

type issueRequest struct {
	PrepareIssueMessage    json.RawMessage       `json:"prepareIssueMessage"`
	IssueCommitmentMessage json.RawMessage       `json:"issueCommitmentMessage"`
	CredentialsAttributes  []domestic.Attributes `json:"credentialsAttributes"`
}

// Sign exchanges the commitment and strip attributes for credential messages.
// The response is opaque signer output, passed through to the app verbatim.
func (d *DomesticClient) Sign(ctx context.Context, prepareIssueMessage, issueCommitmentMessage []byte, attrs []domestic.Attributes) ([]byte, error) {
	return d.client.PostJSON(ctx, "domestic-sign", d.signURL, issueRequest{
		PrepareIssueMessage:    prepareIssueMessage,
		IssueCommitmentMessage: issueCommitmentMessage,
		CredentialsAttributes:  attrs,
	})
}

type paperRequest struct {
	CredentialsAttributes domestic.Attributes `json:"credentialsAttributes"`
}

type paperResponse struct {
	QR string `json:"qr"`
}

// SignPaper produces a static QR for one attribute set.
func (d *DomesticClient) SignPaper(ctx context.Context, attrs domestic.Attributes) (string, error) {
	raw, err := d.client.PostJSON(ctx, "domestic-paper", d.paperURL, paperRequest{
		CredentialsAttributes: attrs,
	})
	if err != nil {
		return "", err
	}
	var resp paperResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode paper-sign response: %w", err)
	}
	return resp.QR, nil
}
