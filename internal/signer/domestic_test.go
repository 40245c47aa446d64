package signer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certo/internal/domestic"
	"certo/internal/eusign"
)

// ============================================================================
// DOMESTIC CLIENT TESTS
// ============================================================================

type DomesticClientSuite struct {
	suite.Suite
	ctx context.Context
}

func TestDomesticClientSuite(t *testing.T) {
	suite.Run(t, new(DomesticClientSuite))
}

func (s *DomesticClientSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *DomesticClientSuite) shared() *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(Options{MaxAttempts: 1, BaseDelay: time.Millisecond}, logger)
	s.Require().NoError(err)
	return client
}

func (s *DomesticClientSuite) TestPrepareIssueKeepsRawPayload() {
	const payload = `{"issuerPkId":"PK-1","issuerNonce":"bm9uY2U=","credentialAmount":28}`

	var gotAmount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]int
		s.NoError(json.NewDecoder(r.Body).Decode(&req))
		gotAmount = req["credentialAmount"]
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := NewDomesticClient(s.shared(), srv.URL, "", "")
	resp, err := client.PrepareIssue(s.ctx, 28)
	s.Require().NoError(err)

	s.Equal(28, gotAmount)
	s.Equal("PK-1", resp.IssuerPkID)
	s.Equal("bm9uY2U=", resp.IssuerNonce)
	s.Equal(28, resp.CredentialAmount)
	s.Equal(payload, string(resp.Raw))
}

func (s *DomesticClientSuite) TestSignForwardsAttributes() {
	var got issueRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`[{"credential":"x"}]`))
	}))
	defer srv.Close()

	attrs := []domestic.Attributes{{
		IsSpecimen:       "0",
		IsPaperProof:     string(domestic.ProofApp),
		ValidFrom:        "1622541600",
		ValidForHours:    "40",
		FirstNameInitial: "B",
		LastNameInitial:  "B",
		BirthDay:         "1",
		BirthMonth:       "6",
	}}

	client := NewDomesticClient(s.shared(), "", srv.URL, "")
	out, err := client.Sign(s.ctx, []byte(`{"pim":1}`), []byte(`{"icm":2}`), attrs)
	s.Require().NoError(err)

	s.JSONEq(`[{"credential":"x"}]`, string(out))
	s.JSONEq(`{"pim":1}`, string(got.PrepareIssueMessage))
	s.JSONEq(`{"icm":2}`, string(got.IssueCommitmentMessage))
	s.Require().Len(got.CredentialsAttributes, 1)
	s.Equal("1622541600", got.CredentialsAttributes[0].ValidFrom)
}

func (s *DomesticClientSuite) TestSignPaperReturnsQR() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"qr":"NL2:STATIC"}`))
	}))
	defer srv.Close()

	client := NewDomesticClient(s.shared(), "", "", srv.URL)
	qr, err := client.SignPaper(s.ctx, domestic.Attributes{IsPaperProof: string(domestic.ProofPaperLong)})
	s.Require().NoError(err)
	s.Equal("NL2:STATIC", qr)
}

// ============================================================================
// EUROPEAN CLIENT TESTS
// ============================================================================

func (s *DomesticClientSuite) TestEuropeanSignReturnsCredential() {
	var got eusign.ToSigner
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"credential":"HC1:ABC"}`))
	}))
	defer srv.Close()

	client := NewEuropeanClient(s.shared(), srv.URL)
	cred, err := client.Sign(s.ctx, eusign.ToSigner{KeyUsage: "vaccination"})
	s.Require().NoError(err)

	s.Equal("HC1:ABC", cred)
	s.Equal("vaccination", got.KeyUsage)
}
