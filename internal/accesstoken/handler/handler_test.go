package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"certo/internal/accesstoken"
	dErrors "certo/pkg/domain-errors"
)

// ============================================================================
// ACCESS TOKEN HANDLER TESTS
// ============================================================================

type fakeService struct {
	tokens []accesstoken.ProviderTokens
	err    error

	gotToken string
}

func (f *fakeService) Issue(_ context.Context, tvsToken string) ([]accesstoken.ProviderTokens, error) {
	f.gotToken = tvsToken
	return f.tokens, f.err
}

type HandlerSuite struct {
	suite.Suite
	service *fakeService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *HandlerSuite) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/app/access_tokens", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestIssuesTokens() {
	s.service.tokens = []accesstoken.ProviderTokens{
		{ProviderIdentifier: "ZZZ", Unomi: "u-token", Event: "e-token"},
	}

	rec := s.post(`{"tvs_token": "the-retrieval-token"}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("the-retrieval-token", s.service.gotToken)

	var tokens []accesstoken.ProviderTokens
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &tokens))
	s.Equal(s.service.tokens, tokens)
}

func (s *HandlerSuite) TestRejectsMalformedBody() {
	rec := s.post("{not json")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Empty(s.service.gotToken)
}

func (s *HandlerSuite) TestUnauthorizedToken() {
	s.service.err = dErrors.New(dErrors.CodeUnauthorized, "invalid retrieval token")

	rec := s.post(`{"tvs_token": "bogus"}`)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestUpstreamFailure() {
	s.service.err = dErrors.New(dErrors.CodeUpstream, "could not resolve identity")

	rec := s.post(`{"tvs_token": "valid"}`)
	s.Equal(http.StatusBadGateway, rec.Code)
}
