package accesstoken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

// ============================================================================
// ACCESS TOKEN SERVICE TESTS
// ============================================================================

type fakeRetriever struct {
	bsn string
	err error

	gotToken string
}

func (f *fakeRetriever) Retrieve(_ context.Context, tvsToken string) (string, error) {
	f.gotToken = tvsToken
	return f.bsn, f.err
}

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	signingKey []byte
	retriever  *fakeRetriever
	providers  []Provider
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2021, time.June, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.signingKey = []byte("tvs-signing-key")
	s.retriever = &fakeRetriever{bsn: "999990019"}
	s.providers = []Provider{
		{Identifier: "ZZZ", Key: []byte("provider-key-zzz")},
		{Identifier: "GGD", Key: []byte("provider-key-ggd")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.signingKey, s.retriever, s.providers, time.Hour, logger)
}

func (s *ServiceSuite) retrievalToken(key []byte, mut func(jwt.MapClaims)) string {
	claims := jwt.MapClaims{
		"iat": s.now.Unix(),
		"exp": s.now.Add(time.Hour).Unix(),
	}
	if mut != nil {
		mut(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	s.Require().NoError(err)
	return signed
}

// ============================================================================
// RETRIEVAL TOKEN VALIDATION
// ============================================================================

func (s *ServiceSuite) TestRejectsGarbageToken() {
	_, err := s.service.Issue(s.ctx, "definitely.not.ajwt")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRejectsWrongSignature() {
	token := s.retrievalToken([]byte("some-other-key"), nil)

	_, err := s.service.Issue(s.ctx, token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRejectsExpiredToken() {
	token := s.retrievalToken(s.signingKey, func(c jwt.MapClaims) {
		c["exp"] = s.now.Add(-time.Minute).Unix()
	})

	_, err := s.service.Issue(s.ctx, token)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRejectsUnsignedToken() {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"exp": s.now.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.service.Issue(s.ctx, unsigned)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

// ============================================================================
// TOKEN MINTING
// ============================================================================

func (s *ServiceSuite) TestIssuesTokenPairPerProvider() {
	token := s.retrievalToken(s.signingKey, nil)

	tokens, err := s.service.Issue(s.ctx, token)
	s.Require().NoError(err)

	s.Equal(token, s.retriever.gotToken)
	s.Require().Len(tokens, 2)
	s.Equal("ZZZ", tokens[0].ProviderIdentifier)
	s.Equal("GGD", tokens[1].ProviderIdentifier)

	for i, pair := range tokens {
		provider := s.providers[i]
		for audience, minted := range map[string]string{"unomi": pair.Unomi, "event": pair.Event} {
			s.Run(provider.Identifier+"/"+audience, func() {
				var claims providerClaims
				parsed, err := jwt.ParseWithClaims(minted, &claims, func(*jwt.Token) (any, error) {
					return provider.Key, nil
				})
				s.Require().NoError(err)
				s.True(parsed.Valid)

				s.Equal(jwt.ClaimStrings{provider.Identifier + ":" + audience}, claims.Audience)
				s.Equal(s.now.Unix(), claims.IssuedAt.Unix())
				s.Equal(s.now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
				s.NotEmpty(claims.ID)

				mac := hmac.New(sha256.New, provider.Key)
				mac.Write([]byte("999990019-" + provider.Identifier))
				s.Equal(hex.EncodeToString(mac.Sum(nil)), claims.IdentityHash)
			})
		}
	}
}

func (s *ServiceSuite) TestIdentityHashDiffersPerProvider() {
	tokens, err := s.service.Issue(s.ctx, s.retrievalToken(s.signingKey, nil))
	s.Require().NoError(err)
	s.Require().Len(tokens, 2)

	hash := func(minted string, key []byte) string {
		var claims providerClaims
		_, err := jwt.ParseWithClaims(minted, &claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		s.Require().NoError(err)
		return claims.IdentityHash
	}

	s.NotEqual(
		hash(tokens[0].Unomi, s.providers[0].Key),
		hash(tokens[1].Unomi, s.providers[1].Key),
	)
}

func (s *ServiceSuite) TestUpstreamFailureBecomesUpstreamError() {
	s.retriever.err = errors.New("gateway unavailable")

	_, err := s.service.Issue(s.ctx, s.retrievalToken(s.signingKey, nil))
	s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
}

// ============================================================================
// PROVIDER REGISTRY
// ============================================================================

func (s *ServiceSuite) TestLoadProviders() {
	path := filepath.Join(s.T().TempDir(), "providers.json")
	content := `[
		{"identifier": "ZZZ", "unomi_url": "https://zzz.example/unomi", "event_url": "https://zzz.example/events", "key": "` +
		base64.StdEncoding.EncodeToString([]byte("provider-key-zzz")) + `"}
	]`
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	providers, err := LoadProviders(path)
	s.Require().NoError(err)
	s.Require().Len(providers, 1)
	s.Equal("ZZZ", providers[0].Identifier)
	s.Equal("https://zzz.example/unomi", providers[0].UnomiURL)
	s.Equal([]byte("provider-key-zzz"), providers[0].Key)
}

func (s *ServiceSuite) TestLoadProvidersRejectsEmptyKey() {
	path := filepath.Join(s.T().TempDir(), "providers.json")
	s.Require().NoError(os.WriteFile(path, []byte(`[{"identifier": "ZZZ", "key": ""}]`), 0o600))

	_, err := LoadProviders(path)
	s.Error(err)
}
