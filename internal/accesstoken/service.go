// Package accesstoken exchanges an authenticated retrieval token for
// provider-scoped fetch tokens. The flow is stateless: validate the incoming
// JWT, resolve the citizen number upstream, then mint one unomi and one event
// token per registered provider.
package accesstoken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "certo/pkg/domain-errors"
	"certo/pkg/requestcontext"
)

// BSNRetriever resolves a validated retrieval token to a citizen number.
type BSNRetriever interface {
	Retrieve(ctx context.Context, tvsToken string) (string, error)
}

// ProviderTokens is one provider's pair of fetch tokens.
type ProviderTokens struct {
	ProviderIdentifier string `json:"provider_identifier"`
	Unomi              string `json:"unomi"`
	Event              string `json:"event"`
}

// Service mints provider access tokens.
type Service struct {
	signingKey []byte
	retriever  BSNRetriever
	providers  []Provider
	tokenTTL   time.Duration
	logger     *slog.Logger
}

func NewService(tvsSigningKey []byte, retriever BSNRetriever, providers []Provider, tokenTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		signingKey: tvsSigningKey,
		retriever:  retriever,
		providers:  providers,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

type providerClaims struct {
	IdentityHash string `json:"identity_hash"`
	jwt.RegisteredClaims
}

// Issue validates the retrieval token and returns a token pair per provider.
func (s *Service) Issue(ctx context.Context, tvsToken string) ([]ProviderTokens, error) {
	if err := s.validateRetrievalToken(tvsToken); err != nil {
		return nil, err
	}

	bsn, err := s.retriever.Retrieve(ctx, tvsToken)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "could not resolve identity")
	}

	now := requestcontext.Now(ctx)
	tokens := make([]ProviderTokens, 0, len(s.providers))
	for _, p := range s.providers {
		hash := identityHash(bsn, p)
		unomi, err := s.mint(p, hash, "unomi", now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
		}
		event, err := s.mint(p, hash, "event", now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
		}
		tokens = append(tokens, ProviderTokens{
			ProviderIdentifier: p.Identifier,
			Unomi:              unomi,
			Event:              event,
		})
	}

	s.logger.InfoContext(ctx, "access tokens issued", "providers", len(tokens))
	return tokens, nil
}

func (s *Service) validateRetrievalToken(tvsToken string) error {
	parsed, err := jwt.Parse(tvsToken, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dErrors.New(dErrors.CodeUnauthorized, "retrieval token expired")
		}
		return dErrors.New(dErrors.CodeUnauthorized, "invalid retrieval token")
	}
	if !parsed.Valid {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid retrieval token")
	}
	return nil
}

func (s *Service) mint(p Provider, hash, audience string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, providerClaims{
		IdentityHash: hash,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  []string{p.Identifier + ":" + audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(p.Key)
}

// identityHash binds the citizen number to one provider so tokens cannot be
// replayed across providers.
func identityHash(bsn string, p Provider) string {
	mac := hmac.New(sha256.New, p.Key)
	mac.Write([]byte(bsn + "-" + p.Identifier))
	return hex.EncodeToString(mac.Sum(nil))
}
